package handlers_test

import (
	"context"
	"errors"
	"time"

	"github.com/serroba/shortlink/internal/shortener"
)

var errMock = errors.New("mock error")

const testURL = "https://example.com/very/long/path"

// mockStore is a shortener.Repository that fails with the configured errors.
type mockStore struct {
	putErr    error
	getErr    error
	listErr   error
	deleteErr error
}

func (m *mockStore) Put(context.Context, *shortener.ShortURL) error {
	return m.putErr
}

func (m *mockStore) Get(_ context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}

	return &shortener.ShortURL{Code: code, OriginalURL: testURL, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *mockStore) ListByOwner(context.Context, string, int, int) ([]*shortener.ShortURL, error) {
	return nil, m.listErr
}

func (m *mockStore) Delete(context.Context, shortener.Code, string) error {
	return m.deleteErr
}

func (m *mockStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
