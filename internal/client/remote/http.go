package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mpetrenko/homeledger/internal/client/models"
	"github.com/mpetrenko/homeledger/internal/common"
)

// HTTPStore talks to the reference document-store server over JSON/HTTP.
type HTTPStore struct {
	baseURL string
	client  *http.Client

	mu    sync.RWMutex
	token string
}

func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken installs the bearer token used on authenticated calls.
func (s *HTTPStore) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *HTTPStore) Ping(ctx context.Context) error {
	return s.do(ctx, http.MethodGet, "/ping", nil, nil)
}

func (s *HTTPStore) Register(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	return s.do(ctx, http.MethodPost, "/api/register", body, nil)
}

func (s *HTTPStore) Login(ctx context.Context, username, password string) (*Session, error) {
	body := map[string]string{"username": username, "password": password}
	var session Session
	if err := s.do(ctx, http.MethodPost, "/api/login", body, &session); err != nil {
		return nil, err
	}
	s.SetToken(session.Token)
	return &session, nil
}

func (s *HTTPStore) Put(ctx context.Context, uid, collection string, rec *models.Record) error {
	path := fmt.Sprintf("/users/%s/%s/%s",
		url.PathEscape(uid), url.PathEscape(collection), url.PathEscape(rec.ID))
	return s.do(ctx, http.MethodPut, path, rec, nil)
}

func (s *HTTPStore) List(ctx context.Context, uid, collection string) ([]models.Record, error) {
	path := fmt.Sprintf("/users/%s/%s", url.PathEscape(uid), url.PathEscape(collection))
	var result []models.Record
	if err := s.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *HTTPStore) Backup(ctx context.Context, uid string) error {
	path := fmt.Sprintf("/users/%s/backup", url.PathEscape(uid))
	return s.do(ctx, http.MethodPost, path, nil, nil)
}

func (s *HTTPStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return common.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return common.ErrNotFound
	case resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("remote store returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
