package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrenko/homeledger/internal/client/models"
	"github.com/mpetrenko/homeledger/internal/common"
)

func TestLogin_StoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/login", r.URL.Path)

		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		require.Equal(t, "alice", creds["username"])
		require.Equal(t, "s3cret", creds["password"])

		json.NewEncoder(w).Encode(Session{Token: "tok-123", UserID: "u1"})
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL)
	session, err := store.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", session.Token)
	assert.Equal(t, "u1", session.UserID)
}

func TestPut_SendsBearerAndRecord(t *testing.T) {
	var gotAuth, gotPath string
	var gotRec models.Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRec))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL)
	store.SetToken("tok-123")

	rec := &models.Record{ID: "r1", Fields: []byte(`{"v":1}`), UpdatedAt: 42}
	require.NoError(t, store.Put(context.Background(), "u1", "accounts", rec))

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "/users/u1/accounts/r1", gotPath)
	assert.Equal(t, "r1", gotRec.ID)
	assert.Equal(t, int64(42), gotRec.UpdatedAt)
}

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/u1/habits", r.URL.Path)
		json.NewEncoder(w).Encode([]models.Record{
			{ID: "h1", Fields: []byte(`{"title":"read"}`), UpdatedAt: 7},
		})
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL)
	recs, err := store.List(context.Background(), "u1", "habits")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "h1", recs[0].ID)
	assert.Equal(t, int64(7), recs[0].UpdatedAt)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
	}{
		{http.StatusUnauthorized, common.ErrUnauthorized},
		{http.StatusForbidden, common.ErrUnauthorized},
		{http.StatusNotFound, common.ErrNotFound},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		err := newStore(srv).Ping(context.Background())
		assert.ErrorIs(t, err, tt.wantErr, "status %d", tt.status)
		srv.Close()
	}
}

func TestServerErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newStore(srv).Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")
}

func newStore(srv *httptest.Server) *HTTPStore {
	return NewHTTPStore(srv.URL)
}
