package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrenko/homeledger/internal/common"
	"github.com/mpetrenko/homeledger/internal/logging"
	"github.com/mpetrenko/homeledger/internal/server/auth"
	"github.com/mpetrenko/homeledger/internal/server/models"
	"github.com/mpetrenko/homeledger/internal/server/repositories/users"
)

// memDocs is an in-memory documents.Repository. Upsert overwrites whole
// documents; the merge semantics live in the postgres implementation and are
// not under test here.
type memDocs struct {
	docs map[string]*models.Document // userID/collection/id
}

func newMemDocs() *memDocs {
	return &memDocs{docs: map[string]*models.Document{}}
}

func docKey(userID, collection, id string) string {
	return fmt.Sprintf("%s/%s/%s", userID, collection, id)
}

func (m *memDocs) Upsert(ctx context.Context, doc *models.Document) error {
	cp := *doc
	m.docs[docKey(doc.UserID, doc.Collection, doc.ID)] = &cp
	return nil
}

func (m *memDocs) Get(ctx context.Context, userID, collection, id string) (*models.Document, error) {
	doc, ok := m.docs[docKey(userID, collection, id)]
	if !ok {
		return nil, common.ErrNotFound
	}
	return doc, nil
}

func (m *memDocs) List(ctx context.Context, userID, collection string) ([]models.Document, error) {
	var out []models.Document
	for _, doc := range m.docs {
		if doc.UserID == userID && doc.Collection == collection {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (m *memDocs) ListAll(ctx context.Context, userID string) (map[string][]models.Document, error) {
	out := map[string][]models.Document{}
	for _, doc := range m.docs {
		if doc.UserID == userID {
			out[doc.Collection] = append(out[doc.Collection], *doc)
		}
	}
	return out, nil
}

type memUsers struct {
	byName map[string]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byName: map[string]*models.User{}}
}

func (m *memUsers) Create(ctx context.Context, user *models.User) error {
	if _, ok := m.byName[user.Username]; ok {
		return users.ErrAlreadyExists
	}
	cp := *user
	m.byName[user.Username] = &cp
	return nil
}

func (m *memUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, ok := m.byName[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	return user, nil
}

type fakeSnapshotter struct {
	userID string
	data   map[string][]models.Document
}

func (f *fakeSnapshotter) Snapshot(ctx context.Context, userID string, data map[string][]models.Document) (string, error) {
	f.userID = userID
	f.data = data
	return "snapshots/" + userID + "/test.json", nil
}

var testSecret = []byte("test-secret")

type fixture struct {
	srv   *httptest.Server
	docs  *memDocs
	users *memUsers
	snap  *fakeSnapshotter
}

func newServer(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		docs:  newMemDocs(),
		users: newMemUsers(),
		snap:  &fakeSnapshotter{},
	}
	log := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	h := NewHandler(f.docs, f.users, f.snap, testSecret, time.Hour, log)
	f.srv = httptest.NewServer(Router(h, 1000, 1000))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// registerAndLogin runs the real register and login flow and returns the
// user id and a valid token.
func registerAndLogin(t *testing.T, f *fixture, username string) (string, string) {
	t.Helper()
	creds := map[string]string{"username": username, "password": "hunter22"}

	resp := f.request(t, http.MethodPost, "/api/register", "", creds)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.request(t, http.MethodPost, "/api/login", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decode[map[string]string](t, resp)
	require.NotEmpty(t, session["token"])
	return session["userId"], session["token"]
}

func TestRegister(t *testing.T) {
	f := newServer(t)

	t.Run("creates user", func(t *testing.T) {
		resp := f.request(t, http.MethodPost, "/api/register", "",
			map[string]string{"username": "alice", "password": "hunter22"})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		body := decode[map[string]string](t, resp)
		assert.NotEmpty(t, body["userId"])
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		resp := f.request(t, http.MethodPost, "/api/register", "",
			map[string]string{"username": "alice", "password": "other"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		resp := f.request(t, http.MethodPost, "/api/register", "",
			map[string]string{"username": "bob"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newServer(t)
	registerAndLogin(t, f, "alice")

	resp := f.request(t, http.MethodPost, "/api/login", "",
		map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.request(t, http.MethodPost, "/api/login", "",
		map[string]string{"username": "nobody", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDocuments_PutGetList(t *testing.T) {
	f := newServer(t)
	uid, token := registerAndLogin(t, f, "alice")

	doc := map[string]any{"id": "r1", "fields": map[string]any{"v": 1}, "updatedAt": 42}
	resp := f.request(t, http.MethodPut, "/users/"+uid+"/accounts/r1", token, doc)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.request(t, http.MethodGet, "/users/"+uid+"/accounts/r1", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[models.Document](t, resp)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, int64(42), got.UpdatedAt)
	assert.JSONEq(t, `{"v":1}`, string(got.Fields))

	resp = f.request(t, http.MethodGet, "/users/"+uid+"/accounts", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]models.Document](t, resp)
	assert.Len(t, list, 1)
}

func TestListCollection_EmptyIsArray(t *testing.T) {
	f := newServer(t)
	uid, token := registerAndLogin(t, f, "alice")

	resp := f.request(t, http.MethodGet, "/users/"+uid+"/habits", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]models.Document](t, resp)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestGetDocument_NotFound(t *testing.T) {
	f := newServer(t)
	uid, token := registerAndLogin(t, f, "alice")

	resp := f.request(t, http.MethodGet, "/users/"+uid+"/accounts/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequireUser(t *testing.T) {
	f := newServer(t)
	uid, token := registerAndLogin(t, f, "alice")

	t.Run("missing token", func(t *testing.T) {
		resp := f.request(t, http.MethodGet, "/users/"+uid+"/accounts", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := f.request(t, http.MethodGet, "/users/"+uid+"/accounts", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("expired token", func(t *testing.T) {
		expired, err := auth.GenerateToken(uid, testSecret, -time.Minute)
		require.NoError(t, err)
		resp := f.request(t, http.MethodGet, "/users/"+uid+"/accounts", expired, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("token for another user", func(t *testing.T) {
		otherUID, _ := registerAndLogin(t, f, "mallory")
		resp := f.request(t, http.MethodGet, "/users/"+otherUID+"/accounts", token, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestBackup(t *testing.T) {
	f := newServer(t)
	uid, token := registerAndLogin(t, f, "alice")

	doc := map[string]any{"id": "r1", "fields": map[string]any{"v": 1}, "updatedAt": 42}
	resp := f.request(t, http.MethodPut, "/users/"+uid+"/accounts/r1", token, doc)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.request(t, http.MethodPost, "/users/"+uid+"/backup", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "snapshots/"+uid+"/test.json", body["key"])

	assert.Equal(t, uid, f.snap.userID)
	require.Contains(t, f.snap.data, "accounts")
	assert.Len(t, f.snap.data["accounts"], 1)
}

func TestBackup_NotConfigured(t *testing.T) {
	f := &fixture{docs: newMemDocs(), users: newMemUsers()}
	log := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	h := NewHandler(f.docs, f.users, nil, testSecret, time.Hour, log)
	f.srv = httptest.NewServer(Router(h, 1000, 1000))
	t.Cleanup(f.srv.Close)

	uid, token := registerAndLogin(t, f, "alice")
	resp := f.request(t, http.MethodPost, "/users/"+uid+"/backup", token, nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}
