// Package httpapi exposes the document store over HTTP: registration and
// login, per-user per-collection document reads and merge-writes, and the
// snapshot backup trigger.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mpetrenko/homeledger/internal/common"
	"github.com/mpetrenko/homeledger/internal/logging"
	"github.com/mpetrenko/homeledger/internal/server/auth"
	"github.com/mpetrenko/homeledger/internal/server/backup"
	"github.com/mpetrenko/homeledger/internal/server/models"
	"github.com/mpetrenko/homeledger/internal/server/repositories/documents"
	"github.com/mpetrenko/homeledger/internal/server/repositories/users"
)

type Handler struct {
	docs      documents.Repository
	users     users.Repository
	snapshots backup.Snapshotter // nil disables backups
	secret    []byte
	expiry    time.Duration
	log       logging.Logger
}

func NewHandler(docs documents.Repository, usersRepo users.Repository, snapshots backup.Snapshotter,
	secret []byte, expiry time.Duration, log logging.Logger) *Handler {
	return &Handler{
		docs:      docs,
		users:     usersRepo,
		snapshots: snapshots,
		secret:    secret,
		expiry:    expiry,
		log:       log,
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	user := &models.User{ID: uuid.NewString(), Username: creds.Username, PasswordHash: string(hash)}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, users.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"userId": user.ID})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.GetByUsername(r.Context(), creds.Username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.serverError(w, r, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(user.ID, h.secret, h.expiry)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token, "userId": user.ID})
}

// PutDocument merge-writes one document of the authenticated user.
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	doc := models.Document{
		UserID:     chi.URLParam(r, "uid"),
		Collection: chi.URLParam(r, "collection"),
	}
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid document body")
		return
	}
	doc.ID = chi.URLParam(r, "id")
	if len(doc.Fields) == 0 {
		doc.Fields = []byte(`{}`)
	}

	if err := h.docs.Upsert(r.Context(), &doc); err != nil {
		h.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.Get(r.Context(),
		chi.URLParam(r, "uid"), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ListCollection returns the whole collection, tombstones included, so the
// client can apply its conflict rule against every remote document.
func (h *Handler) ListCollection(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.List(r.Context(), chi.URLParam(r, "uid"), chi.URLParam(r, "collection"))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		writeError(w, http.StatusNotImplemented, "backups are not configured")
		return
	}
	uid := chi.URLParam(r, "uid")

	data, err := h.docs.ListAll(r.Context(), uid)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	key, err := h.snapshots.Snapshot(r.Context(), uid, data)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.log.Info(r.Context(), "snapshot stored", "user", uid, "key", key)
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
