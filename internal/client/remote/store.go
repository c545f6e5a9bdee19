// Package remote defines the client side of the remote document store: a
// generic per-user, per-collection store addressed as
// users/{uid}/{collection}/{recordId}, plus the auth calls the agent needs to
// obtain a session.
package remote

import (
	"context"

	"github.com/mpetrenko/homeledger/internal/client/models"
)

// Session is the result of a successful login.
type Session struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// Store is the remote document store contract. Put is a merge-write: fields
// present in the document replace their remote counterparts, fields absent
// from it are left alone. List is a full collection read.
type Store interface {
	// Ping probes reachability. Failure means "offline" to the
	// connectivity monitor.
	Ping(ctx context.Context) error

	// Register creates an account.
	Register(ctx context.Context, username, password string) error

	// Login exchanges credentials for a session.
	Login(ctx context.Context, username, password string) (*Session, error)

	// Put merge-writes one document.
	Put(ctx context.Context, uid, collection string, rec *models.Record) error

	// List reads the whole collection, tombstones included.
	List(ctx context.Context, uid, collection string) ([]models.Record, error)

	// Backup asks the server to snapshot all of the user's collections to
	// durable object storage.
	Backup(ctx context.Context, uid string) error
}
