// Package models defines server-side persistence models.
package models

import "encoding/json"

// Document is one stored record of a user's collection. The JSON shape of
// the exported fields matches the client's record envelope.
type Document struct {
	UserID     string          `json:"-"`
	Collection string          `json:"-"`
	ID         string          `json:"id"`
	Fields     json.RawMessage `json:"fields"`
	UpdatedAt  int64           `json:"updatedAt"` // unix millis
	Deleted    bool            `json:"deleted"`
	DeletedAt  int64           `json:"deletedAt,omitempty"`
}

// User is an account row.
type User struct {
	ID           string
	Username     string
	PasswordHash string
}
