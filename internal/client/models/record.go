// Package models defines the client-side data model: the generic syncable
// Record envelope, the outbox Operation, and typed views (transactions,
// recurring templates) that encode into Record fields.
package models

import (
	"encoding/json"
	"fmt"
)

// Syncable collection names. Remote documents live under
// users/{uid}/{collection}/{recordId}.
const (
	CollectionAccounts       = "accounts"
	CollectionTransactions   = "transactions"
	CollectionBudgets        = "budgets"
	CollectionHabits         = "habits"
	CollectionBooks          = "books"
	CollectionJournalEntries = "journal_entries"
	CollectionTemplates      = "recurring_templates"
)

// SyncableCollections lists every collection the reconciliation engine
// pushes and pulls. Order is not significant.
var SyncableCollections = []string{
	CollectionAccounts,
	CollectionTransactions,
	CollectionBudgets,
	CollectionHabits,
	CollectionBooks,
	CollectionJournalEntries,
	CollectionTemplates,
}

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
)

// Record is the envelope every syncable entity is stored and shipped in.
// Domain fields live in Fields as JSON; the envelope carries only what the
// store and the reconciliation engine need.
//
// Invariant: every local mutation sets UpdatedAt to "now" and SyncStatus to
// SyncPending. Deletions are soft — Deleted/DeletedAt tombstones propagate
// through sync like any other change.
type Record struct {
	ID         string          `json:"id"`
	Fields     json.RawMessage `json:"fields"`
	UpdatedAt  int64           `json:"updatedAt"` // unix millis
	SyncStatus SyncStatus      `json:"-"`
	Deleted    bool            `json:"deleted"`
	DeletedAt  int64           `json:"deletedAt,omitempty"`
}

// DecodeFields unmarshals the record's domain fields into v.
func (r *Record) DecodeFields(v any) error {
	if len(r.Fields) == 0 {
		return fmt.Errorf("record %s has no fields", r.ID)
	}
	if err := json.Unmarshal(r.Fields, v); err != nil {
		return fmt.Errorf("failed to decode record %s: %w", r.ID, err)
	}
	return nil
}

// NewRecord builds a pending record around the given domain value.
func NewRecord(id string, fields any, now int64) (*Record, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	return &Record{
		ID:         id,
		Fields:     raw,
		UpdatedAt:  now,
		SyncStatus: SyncPending,
	}, nil
}
