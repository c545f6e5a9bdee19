package models

import "encoding/json"

type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

type OpStatus string

const (
	OpPending   OpStatus = "pending"
	OpSyncing   OpStatus = "syncing"
	OpCompleted OpStatus = "completed"
	OpFailed    OpStatus = "failed"
)

// Operation is one queued mutation awaiting transmission. It is written in
// the same transaction as the record change it describes, so a crash can
// never separate the two. Payload carries the full record envelope, making
// the operation independently replayable.
type Operation struct {
	ID         int64           `json:"id"`
	Type       OpType          `json:"type"`
	Collection string          `json:"collection"`
	RecordID   string          `json:"recordId"`
	Payload    json.RawMessage `json:"payload"`
	Status     OpStatus        `json:"status"`
	RetryCount int             `json:"retryCount"`
	LastError  string          `json:"lastError,omitempty"`
	Timestamp  int64           `json:"timestamp"` // unix millis, enqueue time
}
