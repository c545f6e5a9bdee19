package models

// Transaction is a single ledger movement. Materialized occurrences of a
// recurring template carry the template id so re-runs are traceable.
type Transaction struct {
	ID          string `json:"id"`
	AccountID   string `json:"accountId"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"` // minor currency units
	Kind        string `json:"kind"`   // income or expense
	Category    string `json:"category,omitempty"`
	Date        int64  `json:"date"` // unix millis, occurrence date
	TemplateID  string `json:"templateId,omitempty"`
}
