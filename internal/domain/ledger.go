package domain

import "time"

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// LedgerEntry records the outcome for one document URL. URL is the natural
// key; the last write for a URL wins. RunID ties entries merged across runs
// back to the invocation that produced them.
type LedgerEntry struct {
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
}
