// Package types defines core data structures for mailpurge.
package types

import "time"

// Run is one completed deletion pass for a sender, as kept in the history
// database.
type Run struct {
	ID            string        `json:"id"`
	Sender        string        `json:"sender"`
	Query         string        `json:"query"`
	Estimate      int64         `json:"estimate"`
	Limit         int           `json:"limit,omitempty"`
	Found         int           `json:"found"`
	Deleted       int           `json:"deleted"`
	FailedBatches int           `json:"failed_batches"`
	Elapsed       time.Duration `json:"elapsed"`
	StartedAt     string        `json:"started_at"`
	FinishedAt    string        `json:"finished_at"`
}

// Shortfall is how many found messages were not deleted.
func (r *Run) Shortfall() int {
	return r.Found - r.Deleted
}

// SenderTotal aggregates history for one sender.
type SenderTotal struct {
	Sender  string `json:"sender"`
	Runs    int    `json:"runs"`
	Deleted int    `json:"deleted"`
	LastRun string `json:"last_run"`
}

// HistorySummary is the JSON shape of `mailpurge history`.
type HistorySummary struct {
	Runs         []*Run        `json:"runs"`
	Senders      []SenderTotal `json:"senders,omitempty"`
	TotalDeleted int           `json:"total_deleted"`
}
