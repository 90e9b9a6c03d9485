// Package store defines the durable state shared by the cleaning service:
// per-identity usage counters and the history of committed cleanings.
//
// Implementations live in the sqlite and postgres subpackages. Both keep
// one usage row per identity and perform admission as a single
// conditional upsert, so the check and the increment can never interleave
// with another request.
package store

import (
	"context"
	"time"

	"github.com/JonMunkholm/csvclean/internal/quota"
)

// CleaningJob is the record of one committed cleaning.
type CleaningJob struct {
	ID           string     `json:"id"`
	Identity     string     `json:"identity"`
	Tier         quota.Tier `json:"tier"`
	FileName     string     `json:"file_name"`
	FileSize     int64      `json:"file_size"`
	OriginalRows int        `json:"original_rows"`
	FinalRows    int        `json:"final_rows"`
	Columns      int        `json:"columns"`
	ScoreBefore  float64    `json:"score_before"`
	ScoreAfter   float64    `json:"score_after"`
	Operations   []string   `json:"operations"`
	LLMError     string     `json:"llm_error,omitempty"`
	ProcessingMS int64      `json:"processing_ms"`
	CreatedAt    time.Time  `json:"created_at"`
}

// QualityImprovement is the score change the cleaning produced.
func (j CleaningJob) QualityImprovement() float64 {
	return j.ScoreAfter - j.ScoreBefore
}

// JobRecorder persists cleaning history.
type JobRecorder interface {
	RecordJob(ctx context.Context, job CleaningJob) error
	RecentJobs(ctx context.Context, identity string, limit int) ([]CleaningJob, error)
}

// Store is a durable backend for both counters and history.
type Store interface {
	quota.Counter
	JobRecorder
	Close() error
}
