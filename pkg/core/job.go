package core

import (
	"time"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job represents one persisted unit of asynchronous work tied to a
// tenant, topic, and intent.
//
// A job is eligible for claim iff Status is queued and NextRunAt is
// nil or not after now. The only legal transitions are
// queued -> processing (via a conditional claim) and
// processing -> completed | failed | queued (requeue on retry or
// stuck-job recovery).
type Job struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	// Routing
	TenantID string `gorm:"index;size:255;not null"`
	Topic    string `gorm:"size:255;not null"`
	Intent   string `gorm:"index;size:255;not null"`

	// Payload is an opaque JSON blob decoded only by the handler.
	// Size is bounded at enqueue time; the queue never inspects it.
	Payload []byte `gorm:"type:bytes"`

	// Dedup keys. ExternalID is the upstream delivery id; DedupEntityID
	// is a domain id (e.g. an order id) used to collapse bursts of
	// same-entity updates while one is in flight. Either may be empty.
	ExternalID    string `gorm:"index;size:255"`
	DedupEntityID string `gorm:"index;size:255"`

	// Lifecycle
	Status     JobStatus  `gorm:"index;size:20;default:'queued'"`
	Attempts   int        `gorm:"default:0"`
	NextRunAt  *time.Time `gorm:"index"`
	StartedAt  *time.Time
	FinishedAt *time.Time
	LastError  string     `gorm:"type:text"`

	// EventTime is the upstream event timestamp. Informational only,
	// never used for ordering.
	EventTime *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Terminal reports whether the job reached a terminal status.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Due reports whether the job is eligible to run at t.
func (j *Job) Due(t time.Time) bool {
	if j.Status != StatusQueued {
		return false
	}
	return j.NextRunAt == nil || !j.NextRunAt.After(t)
}
