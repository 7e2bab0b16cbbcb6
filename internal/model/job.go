// internal/model/job.go
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobKind string

const (
	JobDiscover JobKind = "discover"
	JobSmoke    JobKind = "smoke"
)

// Job is a maintenance run submitted through the job queue.
type Job struct {
	ID          uuid.UUID `json:"id"`
	Kind        JobKind   `json:"kind"`
	Collection  string    `json:"collection"`
	Candidates  []Record  `json:"candidates,omitempty"`
	Persist     bool      `json:"persist,omitempty"`
	Record      Record    `json:"record,omitempty"`
	Update      Record    `json:"update,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Report is the persisted outcome of a job or a direct run.
type Report struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Kind       JobKind         `json:"kind" db:"kind"`
	Collection string          `json:"collection" db:"collection"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
