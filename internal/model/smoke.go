// internal/model/smoke.go
package model

import "time"

// Stage is one step of a CRUD smoke test.
type Stage string

const (
	StageCreate Stage = "create"
	StageRead   Stage = "read"
	StageUpdate Stage = "update"
	StageDelete Stage = "delete"
)

// Stages lists the smoke-test stages in execution order.
var Stages = []Stage{StageCreate, StageRead, StageUpdate, StageDelete}

type StageResult struct {
	Stage   Stage  `json:"stage"`
	Passed  bool   `json:"passed"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SmokeReport holds the per-stage outcome of one smoke run. Passed counts
// stages that actually succeeded, 0 through 4.
type SmokeReport struct {
	Collection string        `json:"collection"`
	RecordID   string        `json:"record_id,omitempty"`
	Passed     int           `json:"passed"`
	Stages     []StageResult `json:"stages"`
	LeakedID   string        `json:"leaked_id,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// PassRate returns the share of passed stages as a percentage.
func (r SmokeReport) PassRate() float64 {
	return float64(r.Passed) / float64(len(Stages)) * 100
}

// Stage returns the result recorded for s.
func (r SmokeReport) Stage(s Stage) (StageResult, bool) {
	for _, st := range r.Stages {
		if st.Stage == s {
			return st, true
		}
	}
	return StageResult{}, false
}

// SmokeCase is one input to a smoke suite.
type SmokeCase struct {
	Collection string `json:"collection" yaml:"collection"`
	Record     Record `json:"record" yaml:"record"`
	Update     Record `json:"update" yaml:"update"`
}

// AddStage appends the outcome of stage; a nil error counts as a pass.
func (r *SmokeReport) AddStage(stage Stage, err error) {
	res := StageResult{Stage: stage, Passed: err == nil}
	if err != nil {
		res.Error = err.Error()
	} else {
		r.Passed++
	}
	r.Stages = append(r.Stages, res)
}
