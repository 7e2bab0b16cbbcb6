// internal/model/probe.go
package model

// RejectionKind classifies why the remote store refused a record.
type RejectionKind string

const (
	RejectUnknownColumn   RejectionKind = "unknown_column"
	RejectMissingRequired RejectionKind = "missing_required"
	RejectInvalidValue    RejectionKind = "invalid_value"
	RejectOther           RejectionKind = "other"
)

// ProbeAttempt is the outcome of inserting one candidate shape.
type ProbeAttempt struct {
	Index    int           `json:"index"`
	Shape    Record        `json:"shape"`
	Accepted bool          `json:"accepted"`
	Kind     RejectionKind `json:"kind,omitempty"`
	Column   string        `json:"column,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// ProbeResult is the outcome of a discovery run over an ordered list of
// candidate shapes. Index is -1 when no candidate was accepted. Columns
// lists every column seen when the accepted probe row was read back.
type ProbeResult struct {
	Collection     string         `json:"collection"`
	Matched        bool           `json:"matched"`
	Index          int            `json:"index"`
	Shape          Record         `json:"shape,omitempty"`
	Columns        []string       `json:"columns,omitempty"`
	Attempts       []ProbeAttempt `json:"attempts"`
	AbsentFields   []string       `json:"absent_fields"`
	RequiredFields []string       `json:"required_fields"`
	ProbeID        string         `json:"probe_id,omitempty"`
	LeakedID       string         `json:"leaked_id,omitempty"`
}
