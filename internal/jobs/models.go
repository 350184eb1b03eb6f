package jobs

import (
	"encoding/json"
	"strings"
	"time"

	"holoexport/internal/export"
)

// Status represents the lifecycle of an export job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusComplete, StatusFailed}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// CancelledReason is the error message recorded when a job is cancelled by
// request rather than failing on its own.
const CancelledReason = "cancelled by request"

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Request captures the submission parameters stored with a job.
type Request struct {
	Source  string         `json:"source"`
	Format  export.Format  `json:"format"`
	Options export.Options `json:"options"`
}

// Marshal serializes the request for persistence.
func (r Request) Marshal() (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Job is one export request from submission to terminal outcome. Rows are
// mutated only through the store's transition methods.
type Job struct {
	ID           string
	Owner        string
	Format       export.Format
	Status       Status
	Progress     int
	RequestJSON  string
	ResultJSON   string
	ErrorMessage string
	OutputPath   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// Request decodes the stored submission parameters.
func (j *Job) Request() (Request, error) {
	var req Request
	if strings.TrimSpace(j.RequestJSON) == "" {
		return req, nil
	}
	err := json.Unmarshal([]byte(j.RequestJSON), &req)
	return req, err
}

// Result decodes the stored export result, nil when the job is not complete.
func (j *Job) Result() (*export.Result, error) {
	if strings.TrimSpace(j.ResultJSON) == "" {
		return nil, nil
	}
	var result export.Result
	if err := json.Unmarshal([]byte(j.ResultJSON), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthSummary aggregates job counts for diagnostic output.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Complete   int
	Failed     int
}
