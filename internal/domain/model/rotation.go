package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// RotationReport is the outcome of one key rotation pass.
type RotationReport struct {
	RunID      string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Tables     []TableResult
	Issues     []RowIssue
}

// TableResult counts the rows visited and re-encrypted in one table.
type TableResult struct {
	Type    SecretType
	Table   string
	Scanned int
	Updated int
}

// RowIssue records a row that rotation skipped. Reason is a generic
// description and never contains key material or plaintext.
type RowIssue struct {
	Severity IssueSeverity
	Type     SecretType
	Table    string
	ID       int64
	Reason   string
}

func (i RowIssue) String() string {
	return fmt.Sprintf("%s %s#%d: %s", i.Severity, i.Table, i.ID, i.Reason)
}

// Total returns the number of rows re-encrypted across all tables.
func (r *RotationReport) Total() int {
	total := 0
	for _, t := range r.Tables {
		total += t.Updated
	}
	return total
}

// Updated returns the number of rows re-encrypted for the given type.
func (r *RotationReport) Updated(t SecretType) int {
	for _, tr := range r.Tables {
		if tr.Type == t {
			return tr.Updated
		}
	}
	return 0
}

// Warnings returns the issues with SeverityWarning.
func (r *RotationReport) Warnings() []RowIssue {
	return r.filter(SeverityWarning)
}

// Errors returns the issues with SeverityError.
func (r *RotationReport) Errors() []RowIssue {
	return r.filter(SeverityError)
}

// Err combines every row error into a single error, or returns nil when the
// pass recorded none. Warnings are not included.
func (r *RotationReport) Err() error {
	var result *multierror.Error
	for _, issue := range r.Errors() {
		result = multierror.Append(result, errors.New(issue.String()))
	}
	return result.ErrorOrNil()
}

func (r *RotationReport) filter(severity IssueSeverity) []RowIssue {
	var out []RowIssue
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			out = append(out, issue)
		}
	}
	return out
}
