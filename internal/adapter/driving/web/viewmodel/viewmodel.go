// Package viewmodel defines presentation-ready structs for the HTML templates.
// View models decouple template rendering from domain model types.
package viewmodel

// RotationPageViewModel holds everything the key rotation page renders.
type RotationPageViewModel struct {
	Username  string
	CSRFToken string
	Error     string
	Report    *RotationReportViewModel
}

// RotationReportViewModel is the outcome of one rotation run.
type RotationReportViewModel struct {
	RunID      string
	DryRun     bool
	StartedAt  string
	Duration   string
	Tables     []TableResultViewModel
	Issues     []IssueViewModel
	Total      int
	Warnings   int
	Errors     int
	Successful bool
}

// TableResultViewModel is one row of the per-table summary.
type TableResultViewModel struct {
	Table   string
	Scanned int
	Updated int
}

// IssueViewModel is one skipped row. Reason is generic and never carries
// secret material.
type IssueViewModel struct {
	Severity string
	Table    string
	ID       int64
	Reason   string
}
