package web

import (
	"time"

	vm "github.com/ericfisherdev/infrapanel/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/infrapanel/internal/domain/model"
)

// toRotationReportViewModel converts a domain RotationReport to its view model.
func toRotationReportViewModel(r *model.RotationReport) *vm.RotationReportViewModel {
	tables := make([]vm.TableResultViewModel, 0, len(r.Tables))
	for _, t := range r.Tables {
		tables = append(tables, vm.TableResultViewModel{
			Table:   t.Table,
			Scanned: t.Scanned,
			Updated: t.Updated,
		})
	}

	issues := make([]vm.IssueViewModel, 0, len(r.Issues))
	for _, i := range r.Issues {
		issues = append(issues, vm.IssueViewModel{
			Severity: string(i.Severity),
			Table:    i.Table,
			ID:       i.ID,
			Reason:   i.Reason,
		})
	}

	errCount := len(r.Errors())
	return &vm.RotationReportViewModel{
		RunID:      r.RunID,
		DryRun:     r.DryRun,
		StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
		Duration:   r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
		Tables:     tables,
		Issues:     issues,
		Total:      r.Total(),
		Warnings:   len(r.Warnings()),
		Errors:     errCount,
		Successful: errCount == 0,
	}
}
