package repository

import (
	"context"

	"loan_report/internal/domain/report"
)

// TokenSource obtains the bearer token for the report API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ReportFetcher loads the field mapping of one report.
type ReportFetcher interface {
	FetchReport(ctx context.Context, token string, id report.ID) (report.Fields, error)
}

// DocumentExporter converts a rendered document to PDF and returns the PDF path.
type DocumentExporter interface {
	Export(ctx context.Context, docPath string) (string, error)
}

// ArtifactPublisher copies finished files to shared storage.
type ArtifactPublisher interface {
	Publish(ctx context.Context, reportID string, files ...string) ([]string, error)
}
