package repository

import (
	"context"
	"io"

	"loan_report/internal/domain/report"
)

// TemplateFiller fills template bytes using provided fields.
type TemplateFiller interface {
	Fill(tmpl []byte, fields report.Fields) ([]byte, error)
}

// TemplateStorage provides access to template files.
type TemplateStorage interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// OutputStorage persists rendered documents on the local filesystem.
type OutputStorage interface {
	Save(ctx context.Context, key string, reader io.Reader) error
	FullPath(key string) string
}
