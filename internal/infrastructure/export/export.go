// Package export converts rendered documents to PDF.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"loan_report/internal/config"
	"loan_report/internal/domain/report"

	"github.com/sirupsen/logrus"
)

// Converter writes a PDF rendition of docPath and returns its path.
type Converter interface {
	Export(ctx context.Context, docPath string) (string, error)
}

// NewFromConfig selects the converter named in cfg.Converter.
func NewFromConfig(cfg config.Export, logger *logrus.Logger) (Converter, error) {
	switch cfg.Converter {
	case "gdrive", "":
		return NewDriveConverter(cfg, logger), nil
	case "soffice":
		return NewOfficeConverter(cfg, logger), nil
	default:
		return nil, report.NewError(report.KindConfiguration, "select converter",
			fmt.Errorf("unsupported converter: %s", cfg.Converter))
	}
}

func pdfPathFor(docPath string) string {
	return strings.TrimSuffix(docPath, filepath.Ext(docPath)) + ".pdf"
}
