package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"loan_report/internal/config"
	"loan_report/internal/domain/report"

	"github.com/sirupsen/logrus"
)

// OfficeConverter converts documents with a headless LibreOffice.
type OfficeConverter struct {
	binary string
	logger *logrus.Logger
}

// NewOfficeConverter builds a converter that runs cfg.SofficeBinary.
func NewOfficeConverter(cfg config.Export, logger *logrus.Logger) *OfficeConverter {
	return &OfficeConverter{binary: cfg.SofficeBinary, logger: logger}
}

// Export runs soffice --convert-to pdf into the document's own directory.
func (c *OfficeConverter) Export(ctx context.Context, docPath string) (string, error) {
	outDir := filepath.Dir(docPath)
	cmd := exec.CommandContext(ctx, c.binary,
		"--headless", "--convert-to", "pdf", "--outdir", outDir, docPath)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(output.String())
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return "", report.NewError(report.KindExport, "run "+c.binary, err)
	}

	pdfPath := pdfPathFor(docPath)
	if _, err := os.Stat(pdfPath); err != nil {
		return "", report.NewError(report.KindExport, "run "+c.binary,
			fmt.Errorf("converter produced no output at %s", pdfPath))
	}

	c.logger.WithFields(logrus.Fields{
		"pdf":      pdfPath,
		"duration": time.Since(start),
	}).Info("Exported PDF via LibreOffice")
	return pdfPath, nil
}
