package di

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"loan_report/internal/config"
	"loan_report/internal/domain/report"
	"loan_report/internal/infrastructure/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
	`<w:p><w:r><w:t>Borrower: {{ name }}</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t xml:space="preserve">Balance: {{ bal</w:t></w:r><w:r><w:t>ance }}</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Loan {{ report_id }}</w:t></w:r></w:p>` +
	`</w:body></w:document>`

// countingTransport counts requests that reach the network layer.
type countingTransport struct {
	calls atomic.Int32
	base  http.RoundTripper
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return c.base.RoundTrip(r)
}

type env struct {
	dir        string
	outputDir  string
	transport  *countingTransport
	tokenHits  atomic.Int32
	reportHits atomic.Int32
	authStatus int
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	e := &env{dir: t.TempDir(), authStatus: http.StatusOK}
	e.transport = &countingTransport{base: http.DefaultTransport}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v1/token", func(w http.ResponseWriter, r *http.Request) {
		e.tokenHits.Add(1)
		if e.authStatus != http.StatusOK {
			w.WriteHeader(e.authStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-123", "token_type": "Bearer"})
	})
	mux.HandleFunc("/encompass/v3/loans/12345/fieldReader", func(w http.ResponseWriter, r *http.Request) {
		e.reportHits.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name": "Jane Doe", "balance": "1000.00"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	templates := filepath.Join(e.dir, "templates")
	require.NoError(t, os.MkdirAll(templates, 0o755))
	writeTemplate(t, filepath.Join(templates, "report.docx"))
	e.outputDir = filepath.Join(e.dir, "output")

	t.Setenv(config.EnvUsername, "analyst")
	t.Setenv(config.EnvPassword, "s3cret")
	t.Setenv(config.EnvClientID, "client")
	t.Setenv(config.EnvClientSecret, "client-secret")
	t.Setenv("APP_ENCOMPASS_API_SERVER", srv.URL)
	t.Setenv("APP_PATHS_TEMPLATES", templates)
	t.Setenv("APP_PATHS_OUTPUT", e.outputDir)
	t.Setenv("APP_EXPORT_CREDENTIALS", filepath.Join(e.dir, "credentials.json"))
	t.Setenv("APP_STORAGE_TYPE", "local")
	return e
}

func (e *env) options(pdf bool) Options {
	return Options{
		ReportID:   "12345",
		PDF:        pdf,
		HTTPClient: &http.Client{Transport: e.transport},
		LogOutput:  io.Discard,
	}
}

func writeTemplate(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = io.WriteString(w, documentXML)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestRunGeneratesDocument(t *testing.T) {
	e := setupEnv(t)

	res, err := Run(context.Background(), e.options(false))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(e.outputDir, "report_12345.docx"), res.DocumentPath)
	assert.Equal(t, int32(1), e.tokenHits.Load())
	assert.Equal(t, int32(1), e.reportHits.Load())

	out, err := os.ReadFile(res.DocumentPath)
	require.NoError(t, err)
	text, err := template.DocumentText(out)
	require.NoError(t, err)
	assert.Equal(t, "Borrower: Jane Doe\nBalance: 1000.00\nLoan 12345", text)
	assert.NotContains(t, text, "{{")
}

func TestRunMissingCredentialMakesNoRequests(t *testing.T) {
	for _, name := range []string{config.EnvUsername, config.EnvPassword, config.EnvClientID, config.EnvClientSecret} {
		t.Run(name, func(t *testing.T) {
			e := setupEnv(t)
			t.Setenv(name, "")

			_, err := Run(context.Background(), e.options(false))
			require.Error(t, err)
			assert.Equal(t, report.KindConfiguration, report.KindOf(err))
			assert.Equal(t, 2, report.KindOf(err).ExitCode())
			assert.Equal(t, int32(0), e.transport.calls.Load())
			assert.NoDirExists(t, e.outputDir)
		})
	}
}

func TestRunInvalidReportID(t *testing.T) {
	e := setupEnv(t)
	opts := e.options(false)
	opts.ReportID = "12a"

	_, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.Equal(t, report.KindConfiguration, report.KindOf(err))
	assert.Equal(t, int32(0), e.transport.calls.Load())
}

func TestRunAuthFailureSkipsReport(t *testing.T) {
	e := setupEnv(t)
	e.authStatus = http.StatusUnauthorized

	_, err := Run(context.Background(), e.options(false))
	require.Error(t, err)
	assert.Equal(t, report.KindAuthentication, report.KindOf(err))
	assert.Equal(t, int32(1), e.tokenHits.Load())
	assert.Equal(t, int32(0), e.reportHits.Load())
}

func TestRunPDFWithoutCredentialsKeepsDocument(t *testing.T) {
	e := setupEnv(t)

	res, err := Run(context.Background(), e.options(true))
	require.Error(t, err)
	assert.Equal(t, report.KindExport, report.KindOf(err))
	assert.Contains(t, err.Error(), "credentials file not found")

	assert.FileExists(t, filepath.Join(e.outputDir, "report_12345.docx"))
	assert.Equal(t, filepath.Join(e.outputDir, "report_12345.docx"), res.DocumentPath)
	assert.NoFileExists(t, filepath.Join(e.outputDir, "report_12345.pdf"))
}
