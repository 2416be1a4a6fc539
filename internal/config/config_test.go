package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"loan_report/internal/domain/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv(EnvUsername, "analyst")
	t.Setenv(EnvPassword, "s3cret")
	t.Setenv(EnvClientID, "client")
	t.Setenv(EnvClientSecret, "client-secret")
}

func TestLoadDefaults(t *testing.T) {
	setCredentials(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "analyst", cfg.Encompass.Username)
	assert.Equal(t, "client", cfg.Encompass.ClientID)
	assert.Equal(t, "lp", cfg.Encompass.Scope)
	assert.Equal(t, "POST", cfg.Encompass.ReportMethod)
	assert.Equal(t, 60*time.Second, cfg.Encompass.Timeout)
	assert.Equal(t, "report.docx", cfg.Paths.TemplateFile)
	assert.Equal(t, "gdrive", cfg.Export.Converter)
	assert.False(t, cfg.Export.PDF)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMissingCredential(t *testing.T) {
	for _, env := range []string{EnvUsername, EnvPassword, EnvClientID, EnvClientSecret} {
		t.Run(env, func(t *testing.T) {
			setCredentials(t)
			t.Setenv(env, "")

			_, err := Load(Options{})
			require.Error(t, err)
			assert.True(t, report.IsKind(err, report.KindConfiguration))
			assert.Contains(t, err.Error(), env)
		})
	}
}

func TestLoadFromFileAndOverrides(t *testing.T) {
	setCredentials(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	content := `
encompass:
  api_server: https://encompass.example.com/
  report_method: get
  field_ids: ["2", "1401", "317"]
paths:
  template_file: summary.xlsx
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	cfg, err := Load(Options{
		ConfigFile: file,
		Overrides:  map[string]any{"export.pdf": true},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2", "1401", "317"}, cfg.Encompass.FieldIDs)
	assert.Equal(t, "summary.xlsx", cfg.Paths.TemplateFile)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Export.PDF)
	assert.Equal(t, "https://encompass.example.com/oauth2/v1/token", cfg.Encompass.Expand(cfg.Encompass.TokenURL))
}

func TestLoadEnvFile(t *testing.T) {
	setCredentials(t)
	t.Setenv(EnvClientSecret, "")
	os.Unsetenv(EnvClientSecret)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(EnvClientSecret+"=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv(EnvClientSecret) })

	cfg, err := Load(Options{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Encompass.ClientSecret)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	setCredentials(t)

	_, err := Load(Options{EnvFile: filepath.Join(t.TempDir(), "absent.env")})
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		Encompass: Encompass{
			Username: "u", Password: "p", ClientID: "c", ClientSecret: "s",
			APIServer: "https://api", ReportURL: "{api_server}/r/{report_id}", ReportMethod: "GET",
		},
		Paths:   Paths{TemplateFile: "report.docx", Output: "./out"},
		Export:  Export{Converter: "gdrive"},
		Storage: Storage{Type: "local"},
		Logging: Logging{Level: "info"},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"report url without id", func(c *Config) { c.Encompass.ReportURL = "{api_server}/r" }, "{report_id}"},
		{"bad method", func(c *Config) { c.Encompass.ReportMethod = "PUT" }, "report_method"},
		{"bad template", func(c *Config) { c.Paths.TemplateFile = "report.pdf" }, "template_file"},
		{"bad converter", func(c *Config) { c.Export.Converter = "word" }, "converter"},
		{"bad storage", func(c *Config) { c.Storage.Type = "ftp" }, "storage type"},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3"; c.Storage.S3.Region = "us-east-1" }, "bucket"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging level"},
		{"bad tracing protocol", func(c *Config) { c.Tracing = Tracing{Enabled: true, Protocol: "udp"} }, "tracing protocol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStringHidesSecrets(t *testing.T) {
	cfg := Config{Encompass: Encompass{Username: "analyst", Password: "hunter2", ClientSecret: "topsecret"}}
	s := cfg.String()
	assert.Contains(t, s, "analyst")
	assert.NotContains(t, s, "hunter2")
	assert.NotContains(t, s, "topsecret")
}
