package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"loan_report/internal/domain/report"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Переменные окружения с учётными данными Encompass.
const (
	EnvUsername     = "ENCOMPASS_USERNAME"
	EnvPassword     = "ENCOMPASS_PASSWORD"
	EnvClientID     = "ENCOMPASS_CLIENT_ID"
	EnvClientSecret = "ENCOMPASS_CLIENT_SECRET"
)

// Encompass содержит учётные данные и адреса API Encompass.
type Encompass struct {
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	APIServer    string        `mapstructure:"api_server"`
	TokenURL     string        `mapstructure:"token_url"`
	ReportURL    string        `mapstructure:"report_url"`
	ReportMethod string        `mapstructure:"report_method"`
	FieldIDs     []string      `mapstructure:"field_ids"`
	Scope        string        `mapstructure:"scope"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Paths описывает расположение шаблонов и результатов.
type Paths struct {
	Templates    string `mapstructure:"templates"`
	TemplateFile string `mapstructure:"template_file"`
	Output       string `mapstructure:"output"`
	OutputFile   string `mapstructure:"output_file"`
}

// Export содержит настройки конвертации в PDF.
type Export struct {
	PDF           bool   `mapstructure:"pdf"`
	Converter     string `mapstructure:"converter"`
	Credentials   string `mapstructure:"credentials"`
	TokenFile     string `mapstructure:"token_file"`
	SofficeBinary string `mapstructure:"soffice_binary"`
}

// Storage описывает, куда дополнительно публикуются готовые файлы.
type Storage struct {
	Type   string `mapstructure:"type"`
	Prefix string `mapstructure:"prefix"`
	S3     S3     `mapstructure:"s3"`
}

// S3 содержит настройки для S3-совместимого хранилища.
type S3 struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// Logging содержит настройки логирования.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Tracing содержит настройки OpenTelemetry.
type Tracing struct {
	Enabled     bool    `mapstructure:"enabled"`
	Protocol    string  `mapstructure:"protocol"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Config объединяет все разделы конфигурации.
type Config struct {
	Encompass Encompass `mapstructure:"encompass"`
	Paths     Paths     `mapstructure:"paths"`
	Export    Export    `mapstructure:"export"`
	Storage   Storage   `mapstructure:"storage"`
	Logging   Logging   `mapstructure:"logging"`
	Tracing   Tracing   `mapstructure:"tracing"`
}

// Options управляет источниками конфигурации.
type Options struct {
	// ConfigFile явно задаёт путь к YAML-файлу; пустое значение включает поиск.
	ConfigFile string
	// EnvFile загружается в окружение до чтения конфигурации, если существует.
	EnvFile string
	// Overrides применяются поверх файла и окружения (флаги командной строки).
	Overrides map[string]any
}

// Load читает конфигурацию из файла и окружения с помощью viper.
// Отсутствие любой из переменных ENCOMPASS_* возвращает ошибку конфигурации.
func Load(opts Options) (Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, report.NewError(report.KindConfiguration, "load env file", err)
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/loan-report")
	}

	// Настройка для environment variables
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnvironmentVariables(v); err != nil {
		return Config{}, report.NewError(report.KindConfiguration, "bind env", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, report.NewError(report.KindConfiguration, "read config file", err)
		}
		// Файл не найден: продолжаем с окружением и значениями по умолчанию
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, report.NewError(report.KindConfiguration, "unmarshal config", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, report.NewError(report.KindConfiguration, "validate config", err)
	}

	return cfg, nil
}

// setDefaults устанавливает значения по умолчанию
func setDefaults(v *viper.Viper) {
	// Encompass defaults
	v.SetDefault("encompass.api_server", "https://api.elliemae.com")
	v.SetDefault("encompass.token_url", "{api_server}/oauth2/v1/token")
	v.SetDefault("encompass.report_url", "{api_server}/encompass/v3/loans/{report_id}/fieldReader?invalidFieldBehavior=Include")
	v.SetDefault("encompass.report_method", "POST")
	v.SetDefault("encompass.field_ids", []string{})
	v.SetDefault("encompass.scope", "lp")
	v.SetDefault("encompass.timeout", 60*time.Second)

	// Paths defaults
	v.SetDefault("paths.templates", "./templates")
	v.SetDefault("paths.template_file", "report.docx")
	v.SetDefault("paths.output", "./output")
	v.SetDefault("paths.output_file", "report_{report_id}")

	// Export defaults
	v.SetDefault("export.pdf", false)
	v.SetDefault("export.converter", "gdrive")
	v.SetDefault("export.credentials", "credentials.json")
	v.SetDefault("export.token_file", "token.json")
	v.SetDefault("export.soffice_binary", "soffice")

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.prefix", "reports")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.protocol", "grpc")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "loan-report")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// bindEnvironmentVariables привязывает переменные окружения к конфигурации
func bindEnvironmentVariables(v *viper.Viper) error {
	bindings := map[string]string{
		// Учётные данные без префикса APP
		"encompass.username":      EnvUsername,
		"encompass.password":      EnvPassword,
		"encompass.client_id":     EnvClientID,
		"encompass.client_secret": EnvClientSecret,

		"encompass.api_server": "APP_ENCOMPASS_API_SERVER",
		"paths.templates":      "APP_PATHS_TEMPLATES",
		"paths.output":         "APP_PATHS_OUTPUT",
		"export.credentials":   "APP_EXPORT_CREDENTIALS",
		"storage.type":         "APP_STORAGE_TYPE",
		"storage.s3.bucket":    "APP_STORAGE_S3_BUCKET",
		"logging.level":        "APP_LOGGING_LEVEL",
		"logging.format":       "APP_LOGGING_FORMAT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

// Validate проверяет корректность конфигурации
func (c Config) Validate() error {
	var missing []string
	if c.Encompass.Username == "" {
		missing = append(missing, EnvUsername)
	}
	if c.Encompass.Password == "" {
		missing = append(missing, EnvPassword)
	}
	if c.Encompass.ClientID == "" {
		missing = append(missing, EnvClientID)
	}
	if c.Encompass.ClientSecret == "" {
		missing = append(missing, EnvClientSecret)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.Encompass.APIServer == "" {
		return fmt.Errorf("encompass api_server cannot be empty")
	}
	if c.Encompass.ReportURL == "" {
		return fmt.Errorf("encompass report_url cannot be empty")
	}
	if !strings.Contains(c.Encompass.ReportURL, "{report_id}") {
		return fmt.Errorf("encompass report_url must contain {report_id}: %s", c.Encompass.ReportURL)
	}
	switch strings.ToUpper(c.Encompass.ReportMethod) {
	case "GET", "POST":
	default:
		return fmt.Errorf("encompass report_method must be GET or POST, got: %s", c.Encompass.ReportMethod)
	}

	if c.Paths.TemplateFile == "" {
		return fmt.Errorf("paths template_file cannot be empty")
	}
	if report.TemplateTypeFromName(c.Paths.TemplateFile) == report.TemplateUnknown {
		return fmt.Errorf("paths template_file must be .docx or .xlsx, got: %s", c.Paths.TemplateFile)
	}
	if c.Paths.Output == "" {
		return fmt.Errorf("paths output cannot be empty")
	}

	if c.Export.Converter != "gdrive" && c.Export.Converter != "soffice" {
		return fmt.Errorf("export converter must be 'gdrive' or 'soffice', got: %s", c.Export.Converter)
	}

	// Проверка настроек хранилища
	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("storage type must be 'local' or 's3', got: %s", c.Storage.Type)
	}
	if c.Storage.Type == "s3" {
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("S3 region cannot be empty")
		}
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
	}

	// Проверка уровня логирования
	validLogLevels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}
	isValidLevel := false
	for _, level := range validLogLevels {
		if strings.ToLower(c.Logging.Level) == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("invalid logging level: %s. Valid levels: %v", c.Logging.Level, validLogLevels)
	}

	if c.Tracing.Enabled && c.Tracing.Protocol != "grpc" && c.Tracing.Protocol != "http" {
		return fmt.Errorf("tracing protocol must be 'grpc' or 'http', got: %s", c.Tracing.Protocol)
	}

	return nil
}

// Expand подставляет {api_server} в URL-шаблон Encompass.
func (e Encompass) Expand(tmpl string) string {
	return strings.ReplaceAll(tmpl, "{api_server}", strings.TrimRight(e.APIServer, "/"))
}

// String возвращает строковое представление конфигурации (без чувствительных данных)
func (c Config) String() string {
	return fmt.Sprintf("Config{Encompass: {APIServer: %s, Username: %s, ClientID: %s, Password: [HIDDEN], ClientSecret: [HIDDEN]}, Paths: %+v, Export: {PDF: %t, Converter: %s}, Storage: {Type: %s, Bucket: %s}, Logging: %+v}",
		c.Encompass.APIServer, c.Encompass.Username, c.Encompass.ClientID, c.Paths,
		c.Export.PDF, c.Export.Converter, c.Storage.Type, c.Storage.S3.Bucket, c.Logging)
}
