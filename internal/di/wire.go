package di

import (
	"context"
	"io"
	"net/http"
	"time"

	"loan_report/internal/config"
	"loan_report/internal/domain/report"
	"loan_report/internal/infrastructure/encompass"
	"loan_report/internal/infrastructure/export"
	"loan_report/internal/infrastructure/template"
	"loan_report/internal/otel"
	"loan_report/internal/storage"
	"loan_report/internal/usecase"
	"loan_report/internal/usecase/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

const (
	startTimeout = 15 * time.Second
	stopTimeout  = 30 * time.Second
)

// Options описывает один запуск генерации отчета.
type Options struct {
	// ReportID числовой идентификатор отчета из командной строки.
	ReportID string
	// PDF принудительно включает экспорт в PDF.
	PDF bool
	// ConfigFile путь к YAML-файлу конфигурации.
	ConfigFile string
	// EnvFile путь к .env файлу.
	EnvFile string
	// HTTPClient используется для запросов к Encompass; nil означает клиент по умолчанию.
	HTTPClient *http.Client
	// LogOutput куда писать логи; nil означает stderr.
	LogOutput io.Writer
}

// Run загружает конфигурацию, собирает граф зависимостей и генерирует отчет.
// Конфигурация проверяется до построения графа, поэтому ее ошибки
// возникают раньше любых сетевых вызовов.
func Run(ctx context.Context, opts Options) (usecase.Result, error) {
	id, err := report.ParseID(opts.ReportID)
	if err != nil {
		return usecase.Result{}, err
	}

	overrides := map[string]any{}
	if opts.PDF {
		overrides["export.pdf"] = true
	}
	cfg, err := config.Load(config.Options{
		ConfigFile: opts.ConfigFile,
		EnvFile:    opts.EnvFile,
		Overrides:  overrides,
	})
	if err != nil {
		return usecase.Result{}, err
	}

	var svc *usecase.ReportService
	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg),
		fx.Provide(
			func() *http.Client { return opts.HTTPClient },
			func(cfg config.Config) *logrus.Logger { return provideLogger(cfg, opts.LogOutput) },
			provideRunLogger,
			provideEncompassClient,
			storage.NewStorageBuilder,
			fx.Annotate(provideTemplateStorage, fx.ResultTags(`name:"templates"`)),
			fx.Annotate(provideOutputStorage, fx.ResultTags(`name:"output"`)),
			provideFillers,
			provideExporter,
			providePublisher,
			provideReportService,
		),
		fx.Invoke(registerTracing),
		fx.Populate(&svc),
	)
	if err := app.Err(); err != nil {
		return usecase.Result{}, report.Classify(report.KindConfiguration, "wire application", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return usecase.Result{}, report.Classify(report.KindConfiguration, "start application", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	return svc.Generate(ctx, id)
}

// provideLogger создает и настраивает логгер на основе конфигурации
func provideLogger(cfg config.Config, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	if out != nil {
		logger.SetOutput(out)
	}

	// Устанавливаем уровень логирования
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.WithError(err).Warn("Неверный уровень логирования, используется info")
	}
	logger.SetLevel(level)

	// Устанавливаем формат вывода
	switch cfg.Logging.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	logger.WithField("config", cfg.String()).Debug("Конфигурация загружена")
	return logger
}

// provideRunLogger добавляет идентификатор запуска ко всем записям
func provideRunLogger(logger *logrus.Logger) *logrus.Entry {
	return logger.WithField("run_id", uuid.NewString())
}

func provideEncompassClient(cfg config.Config, client *http.Client, logger *logrus.Logger) *encompass.Client {
	return encompass.NewClient(cfg.Encompass, client, logger)
}

func provideTemplateStorage(b *storage.StorageBuilder) (*storage.LocalStorage, error) {
	return b.Templates()
}

func provideOutputStorage(b *storage.StorageBuilder) (*storage.LocalStorage, error) {
	return b.Output()
}

func provideFillers() map[report.TemplateType]repository.TemplateFiller {
	return map[report.TemplateType]repository.TemplateFiller{
		report.TemplateDOCX: template.NewDOCX(),
		report.TemplateXLSX: template.NewXLSX(),
	}
}

// provideExporter возвращает nil, если экспорт в PDF не запрошен
func provideExporter(cfg config.Config, logger *logrus.Logger) (repository.DocumentExporter, error) {
	if !cfg.Export.PDF {
		return nil, nil
	}
	return export.NewFromConfig(cfg.Export, logger)
}

// providePublisher возвращает nil для локального хранилища
func providePublisher(b *storage.StorageBuilder) (repository.ArtifactPublisher, error) {
	p, err := b.Publisher()
	if err != nil || p == nil {
		return nil, err
	}
	return p, nil
}

type serviceParams struct {
	fx.In

	Config    config.Config
	Client    *encompass.Client
	Templates *storage.LocalStorage `name:"templates"`
	Output    *storage.LocalStorage `name:"output"`
	Fillers   map[report.TemplateType]repository.TemplateFiller
	Exporter  repository.DocumentExporter
	Publisher repository.ArtifactPublisher
	Logger    *logrus.Entry
}

func provideReportService(p serviceParams) *usecase.ReportService {
	return usecase.NewReportService(
		p.Client,
		p.Client,
		p.Fillers,
		p.Templates,
		p.Output,
		p.Exporter,
		p.Publisher,
		usecase.Options{
			TemplateFile: p.Config.Paths.TemplateFile,
			OutputFile:   p.Config.Paths.OutputFile,
			PDF:          p.Config.Export.PDF,
		},
		p.Logger,
	)
}

// registerTracing настраивает трассировку на время жизни приложения
func registerTracing(lc fx.Lifecycle, cfg config.Config, logger *logrus.Logger) {
	var shutdown func(context.Context) error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = otel.Init(ctx, cfg.Tracing, logger)
			return err
		},
		OnStop: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(ctx)
		},
	})
}
