package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"loan_report/internal/domain/report"
	"loan_report/internal/usecase/repository"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "loan_report/usecase"

// Options задает параметры генерации, не зависящие от источников данных.
type Options struct {
	// TemplateFile ключ шаблона в хранилище шаблонов.
	TemplateFile string
	// OutputFile шаблон имени выходного файла.
	OutputFile string
	// PDF включает экспорт в PDF.
	PDF bool
}

// Result описывает результат одного запуска.
type Result struct {
	ReportID     report.ID
	DocumentPath string
	PDFPath      string
	Published    []string
	Fields       report.Fields
}

// ReportService генерирует отчёт: токен, данные отчёта, заполнение шаблона,
// опционально PDF и публикация.
type ReportService struct {
	Tokens    repository.TokenSource
	Fetcher   repository.ReportFetcher
	Fillers   map[report.TemplateType]repository.TemplateFiller
	Templates repository.TemplateStorage
	Output    repository.OutputStorage
	Exporter  repository.DocumentExporter
	Publisher repository.ArtifactPublisher
	Options   Options

	logger *logrus.Entry
	tracer trace.Tracer
	now    func() time.Time
}

// NewReportService собирает сервис из зависимостей. exporter и publisher
// могут быть nil.
func NewReportService(
	tokens repository.TokenSource,
	fetcher repository.ReportFetcher,
	fillers map[report.TemplateType]repository.TemplateFiller,
	templates repository.TemplateStorage,
	output repository.OutputStorage,
	exporter repository.DocumentExporter,
	publisher repository.ArtifactPublisher,
	opts Options,
	logger *logrus.Entry,
) *ReportService {
	return &ReportService{
		Tokens:    tokens,
		Fetcher:   fetcher,
		Fillers:   fillers,
		Templates: templates,
		Output:    output,
		Exporter:  exporter,
		Publisher: publisher,
		Options:   opts,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
}

// Generate выполняет все шаги по порядку. Ошибка экспорта или публикации
// не удаляет уже записанный документ: Result.DocumentPath заполнен и вместе
// с ошибкой.
func (s *ReportService) Generate(ctx context.Context, id report.ID) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "report.generate", trace.WithAttributes(
		attribute.String("report.id", id.String()),
		attribute.Bool("report.pdf", s.Options.PDF),
	))
	defer span.End()

	start := time.Now()
	logger := s.logger.WithField("report_id", id)
	logger.Info("Начало генерации отчета")

	res, err := s.generate(ctx, id, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, report.KindOf(err).String())
		logger.WithError(err).WithField("kind", report.KindOf(err)).Error("Ошибка генерации отчета")
		return res, err
	}

	logger.WithFields(logrus.Fields{
		"document": res.DocumentPath,
		"pdf":      res.PDFPath,
		"duration": time.Since(start),
	}).Info("Отчет успешно сгенерирован")
	return res, nil
}

func (s *ReportService) generate(ctx context.Context, id report.ID, logger *logrus.Entry) (Result, error) {
	res := Result{ReportID: id}
	now := s.now()

	tmplType := report.TemplateTypeFromName(s.Options.TemplateFile)
	filler, ok := s.Fillers[tmplType]
	if !ok {
		return res, report.NewError(report.KindConfiguration, "select template filler",
			fmt.Errorf("unsupported template type: %s", s.Options.TemplateFile))
	}

	// Шаблон читается до сетевых вызовов.
	tmpl, err := s.loadTemplate(ctx)
	if err != nil {
		return res, err
	}

	stepCtx, span := s.tracer.Start(ctx, "report.authenticate")
	token, err := s.Tokens.Token(stepCtx)
	endSpan(span, err)
	if err != nil {
		return res, report.Classify(report.KindAuthentication, "token exchange", err)
	}
	logger.Debug("Токен получен")

	stepCtx, span = s.tracer.Start(ctx, "report.fetch")
	apiFields, err := s.Fetcher.FetchReport(stepCtx, token, id)
	endSpan(span, err)
	if err != nil {
		return res, report.Classify(report.KindFetch, "fetch report", err)
	}
	logger.WithField("fields", len(apiFields)).Info("Данные отчета получены")

	res.Fields = BuiltinFields(id, now).Merge(apiFields)

	_, span = s.tracer.Start(ctx, "report.render", trace.WithAttributes(
		attribute.String("template.type", tmplType.String()),
	))
	doc, err := filler.Fill(tmpl, res.Fields)
	endSpan(span, err)
	if err != nil {
		return res, report.Classify(report.KindRender, "fill template", err)
	}

	name := OutputName(s.Options.OutputFile, id, now, tmplType)
	if err := s.Output.Save(ctx, name, bytes.NewReader(doc)); err != nil {
		return res, report.NewError(report.KindRender, "write output document", err)
	}
	res.DocumentPath = s.Output.FullPath(name)
	logger.WithField("document", res.DocumentPath).Info("Документ записан")

	if s.Options.PDF {
		if s.Exporter == nil {
			return res, report.NewError(report.KindExport, "export pdf", fmt.Errorf("no PDF converter configured"))
		}
		stepCtx, span = s.tracer.Start(ctx, "report.export")
		res.PDFPath, err = s.Exporter.Export(stepCtx, res.DocumentPath)
		endSpan(span, err)
		if err != nil {
			return res, report.Classify(report.KindExport, "export pdf", err)
		}
	}

	if s.Publisher != nil {
		files := []string{res.DocumentPath}
		if res.PDFPath != "" {
			files = append(files, res.PDFPath)
		}
		stepCtx, span = s.tracer.Start(ctx, "report.publish")
		res.Published, err = s.Publisher.Publish(stepCtx, id.String(), files...)
		endSpan(span, err)
		if err != nil {
			return res, report.Classify(report.KindPublish, "publish artifacts", err)
		}
	}

	return res, nil
}

func (s *ReportService) loadTemplate(ctx context.Context) ([]byte, error) {
	rc, err := s.Templates.Get(ctx, s.Options.TemplateFile)
	if err != nil {
		return nil, report.NewError(report.KindRender, "load template", err)
	}
	defer rc.Close()

	tmpl, err := io.ReadAll(rc)
	if err != nil {
		return nil, report.NewError(report.KindRender, "read template", err)
	}
	return tmpl, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
