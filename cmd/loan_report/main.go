package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"loan_report/internal/di"
	"loan_report/internal/domain/report"

	flag "github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("loan_report", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: loan_report [flags] <report_id>")
		fs.PrintDefaults()
	}
	pdf := fs.Bool("pdf", false, "export the filled document to PDF")
	configFile := fs.String("config", "", "path to YAML config file")
	envFile := fs.String("env-file", ".env", "path to .env file with ENCOMPASS_* credentials")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return report.KindConfiguration.ExitCode()
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return report.KindConfiguration.ExitCode()
	}

	// Отмена по сигналу прерывает текущий сетевой вызов
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := di.Run(ctx, di.Options{
		ReportID:   fs.Arg(0),
		PDF:        *pdf,
		ConfigFile: *configFile,
		EnvFile:    *envFile,
	})
	if res.DocumentPath != "" {
		fmt.Println(res.DocumentPath)
	}
	if res.PDFPath != "" {
		fmt.Println(res.PDFPath)
	}
	for _, url := range res.Published {
		fmt.Println(url)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return report.KindOf(err).ExitCode()
	}
	return 0
}
