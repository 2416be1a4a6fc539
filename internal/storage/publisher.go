package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Publisher загружает готовые файлы отчета в хранилище под <prefix>/<report_id>/.
type Publisher struct {
	storage Storage
	prefix  string
	logger  *logrus.Logger
}

// NewPublisher создает публикатор поверх storage
func NewPublisher(storage Storage, prefix string, logger *logrus.Logger) *Publisher {
	return &Publisher{storage: storage, prefix: prefix, logger: logger}
}

// Publish загружает локальные файлы и возвращает их URL в порядке аргументов.
func (p *Publisher) Publish(ctx context.Context, reportID string, files ...string) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, local := range files {
		key := p.storage.JoinPath(p.prefix, reportID, filepath.Base(local))

		if err := p.upload(ctx, key, local); err != nil {
			return urls, err
		}

		url, err := p.storage.GetURL(ctx, key)
		if err != nil {
			return urls, fmt.Errorf("ошибка получения URL %s: %w", key, err)
		}
		urls = append(urls, url)

		p.logger.WithFields(logrus.Fields{
			"report_id": reportID,
			"key":       key,
		}).Info("Файл отчета опубликован")
	}
	return urls, nil
}

func (p *Publisher) upload(ctx context.Context, key, local string) error {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("ошибка открытия файла %s: %w", local, err)
	}
	defer f.Close()

	if err := p.storage.Save(ctx, key, f); err != nil {
		return fmt.Errorf("ошибка публикации %s: %w", key, err)
	}
	return nil
}
