package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingMiddleware добавляет логирование к операциям хранилища
type LoggingMiddleware struct {
	storage Storage
	logger  *logrus.Logger
}

// NewLoggingMiddleware создает новый logging middleware
func NewLoggingMiddleware(storage Storage, logger *logrus.Logger) Storage {
	return &LoggingMiddleware{
		storage: storage,
		logger:  logger,
	}
}

// Save логирует операцию сохранения
func (m *LoggingMiddleware) Save(ctx context.Context, key string, reader io.Reader) error {
	start := time.Now()
	logger := m.logger.WithFields(logrus.Fields{
		"operation": "save",
		"key":       key,
	})

	logger.Debug("Начало сохранения файла")

	err := m.storage.Save(ctx, key, reader)

	duration := time.Since(start)
	if err != nil {
		logger.WithError(err).WithField("duration", duration).Error("Ошибка сохранения файла")
	} else {
		logger.WithField("duration", duration).Info("Файл сохранен успешно")
	}

	return err
}

// Остальные методы просто делегируют вызовы
func (m *LoggingMiddleware) GetURL(ctx context.Context, key string) (string, error) {
	return m.storage.GetURL(ctx, key)
}

func (m *LoggingMiddleware) JoinPath(elem ...string) string {
	return m.storage.JoinPath(elem...)
}

func (m *LoggingMiddleware) ValidateKey(key string) error {
	return m.storage.ValidateKey(key)
}

// ValidationMiddleware добавляет валидацию к операциям хранилища
type ValidationMiddleware struct {
	storage Storage
	logger  *logrus.Logger
}

// NewValidationMiddleware создает новый validation middleware
func NewValidationMiddleware(storage Storage, logger *logrus.Logger) Storage {
	return &ValidationMiddleware{
		storage: storage,
		logger:  logger,
	}
}

// Save выполняет валидацию перед сохранением
func (m *ValidationMiddleware) Save(ctx context.Context, key string, reader io.Reader) error {
	if err := m.validateKey(key); err != nil {
		return err
	}
	return m.storage.Save(ctx, key, reader)
}

// validateKey проверяет ключ общими правилами и правилами конкретного хранилища
func (m *ValidationMiddleware) validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("ключ файла не может быть пустым")
	}
	return m.storage.ValidateKey(key)
}

func (m *ValidationMiddleware) GetURL(ctx context.Context, key string) (string, error) {
	if err := m.validateKey(key); err != nil {
		return "", err
	}
	return m.storage.GetURL(ctx, key)
}

func (m *ValidationMiddleware) JoinPath(elem ...string) string {
	return m.storage.JoinPath(elem...)
}

func (m *ValidationMiddleware) ValidateKey(key string) error {
	return m.storage.ValidateKey(key)
}
