package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"loan_report/internal/config"

	"github.com/sirupsen/logrus"
)

const (
	// Типы хранилищ
	StorageTypeLocal = "local"
	StorageTypeS3    = "s3"

	defaultPermissions = 0o755
	maxKeyLength       = 1024
)

// Storage интерфейс хранилища, в которое публикуются готовые отчеты
type Storage interface {
	Save(ctx context.Context, key string, reader io.Reader) error
	GetURL(ctx context.Context, key string) (string, error)

	// Утилиты
	JoinPath(elem ...string) string
	ValidateKey(key string) error
}

// StorageBuilder строитель хранилищ по конфигурации
type StorageBuilder struct {
	config config.Config
	logger *logrus.Logger
}

// NewStorageBuilder создает новый строитель хранилища
func NewStorageBuilder(cfg config.Config, logger *logrus.Logger) *StorageBuilder {
	return &StorageBuilder{
		config: cfg,
		logger: logger,
	}
}

// Templates возвращает хранилище шаблонов (каталог paths.templates)
func (b *StorageBuilder) Templates() (*LocalStorage, error) {
	return NewLocalStorage(b.config.Paths.Templates, false, b.logger)
}

// Output возвращает хранилище готовых документов (каталог paths.output)
func (b *StorageBuilder) Output() (*LocalStorage, error) {
	return NewLocalStorage(b.config.Paths.Output, true, b.logger)
}

// Publisher создает публикатор артефактов. Для типа local публикация не нужна,
// возвращается nil.
func (b *StorageBuilder) Publisher() (*Publisher, error) {
	switch b.config.Storage.Type {
	case StorageTypeLocal, "":
		return nil, nil

	case StorageTypeS3:
		s3Storage, err := NewS3Storage(S3Config{
			Region:         b.config.Storage.S3.Region,
			Bucket:         b.config.Storage.S3.Bucket,
			Endpoint:       b.config.Storage.S3.Endpoint,
			AccessKey:      b.config.Storage.S3.AccessKey,
			SecretKey:      b.config.Storage.S3.SecretKey,
			ForcePathStyle: b.config.Storage.S3.Endpoint != "",
		}, b.logger)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания S3 хранилища: %w", err)
		}
		return NewPublisher(b.wrapWithMiddleware(s3Storage), b.config.Storage.Prefix, b.logger), nil

	default:
		return nil, fmt.Errorf("неподдерживаемый тип хранилища: %s", b.config.Storage.Type)
	}
}

// wrapWithMiddleware оборачивает хранилище в middleware
func (b *StorageBuilder) wrapWithMiddleware(storage Storage) Storage {
	// Добавляем логирование
	if b.logger != nil {
		storage = NewLoggingMiddleware(storage, b.logger)
	}

	// Добавляем валидацию
	storage = NewValidationMiddleware(storage, b.logger)

	return storage
}

// LocalStorage реализация локального файлового хранилища
type LocalStorage struct {
	basePath    string
	permissions os.FileMode
	logger      *logrus.Logger
}

// NewLocalStorage создает локальное хранилище с корнем basePath.
// При createDirs каталог создается, иначе он обязан существовать.
func NewLocalStorage(basePath string, createDirs bool, logger *logrus.Logger) (*LocalStorage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("базовый путь не может быть пустым")
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка определения абсолютного пути: %w", err)
	}

	if createDirs {
		if err := os.MkdirAll(abs, defaultPermissions); err != nil {
			return nil, fmt.Errorf("ошибка создания базовой директории: %w", err)
		}
	}

	return &LocalStorage{
		basePath:    abs,
		permissions: defaultPermissions,
		logger:      logger,
	}, nil
}

// Save атомарно сохраняет файл: запись во временный файл и переименование.
func (l *LocalStorage) Save(ctx context.Context, key string, reader io.Reader) error {
	if err := l.ValidateKey(key); err != nil {
		return err
	}
	fullPath := l.FullPath(key)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, l.permissions); err != nil {
		return fmt.Errorf("ошибка создания директории: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(fullPath)+"-*")
	if err != nil {
		return fmt.Errorf("ошибка создания файла: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("ошибка записи файла: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ошибка записи файла: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("ошибка установки прав: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("ошибка сохранения файла: %w", err)
	}

	return nil
}

// Get получает файл локально
func (l *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := l.ValidateKey(key); err != nil {
		return nil, err
	}
	file, err := os.Open(l.FullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("файл не найден: %s: %w", l.FullPath(key), err)
		}
		return nil, fmt.Errorf("ошибка открытия файла: %w", err)
	}
	return file, nil
}

// GetURL возвращает файловый URL
func (l *LocalStorage) GetURL(ctx context.Context, key string) (string, error) {
	return "file://" + filepath.ToSlash(l.FullPath(key)), nil
}

// JoinPath объединяет элементы пути
func (l *LocalStorage) JoinPath(elem ...string) string {
	return filepath.Join(elem...)
}

// ValidateKey валидирует ключ файла
func (l *LocalStorage) ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("ключ файла не может быть пустым")
	}
	if filepath.IsAbs(key) {
		return fmt.Errorf("ключ файла должен быть относительным: %s", key)
	}
	for _, part := range strings.Split(filepath.ToSlash(key), "/") {
		if part == ".." {
			return fmt.Errorf("ключ файла не может содержать '..'")
		}
	}
	return nil
}

// FullPath возвращает полный путь к файлу
func (l *LocalStorage) FullPath(key string) string {
	return filepath.Join(l.basePath, key)
}

// BasePath возвращает корневой каталог хранилища
func (l *LocalStorage) BasePath() string {
	return l.basePath
}
