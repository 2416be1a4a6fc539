package report

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindAuthentication
	KindFetch
	KindParsing
	KindRender
	KindExport
	KindPublish
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuthentication:
		return "authentication"
	case KindFetch:
		return "fetch"
	case KindParsing:
		return "parsing"
	case KindRender:
		return "render"
	case KindExport:
		return "export"
	case KindPublish:
		return "publish"
	default:
		return "unknown"
	}
}

// ExitCode возвращает код завершения процесса для данного класса ошибки.
func (k Kind) ExitCode() int {
	switch k {
	case KindConfiguration:
		return 2
	case KindAuthentication:
		return 3
	case KindFetch:
		return 4
	case KindParsing:
		return 5
	case KindRender:
		return 6
	case KindExport:
		return 7
	case KindPublish:
		return 8
	default:
		return 1
	}
}

// Error is a classified pipeline error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// NewError оборачивает err в ошибку заданного класса.
func NewError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MissingFieldsError lists template placeholders that had no value.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("template references missing fields: %s", strings.Join(e.Fields, ", "))
}

// Classify wraps err as kind unless it already carries a classification.
func Classify(kind Kind, op string, err error) error {
	if err == nil || KindOf(err) != KindUnknown {
		return err
	}
	return NewError(kind, op, err)
}
