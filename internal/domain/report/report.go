package report

import (
	"path/filepath"
	"sort"
	"strings"
)

// TemplateType обозначает поддерживаемые типы шаблонов.
type TemplateType int

const (
	TemplateUnknown TemplateType = iota
	TemplateXLSX
	TemplateDOCX
)

// TemplateTypeFromName определяет тип шаблона по расширению файла.
func TemplateTypeFromName(name string) TemplateType {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".docx":
		return TemplateDOCX
	case ".xlsx":
		return TemplateXLSX
	default:
		return TemplateUnknown
	}
}

// Extension возвращает расширение файла для типа шаблона.
func (t TemplateType) Extension() string {
	switch t {
	case TemplateDOCX:
		return ".docx"
	case TemplateXLSX:
		return ".xlsx"
	default:
		return ""
	}
}

func (t TemplateType) String() string {
	switch t {
	case TemplateDOCX:
		return "docx"
	case TemplateXLSX:
		return "xlsx"
	default:
		return "unknown"
	}
}

// Fields is the flat name -> value mapping substituted into a template.
type Fields map[string]string

// Keys returns field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns a new mapping with values from other layered over f.
func (f Fields) Merge(other Fields) Fields {
	out := make(Fields, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Report содержит данные одного запуска генерации отчёта.
type Report struct {
	ID          ID
	Template    TemplateType
	TemplateKey string
	Fields      Fields
}
