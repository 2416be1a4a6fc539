package report

import (
	"fmt"
	"strings"
)

// ID is the numeric report identifier supplied on the command line.
type ID string

// ParseID проверяет, что идентификатор отчёта задан и состоит только из цифр.
func ParseID(raw string) (ID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", NewError(KindConfiguration, "parse report id", fmt.Errorf("report identifier is required"))
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", NewError(KindConfiguration, "parse report id", fmt.Errorf("report identifier must be numeric, got %q", raw))
		}
	}
	return ID(s), nil
}

func (id ID) String() string { return string(id) }
