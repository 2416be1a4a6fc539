package encompass

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"loan_report/internal/domain/report"
)

// Flatten decodes a JSON object into a flat field mapping. Nested objects and
// arrays produce dotted keys ("borrower.name", "items.0"); numbers keep their
// literal text and null becomes the empty string. A literal dotted key that
// collides with a nested path ({"a.b": 1, "a": {"b": 2}}) is an error.
func Flatten(raw []byte) (report.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("malformed JSON: trailing data after top-level value")
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %s", kindOf(doc))
	}

	fields := make(report.Fields, len(obj))
	if err := flattenInto(fields, "", obj); err != nil {
		return nil, err
	}
	return fields, nil
}

func flattenInto(dst report.Fields, prefix string, v any) error {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			if err := flattenInto(dst, join(prefix, k), child); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for i, child := range val {
			if err := flattenInto(dst, join(prefix, strconv.Itoa(i)), child); err != nil {
				return err
			}
		}
		return nil
	case json.Number:
		return set(dst, prefix, val.String())
	case string:
		return set(dst, prefix, val)
	case bool:
		return set(dst, prefix, strconv.FormatBool(val))
	case nil:
		return set(dst, prefix, "")
	}
	return nil
}

func set(dst report.Fields, key, value string) error {
	if _, dup := dst[key]; dup {
		return fmt.Errorf("duplicate field key %q after flattening", key)
	}
	dst[key] = value
	return nil
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func kindOf(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
