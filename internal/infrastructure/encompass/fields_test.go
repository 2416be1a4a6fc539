package encompass

import (
	"testing"

	"loan_report/internal/domain/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	raw := []byte(`{
		"loanId": "a1b2",
		"amount": 250000.50,
		"closed": false,
		"note": null,
		"borrower": {"name": "Jane Doe", "address": {"state": "TX"}},
		"officers": ["Ann", "Bob"]
	}`)

	fields, err := Flatten(raw)
	require.NoError(t, err)

	assert.Equal(t, report.Fields{
		"loanId":                 "a1b2",
		"amount":                 "250000.50",
		"closed":                 "false",
		"note":                   "",
		"borrower.name":          "Jane Doe",
		"borrower.address.state": "TX",
		"officers.0":             "Ann",
		"officers.1":             "Bob",
	}, fields)
}

func TestFlattenRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"truncated", `{"a": 1`, "malformed"},
		{"empty", ``, "malformed"},
		{"array", `[1, 2]`, "array"},
		{"string", `"hello"`, "string"},
		{"trailing", `{"a": 1} {"b": 2}`, "trailing"},
		{"dotted key collides with nested path", `{"a.b": "flat", "a": {"b": "nested"}}`, `duplicate field key "a.b"`},
		{"dotted key collides with array index", `{"items.0": "x", "items": ["y"]}`, `duplicate field key "items.0"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Flatten([]byte(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFlattenCollisionIsStable(t *testing.T) {
	raw := []byte(`{"a.b": "flat", "a": {"b": "nested"}, "c": 1}`)
	for i := 0; i < 50; i++ {
		fields, err := Flatten(raw)
		require.Error(t, err)
		assert.Nil(t, fields)
	}
}
