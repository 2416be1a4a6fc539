package report

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		raw     string
		want    ID
		wantErr bool
	}{
		{raw: "12345", want: "12345"},
		{raw: "  42\n", want: "42"},
		{raw: "", wantErr: true},
		{raw: "   ", wantErr: true},
		{raw: "12a45", wantErr: true},
		{raw: "-1", wantErr: true},
		{raw: "1.5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.raw), func(t *testing.T) {
			id, err := ParseID(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindConfiguration, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestKindOfAndExitCode(t *testing.T) {
	base := errors.New("boom")

	err := NewError(KindFetch, "report request", base)
	assert.Equal(t, KindFetch, KindOf(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "fetch error: report request: boom", err.Error())

	wrapped := fmt.Errorf("pipeline: %w", err)
	assert.True(t, IsKind(wrapped, KindFetch))
	assert.Equal(t, 4, KindOf(wrapped).ExitCode())

	assert.Nil(t, NewError(KindRender, "noop", nil))
	assert.Equal(t, KindUnknown, KindOf(base))
	assert.Equal(t, 1, KindOf(base).ExitCode())
	assert.False(t, IsKind(nil, KindUnknown))

	codes := map[int]Kind{}
	for _, k := range []Kind{KindConfiguration, KindAuthentication, KindFetch, KindParsing, KindRender, KindExport, KindPublish} {
		code := k.ExitCode()
		assert.NotZero(t, code)
		_, dup := codes[code]
		assert.False(t, dup, "exit code %d reused by %s", code, k)
		codes[code] = k
	}
}

func TestMissingFieldsErrorUnwraps(t *testing.T) {
	err := NewError(KindRender, "fill template", &MissingFieldsError{Fields: []string{"borrower", "amount"}})

	var missing *MissingFieldsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"borrower", "amount"}, missing.Fields)
	assert.Contains(t, err.Error(), "borrower, amount")
}

func TestFieldsMergeAndKeys(t *testing.T) {
	builtins := Fields{"report_id": "1", "report_year": "2024"}
	api := Fields{"report_year": "1999", "name": "Jane Doe"}

	merged := builtins.Merge(api)
	assert.Equal(t, Fields{"report_id": "1", "report_year": "1999", "name": "Jane Doe"}, merged)
	assert.Equal(t, []string{"name", "report_id", "report_year"}, merged.Keys())
	assert.Equal(t, "2024", builtins["report_year"])
}

func TestTemplateTypeFromName(t *testing.T) {
	assert.Equal(t, TemplateDOCX, TemplateTypeFromName("Report.DOCX"))
	assert.Equal(t, TemplateXLSX, TemplateTypeFromName("/tmp/summary.xlsx"))
	assert.Equal(t, TemplateUnknown, TemplateTypeFromName("report.pdf"))
	assert.Equal(t, ".docx", TemplateDOCX.Extension())
	assert.Equal(t, "xlsx", TemplateXLSX.String())
}
