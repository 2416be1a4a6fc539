package template

import (
	"bytes"
	"errors"
	"testing"

	"loan_report/internal/domain/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildXLSX(t *testing.T, cells map[string]map[string]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for sheet, values := range cells {
		if sheet != "Sheet1" {
			_, err := f.NewSheet(sheet)
			require.NoError(t, err)
		}
		for cell, v := range values {
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestXLSXFill(t *testing.T) {
	tmpl := buildXLSX(t, map[string]map[string]any{
		"Sheet1": {
			"A1": "Borrower",
			"B1": "{{ name }}",
			"A2": "Balance",
			"B2": "{{balance}} USD",
			"C3": 42,
		},
		"Summary": {
			"A1": "Loan {{ report_id }} for {{ name }}",
		},
	})

	out, err := NewXLSX().Fill(tmpl, report.Fields{"name": "Jane Doe", "balance": "1000.00", "report_id": "12345"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	get := func(sheet, cell string) string {
		v, err := f.GetCellValue(sheet, cell)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Borrower", get("Sheet1", "A1"))
	assert.Equal(t, "Jane Doe", get("Sheet1", "B1"))
	assert.Equal(t, "1000.00 USD", get("Sheet1", "B2"))
	assert.Equal(t, "42", get("Sheet1", "C3"))
	assert.Equal(t, "Loan 12345 for Jane Doe", get("Summary", "A1"))
}

func TestXLSXFillMissingField(t *testing.T) {
	tmpl := buildXLSX(t, map[string]map[string]any{
		"Sheet1": {"A1": "{{ name }}", "A2": "{{ rate }}"},
	})

	_, err := NewXLSX().Fill(tmpl, report.Fields{"name": "Jane Doe"})
	require.Error(t, err)
	assert.Equal(t, report.KindRender, report.KindOf(err))

	var missing *report.MissingFieldsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"rate"}, missing.Fields)
}

func TestXLSXFillRejectsGarbage(t *testing.T) {
	_, err := NewXLSX().Fill([]byte("plain text"), report.Fields{})
	require.Error(t, err)
	assert.Equal(t, report.KindRender, report.KindOf(err))
}
