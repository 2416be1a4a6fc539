package template

import (
	"bytes"

	"loan_report/internal/domain/report"

	"github.com/xuri/excelize/v2"
)

// XLSXFiller реализует TemplateFiller для шаблонов xlsx.
type XLSXFiller struct{}

// NewXLSX возвращает заполнитель XLSX.
func NewXLSX() XLSXFiller { return XLSXFiller{} }

// Fill подставляет значения полей во все ячейки всех листов.
func (XLSXFiller) Fill(tmpl []byte, fields report.Fields) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(tmpl))
	if err != nil {
		return nil, report.NewError(report.KindRender, "open xlsx template", err)
	}
	defer f.Close()

	missing := missingSet{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, report.NewError(report.KindRender, "read sheet "+sheet, err)
		}

		for r, row := range rows {
			for c, value := range row {
				filled, ok := substitute(value, fields, missing)
				if !ok {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, report.NewError(report.KindRender, "resolve cell", err)
				}
				if err := f.SetCellValue(sheet, cell, filled); err != nil {
					return nil, report.NewError(report.KindRender, "write cell "+cell, err)
				}
			}
		}
	}

	if err := missing.err(); err != nil {
		return nil, report.NewError(report.KindRender, "fill xlsx template", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, report.NewError(report.KindRender, "write xlsx", err)
	}
	return buf.Bytes(), nil
}
