package usecase

import (
	"strconv"
	"strings"
	"time"

	"loan_report/internal/domain/report"
)

// reportingPeriod возвращает первый день предыдущего календарного месяца.
func reportingPeriod(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, now.Location())
}

// BuiltinFields возвращает поля, доступные любому шаблону. Поля из API
// имеют приоритет при совпадении имен.
func BuiltinFields(id report.ID, now time.Time) report.Fields {
	period := reportingPeriod(now)
	return report.Fields{
		"report_id":    id.String(),
		"report_date":  now.Format("2006-01-02"),
		"report_month": now.Month().String(),
		"report_year":  strconv.Itoa(now.Year()),
		"period_month": period.Month().String(),
		"period_year":  strconv.Itoa(period.Year()),
	}
}

// OutputName строит имя выходного файла по шаблону имени. Поддерживаются
// {report_id}, {period_month} и {period_year}; расширение берется из типа шаблона.
func OutputName(pattern string, id report.ID, now time.Time, tmpl report.TemplateType) string {
	if pattern == "" {
		pattern = "report_{report_id}"
	}
	period := reportingPeriod(now)
	name := strings.NewReplacer(
		"{report_id}", id.String(),
		"{period_month}", period.Month().String(),
		"{period_year}", strconv.Itoa(period.Year()),
	).Replace(pattern)

	ext := tmpl.Extension()
	if !strings.HasSuffix(strings.ToLower(name), ext) {
		name += ext
	}
	return name
}
