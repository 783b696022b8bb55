package planner

import (
	"regexp"
	"strings"
	"time"
)

// temporalPattern matches explicit dates, clock times, relative days and deadline phrasing
var temporalPattern = regexp.MustCompile(`(?i)` +
	`\d{4}[-/.年]\d{1,2}|\d{1,2}月\d{1,2}[日号]?|\d{1,2}[:：]\d{2}|\d{1,2}\s*点|` +
	`今天|明天|后天|今晚|明晚|今早|明早|早上|上午|中午|下午|傍晚|晚上|凌晨|` +
	`(下下?|这|本|上)?(周|星期|礼拜)[一二三四五六日天末]|下周|下个?月|月底|月初|年底|` +
	`截止|之前|以前|前完成|需于|` +
	`\b(today|tonight|tomorrow|deadline|due|noon|midnight)\b|` +
	`\b(mon|tues|wednes|thurs|fri|satur|sun)day\b|\bnext (week|month)\b|\b\d{1,2}\s*(am|pm)\b`)

// durationPattern matches explicit effort or length statements
var durationPattern = regexp.MustCompile(`(?i)` +
	`\d+(\.\d+)?\s*(个)?\s*(分钟|小时|钟头)|半(个)?小时|[一二两三四五六七八九十]+(个)?(半)?(小时|钟头)|[一二两三四五六七八九十]+分钟|` +
	`\b\d+(\.\d+)?\s*(h|hr|hrs|hours?|min|mins|minutes?)\b|\bhalf an hour\b|\ban hour\b`)

// HasTemporalExpression reports whether text states a date, time or deadline
func HasTemporalExpression(text string) bool {
	return temporalPattern.MatchString(text)
}

// HasDurationExpression reports whether text states how long something takes
func HasDurationExpression(text string) bool {
	return durationPattern.MatchString(text)
}

// llmTimeLayouts are tried in order for times the model returns without a zone
var llmTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04",
	"2006/1/2 15:04",
	"2006-01-02",
}

// parseLLMTime parses a model-produced time. Zoned RFC3339 values keep their
// offset; everything else is read in loc.
func parseLLMTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range llmTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// formatLocal renders t for prompts and user-facing text
func formatLocal(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02 15:04")
}

var weekdayNames = [...]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

// dateHeader opens every prompt with the current date so relative phrases resolve correctly
func dateHeader(now time.Time, loc *time.Location) string {
	local := now.In(loc)
	return "当前真实日期和时间：" + local.Format("2006年1月2日") + " " + weekdayNames[local.Weekday()] +
		" " + local.Format("15:04") + "\nISO格式日期：" + local.Format("2006-01-02") + "\n"
}
