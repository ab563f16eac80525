package fallback

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// dateLayouts are tried in order; day-first wins for ambiguous input.
var dateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2006-1-2",
	"2.1.2006",
	"1/2/2006",
}

var amountNoise = regexp.MustCompile(`[,\s₹$Rs.]`)

// NormalizeDate converts a date to YYYY-MM-DD. Unparseable input is returned unchanged.
func NormalizeDate(value string) string {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return value
}

// NormalizeAmount strips separators and currency markers and re-emits an
// integer string. Input that is not an integer afterwards is returned unchanged.
func NormalizeAmount(value string) string {
	value = strings.TrimSpace(value)
	n, err := strconv.ParseInt(amountNoise.ReplaceAllString(value, ""), 10, 64)
	if err != nil {
		return value
	}
	return strconv.FormatInt(n, 10)
}

// NormalizeID uppercases an identifier and drops spaces and dots.
func NormalizeID(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "")
	return strings.ReplaceAll(value, ".", "")
}

// NormalizeName title-cases a person or organisation name.
func NormalizeName(value string) string {
	return strings.TrimSpace(title(strings.TrimSpace(value)))
}

// NormalizeValue applies the normalizer registered for field.
func NormalizeValue(field, value string) string {
	switch field {
	case FieldDateOfCommencement, FieldJudgmentDate, FieldDOB:
		return NormalizeDate(value)
	case FieldSumAssured, FieldContractValue:
		return NormalizeAmount(value)
	case FieldPolicyNo, FieldCaseNo:
		return NormalizeID(value)
	case FieldNominee, FieldContractParty:
		return NormalizeName(value)
	default:
		return strings.TrimSpace(value)
	}
}

// DisplayName turns a field name such as "date_of_commencement" into "Date Of Commencement".
func DisplayName(field string) string {
	return title(strings.ReplaceAll(field, "_", " "))
}

// title returns a fresh Caser per call; Casers are not safe for concurrent use.
func title(s string) string {
	return cases.Title(language.Und).String(s)
}
