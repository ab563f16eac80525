package fallback

import "regexp"

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// ValidateMandatory checks presence and format of the mandatory fields in r.
// Keys are has_<field>, <date field>_format_valid and sum_assured_numeric_valid.
func ValidateMandatory(r *Result) map[string]bool {
	out := make(map[string]bool, len(MandatoryFields)+3)
	for _, field := range MandatoryFields {
		m, ok := r.Get(field)
		out["has_"+field] = ok
		if !ok || m.NormalizedValue == "" {
			continue
		}
		switch field {
		case FieldDateOfCommencement, FieldDOB:
			out[field+"_format_valid"] = isoDate.MatchString(m.NormalizedValue)
		case FieldSumAssured:
			out[field+"_numeric_valid"] = isDigits(m.NormalizedValue)
		}
	}
	return out
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
