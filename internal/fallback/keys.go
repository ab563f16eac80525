package fallback

import "regexp"

var keyHeuristics = []struct {
	field string
	re    *regexp.Regexp
}{
	{FieldPolicyNo, regexp.MustCompile(`(?i)policy\s*(?:no|number|#)`)},
	{FieldDateOfCommencement, regexp.MustCompile(`(?i)commencement`)},
	{FieldSumAssured, regexp.MustCompile(`(?i)sum\s*(?:assured|insured)`)},
	{FieldDOB, regexp.MustCompile(`(?i)birth|\bdob\b|d\.o\.b`)},
	{FieldNominee, regexp.MustCompile(`(?i)nominee|beneficiary`)},
}

// FieldForKey maps a form-field label such as "Policy Number:" onto a
// mandatory field name.
func FieldForKey(key string) (string, bool) {
	for _, h := range keyHeuristics {
		if h.re.MatchString(key) {
			return h.field, true
		}
	}
	return "", false
}
