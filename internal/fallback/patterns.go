package fallback

// Field names recognised by the extractor.
const (
	FieldPolicyNo           = "policy_no"
	FieldCaseNo             = "case_no"
	FieldDateOfCommencement = "date_of_commencement"
	FieldJudgmentDate       = "judgment_date"
	FieldSumAssured         = "sum_assured"
	FieldDOB                = "dob"
	FieldNominee            = "nominee"
	FieldContractParty      = "contract_party"
	FieldJurisdiction       = "jurisdiction"
	FieldContractValue      = "contract_value"
)

// MandatoryFields decide whether a document needs manual review.
var MandatoryFields = []string{
	FieldPolicyNo,
	FieldDateOfCommencement,
	FieldSumAssured,
	FieldDOB,
	FieldNominee,
}

// Tier sources and confidences.
const (
	SourceEnhanced = "fallback_regex"
	SourceSimple   = "fallback_regex_simple"

	ConfidenceEnhanced = 0.8
	ConfidenceSimple   = 0.7
)

const datePattern = `([0-3]?\d[\/\-\.]\d{1,2}[\/\-\.]\d{2,4})`

// FieldPatterns is an ordered list of expressions for one field.
type FieldPatterns struct {
	Field    string
	Patterns []string
}

// EnhancedPatterns are tried first, in order, per field.
var EnhancedPatterns = []FieldPatterns{
	{FieldPolicyNo, []string{
		`Policy\s*(?:No|Number)[.:\s]*([A-Za-z0-9\-/]+)`,
		`Pol[icy]*\s*No[.:\s]*([A-Za-z0-9\-/]+)`,
		`Reference\s*(?:No|Number)[.:\s]*([A-Za-z0-9\-/]+)`,
		`UIN[.:\s]*([A-Za-z0-9\-/]+)`,
	}},
	{FieldDateOfCommencement, []string{
		`Date\s*of\s*Commencement[.:\s]*` + datePattern,
		`Commencement\s*Date[.:\s]*` + datePattern,
		`Policy\s*Date[.:\s]*` + datePattern,
		`Effective\s*(?:from|Date)[.:\s]*` + datePattern,
	}},
	{FieldSumAssured, []string{
		`Sum\s*Assured\s*(?:for\s*Basic\s*Plan)?[.:\s₹Rs.\(\)]*([0-9,]+)`,
		`Basic\s*Sum\s*Assured[.:\s₹Rs.\(\)]*([0-9,]+)`,
		`Insurance\s*Amount[.:\s₹Rs.\(\)]*([0-9,]+)`,
		`Coverage\s*Amount[.:\s₹Rs.\(\)]*([0-9,]+)`,
	}},
	{FieldDOB, []string{
		`Date\s*of\s*Birth[.:\s]*` + datePattern,
		`DOB[.:\s]*` + datePattern,
		`D\.O\.B\.?[.:\s]*` + datePattern,
		`Born\s*(?:on|:)[.:\s]*` + datePattern,
	}},
	{FieldNominee, []string{
		`Nominee\s*(?:under\s*section\s*39)?[.:\s]*([A-Za-z\s]+?)(?:\n|Mr\.|Mrs\.|Ms\.|\s{3,})`,
		`Beneficiary[.:\s]*([A-Za-z\s]+?)(?:\n|Mr\.|Mrs\.|Ms\.|\s{3,})`,
		`Appointee[.:\s]*([A-Za-z\s]+?)(?:\n|Mr\.|Mrs\.|Ms\.|\s{3,})`,
		`Next\s*of\s*Kin[.:\s]*([A-Za-z\s]+?)(?:\n|Mr\.|Mrs\.|Ms\.|\s{3,})`,
	}},
}

// SimplePatterns hold one broader expression per field. They only run for
// fields the enhanced tier left empty.
var SimplePatterns = []FieldPatterns{
	{FieldPolicyNo, []string{`(?:Policy|Policy No|Policy No\.?|Policy Number|Pol No|Policy Ref)[:\s]*([A-Za-z0-9\-/]+)`}},
	{FieldCaseNo, []string{`(?:Case|Case No|C\/No|CR No|Case Number|File No|File Number)[:\s]*([A-Za-z0-9\-/]+)`}},
	{FieldDateOfCommencement, []string{`(?:Date of Commencement|Date of Commence|Commencement Date|Policy Date|Effective Date)[:\s\-]*` + datePattern}},
	{FieldJudgmentDate, []string{`(?:Judgment Date|Date of Judgment|Dated|Date of Order|Order Date)[:\s\-]*` + datePattern}},
	{FieldSumAssured, []string{`(?:Sum Assured|Sum\s*Assured|Sum\s*Insured|Amount|Total Amount|Insurance Amount)[:\s₹Rs.\-]*([\d,]+)`}},
	{FieldDOB, []string{`(?:Date of Birth|DOB|D\.O\.B\.?|Born on)[:\s]*` + datePattern}},
	{FieldNominee, []string{`(?:Nominee|Petitioner|Respondent|Nominee Name|Appointee|Beneficiary)[:\s]*([A-Za-z0-9 ,.\-&]+?)(?:\n|$|\.)`}},
	{FieldContractParty, []string{`(?:Party|Contracting Party|First Party|Second Party)[:\s]*([A-Za-z0-9 ,.\-&]+?)(?:\n|$|\.)`}},
	{FieldJurisdiction, []string{`(?:Jurisdiction|Court|Governing Law|Legal Jurisdiction)[:\s]*([A-Za-z0-9 ,.\-&]+?)(?:\n|$|\.)`}},
	{FieldContractValue, []string{`(?:Contract Value|Total Value|Agreement Value|Contract Amount)[:\s₹Rs.\$]*([\d,]+)`}},
}
