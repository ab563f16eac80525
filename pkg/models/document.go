package models

import (
	"fmt"
	"strings"
	"time"
)

// EntityType classifies a named entity found in a legal document.
type EntityType string

const (
	EntityPerson        EntityType = "PERSON"
	EntityOrganization  EntityType = "ORGANIZATION"
	EntityDate          EntityType = "DATE"
	EntityMoney         EntityType = "MONEY"
	EntityLocation      EntityType = "LOCATION"
	EntityContractParty EntityType = "CONTRACT_PARTY"
	EntityObligation    EntityType = "OBLIGATION"
	EntityPenalty       EntityType = "PENALTY"
	EntityDuration      EntityType = "DURATION"
	EntityJurisdiction  EntityType = "JURISDICTION"
	EntityOther         EntityType = "OTHER"
)

// ClauseType classifies a contract clause.
type ClauseType string

const (
	ClauseTermination          ClauseType = "TERMINATION"
	ClausePayment              ClauseType = "PAYMENT"
	ClauseConfidentiality      ClauseType = "CONFIDENTIALITY"
	ClauseLiability            ClauseType = "LIABILITY"
	ClauseGoverningLaw         ClauseType = "GOVERNING_LAW"
	ClauseDisputeResolution    ClauseType = "DISPUTE_RESOLUTION"
	ClauseForceMajeure         ClauseType = "FORCE_MAJEURE"
	ClauseIndemnification      ClauseType = "INDEMNIFICATION"
	ClauseIntellectualProperty ClauseType = "INTELLECTUAL_PROPERTY"
	ClauseWarranty             ClauseType = "WARRANTY"
	ClauseOther                ClauseType = "OTHER"
)

// DefaultConfidenceThreshold is applied when a request does not set one.
// An explicit 0 keeps every entity and key-value pair.
const DefaultConfidenceThreshold = 0.7

// TextSpan is a byte range into ParsedDocument.FullText.
// FullText[StartOffset:EndOffset] equals Text for every span the parser emits.
type TextSpan struct {
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	Text        string `json:"text"`
}

// Valid reports whether the span is well formed and resolves against fullText.
func (s TextSpan) Valid(fullText string) bool {
	if s.StartOffset < 0 || s.EndOffset < s.StartOffset || s.EndOffset > len(fullText) {
		return false
	}
	return fullText[s.StartOffset:s.EndOffset] == s.Text
}

// BoundingBox is a page-relative rectangle.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// NamedEntity is a typed mention located in the document text.
type NamedEntity struct {
	ID              string                 `json:"id"`
	Type            EntityType             `json:"entity_type"`
	TextSpan        TextSpan               `json:"text_span"`
	Confidence      float64                `json:"confidence"`
	NormalizedValue string                 `json:"normalized_value,omitempty"`
	PageNumber      int                    `json:"page_number,omitempty"`
	BoundingBox     *BoundingBox           `json:"bounding_box,omitempty"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// Clause is a detected contract clause. SubClauses may nest.
type Clause struct {
	ID          string                 `json:"id"`
	Type        ClauseType             `json:"clause_type"`
	Title       string                 `json:"title,omitempty"`
	TextSpan    TextSpan               `json:"text_span"`
	Confidence  float64                `json:"confidence"`
	PageNumber  int                    `json:"page_number,omitempty"`
	BoundingBox *BoundingBox           `json:"bounding_box,omitempty"`
	SubClauses  []Clause               `json:"sub_clauses"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// KeyValuePair is a form field with both key and value located in the text.
type KeyValuePair struct {
	ID         string                 `json:"id"`
	Key        TextSpan               `json:"key"`
	Value      TextSpan               `json:"value"`
	Confidence float64                `json:"confidence"`
	PageNumber int                    `json:"page_number,omitempty"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// CrossReference links two entities of the same document.
type CrossReference struct {
	ID             string                 `json:"id"`
	SourceEntityID string                 `json:"source_entity_id"`
	TargetEntityID string                 `json:"target_entity_id"`
	ReferenceType  string                 `json:"reference_type"`
	Confidence     float64                `json:"confidence"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// DocumentMetadata describes the source document and the processing run.
type DocumentMetadata struct {
	DocumentID          string                 `json:"document_id"`
	OriginalFilename    string                 `json:"original_filename"`
	FileSize            int64                  `json:"file_size"`
	PageCount           int                    `json:"page_count"`
	Language            string                 `json:"language,omitempty"`
	ProcessingTimestamp time.Time              `json:"processing_timestamp"`
	ProcessorID         string                 `json:"processor_id"`
	ProcessorVersion    string                 `json:"processor_version,omitempty"`
	ConfidenceThreshold float64                `json:"confidence_threshold"`
	NeedsReview         bool                   `json:"needs_review"`
	CustomMetadata      map[string]interface{} `json:"custom_metadata"`
}

// ParsedDocument is the structured result of parsing one document.
type ParsedDocument struct {
	Metadata           DocumentMetadata       `json:"metadata"`
	FullText           string                 `json:"full_text"`
	Clauses            []Clause               `json:"clauses"`
	NamedEntities      []NamedEntity          `json:"named_entities"`
	KeyValuePairs      []KeyValuePair         `json:"key_value_pairs"`
	CrossReferences    []CrossReference       `json:"cross_references"`
	ProcessingWarnings []string               `json:"processing_warnings"`
	NeedsReview        bool                   `json:"needs_review"`
	RawResponse        map[string]interface{} `json:"raw_docai_response,omitempty"`
}

// ValidateSpans returns one message per span that does not resolve against FullText.
func (d *ParsedDocument) ValidateSpans() []string {
	var problems []string
	check := func(kind, id string, s TextSpan) {
		if !s.Valid(d.FullText) {
			problems = append(problems, fmt.Sprintf("%s %s: span [%d:%d] does not match full text", kind, id, s.StartOffset, s.EndOffset))
		}
	}
	for _, e := range d.NamedEntities {
		check("entity", e.ID, e.TextSpan)
	}
	for _, c := range d.Clauses {
		check("clause", c.ID, c.TextSpan)
	}
	for _, kv := range d.KeyValuePairs {
		check("key", kv.ID, kv.Key)
		check("value", kv.ID, kv.Value)
	}
	return problems
}

// ParseRequest asks for a single document to be parsed.
type ParseRequest struct {
	GCSURI                 string                 `json:"gcs_uri"`
	ProcessorID            string                 `json:"processor_id,omitempty"`
	ConfidenceThreshold    *float64               `json:"confidence_threshold,omitempty"`
	EnableNativePDFParsing bool                   `json:"enable_native_pdf_parsing"`
	IncludeRawResponse     bool                   `json:"include_raw_response"`
	Metadata               map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the request. Local paths are only accepted when allowLocal is set,
// in which case the caller is responsible for staging them.
func (r *ParseRequest) Validate(allowLocal bool) error {
	uri := strings.TrimSpace(r.GCSURI)
	if uri == "" {
		return fmt.Errorf("gcs_uri is required")
	}
	if !strings.HasPrefix(uri, "gs://") && !allowLocal {
		return fmt.Errorf("gcs_uri must start with gs://")
	}
	if t := r.ConfidenceThreshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("confidence_threshold must be between 0.0 and 1.0, got %v", *t)
	}
	return nil
}

// ParseResponse wraps a parse outcome. Document is set iff Success is true.
type ParseResponse struct {
	Success               bool            `json:"success"`
	Document              *ParsedDocument `json:"document,omitempty"`
	ErrorMessage          string          `json:"error_message,omitempty"`
	ProcessingTimeSeconds float64         `json:"processing_time_seconds"`
	RequestID             string          `json:"request_id"`
}
