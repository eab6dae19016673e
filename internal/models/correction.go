package models

import (
	"time"

	"github.com/google/uuid"
)

// CorrectionType categorizes why an extracted value needed correcting.
// It is a closed set: unrecognized strings parse to CategoryOther.
type CorrectionType string

const (
	CategoryFormatError     CorrectionType = "format_error"
	CategoryBusinessRule    CorrectionType = "business_rule"
	CategoryModelLimitation CorrectionType = "model_limitation"
	CategoryContextMissing  CorrectionType = "context_missing"
	CategoryOCRError        CorrectionType = "ocr_error"
	CategoryOther           CorrectionType = "other"
)

// Categories lists every known correction category, in display order.
func Categories() []CorrectionType {
	return []CorrectionType{
		CategoryFormatError,
		CategoryBusinessRule,
		CategoryModelLimitation,
		CategoryContextMissing,
		CategoryOCRError,
		CategoryOther,
	}
}

// ParseCategory maps an arbitrary string onto the closed category set.
// It never fails: anything unrecognized degrades to CategoryOther.
func ParseCategory(s string) CorrectionType {
	switch CorrectionType(s) {
	case CategoryFormatError, CategoryBusinessRule, CategoryModelLimitation,
		CategoryContextMissing, CategoryOCRError, CategoryOther:
		return CorrectionType(s)
	default:
		return CategoryOther
	}
}

// ExplanationType identifies who or what produced an explanation.
type ExplanationType string

const (
	ExplanationHumanProvided ExplanationType = "human_provided"
	ExplanationLLMInferred   ExplanationType = "llm_inferred"
	ExplanationValidated     ExplanationType = "validated"
)

// Impact is the coarse tier derived from a pattern's frequency.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Correction represents one logged (original, corrected) value pair for a
// document field. Values are heterogeneous: string-specific analyses apply
// only when both sides are strings.
//
// A correction starts pending. Once an explanation is attached, Explained
// flips to true and the typed explanation fields below are populated. The
// transition happens exactly once and the ID is stable across it.
type Correction struct {
	ID        string    `json:"correction_id" yaml:"correction_id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	DocumentID string `json:"document_id" yaml:"document_id"`

	// Dotted path naming the corrected field, e.g. "invoice.total_amount".
	FieldPath string `json:"field_path" yaml:"field_path"`

	OriginalValue  any `json:"original_value" yaml:"original_value"`
	CorrectedValue any `json:"corrected_value" yaml:"corrected_value"`

	// Extraction confidence prior to correction, in [0,1], if known.
	ConfidenceBefore *float64 `json:"confidence_before,omitempty" yaml:"confidence_before,omitempty"`

	// Who performed the correction, if known.
	CorrectorID string `json:"corrector_id,omitempty" yaml:"corrector_id,omitempty"`

	// Free-form provenance metadata (model name, extraction method,
	// document type, batch id, ...). Never carries explanation fields.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Explanation fields, populated once the correction is explained.
	Explained   bool           `json:"explained" yaml:"explained"`
	Category    CorrectionType `json:"category,omitempty" yaml:"category,omitempty"`
	Subcategory string         `json:"subcategory,omitempty" yaml:"subcategory,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Explanation is the categorized rationale attached to exactly one
// correction, created at most once per correction.
type Explanation struct {
	ID           string          `json:"explanation_id" yaml:"explanation_id"`
	CorrectionID string          `json:"correction_id" yaml:"correction_id"`
	Timestamp    time.Time       `json:"timestamp" yaml:"timestamp"`
	Type         ExplanationType `json:"explanation_type" yaml:"explanation_type"`
	Category     CorrectionType  `json:"category" yaml:"category"`
	Subcategory  string          `json:"subcategory,omitempty" yaml:"subcategory,omitempty"`
	Description  string          `json:"description" yaml:"description"`

	// Explanation certainty in [0,1]; distinct from Correction.ConfidenceBefore.
	Confidence *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`

	ExplainerID string   `json:"explainer_id" yaml:"explainer_id"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Pattern is a derived grouping of corrections sharing a category, field or
// transformation. Patterns are recomputed on every analysis call from the
// current record snapshot; they have no persistence of their own.
type Pattern struct {
	ID                  string         `json:"pattern_id"`
	Category            CorrectionType `json:"category"`
	Description         string         `json:"description"`
	Frequency           int            `json:"frequency"`
	FirstSeen           time.Time      `json:"first_seen"`
	LastSeen            time.Time      `json:"last_seen"`
	CorrectionIDs       []string       `json:"correction_ids"`
	Impact              Impact         `json:"impact"`
	AutomationPotential float64        `json:"automation_potential"`
}

// NewID returns a fresh random identifier for corrections and explanations.
func NewID() string {
	return uuid.NewString()
}
