// Package patterns derives recurring error patterns from explained
// correction records: groupings by category, by field and by string
// transformation, each scored for impact and automation potential.
//
// All detection functions are pure passes over a snapshot: two calls
// against identical records produce identical results, and empty input
// yields empty output rather than an error.
package patterns

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/iterata/iterata/internal/models"
	"github.com/iterata/iterata/internal/store"
	"github.com/iterata/iterata/internal/transform"
)

// DefaultMinOccurrences is the frequency floor below which a group is not
// reported as a pattern.
const DefaultMinOccurrences = 3

// AutomatableThreshold is the automation-potential score above which a
// pattern is considered mechanically repeatable.
const AutomatableThreshold = 0.7

// TransformationExample is one (field, original, corrected) triple
// illustrating a transformation group.
type TransformationExample struct {
	Field     string `json:"field"`
	Original  any    `json:"original"`
	Corrected any    `json:"corrected"`
}

// TransformationPattern is the lightweight result of the transformation
// grouping: not a full Pattern, just the label with its members.
type TransformationPattern struct {
	Pattern       string                  `json:"pattern"`
	Frequency     int                     `json:"frequency"`
	Examples      []TransformationExample `json:"examples"`
	CorrectionIDs []string                `json:"correction_ids"`
}

// Summary is the threshold-1 overview of everything the detector sees.
type Summary struct {
	TotalPatterns               int                            `json:"total_patterns"`
	PatternsByCategory          map[models.CorrectionType]int  `json:"patterns_by_category"`
	HighImpactCount             int                            `json:"high_impact_count"`
	MediumImpactCount           int                            `json:"medium_impact_count"`
	LowImpactCount              int                            `json:"low_impact_count"`
	HighlyAutomatableCount      int                            `json:"highly_automatable_count"`
	FieldPatternsCount          int                            `json:"field_patterns_count"`
	TransformationPatternsCount int                            `json:"transformation_patterns_count"`
	TopPatterns                 []models.Pattern               `json:"top_patterns"`
	MostAutomatable             []models.Pattern               `json:"most_automatable"`
}

// Detector loads explained records from a store and runs the pure
// detection passes over the snapshot.
type Detector struct {
	store store.Store
}

// NewDetector creates a detector reading from the given store.
func NewDetector(s store.Store) *Detector {
	return &Detector{store: s}
}

// DetectPatterns groups explained records by (category, subcategory).
func (d *Detector) DetectPatterns(minOccurrences int) ([]models.Pattern, error) {
	records, err := d.store.LoadCorrections(store.StatusExplained)
	if err != nil {
		return nil, err
	}
	return DetectPatterns(records, minOccurrences), nil
}

// DetectPatternsByField groups explained records by field path.
func (d *Detector) DetectPatternsByField(minOccurrences int) ([]models.Pattern, error) {
	records, err := d.store.LoadCorrections(store.StatusExplained)
	if err != nil {
		return nil, err
	}
	return DetectPatternsByField(records, minOccurrences), nil
}

// DetectTransformationPatterns groups explained records by transformation
// label.
func (d *Detector) DetectTransformationPatterns(minOccurrences int) ([]TransformationPattern, error) {
	records, err := d.store.LoadCorrections(store.StatusExplained)
	if err != nil {
		return nil, err
	}
	return DetectTransformationPatterns(records, minOccurrences), nil
}

// PatternSummary computes the threshold-1 overview.
func (d *Detector) PatternSummary() (*Summary, error) {
	records, err := d.store.LoadCorrections(store.StatusExplained)
	if err != nil {
		return nil, err
	}
	return ComputeSummary(records), nil
}

// group is an ordered grouping bucket: groups come out in first-encounter
// key order, which keeps detection deterministic for a fixed snapshot.
type group struct {
	key     string
	records []models.Correction
}

func groupBy(records []models.Correction, key func(models.Correction) string) []group {
	index := make(map[string]int, len(records))
	var groups []group
	for _, r := range records {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, group{key: k})
		}
		groups[i].records = append(groups[i].records, r)
	}
	return groups
}

// DetectPatterns groups records by (category, subcategory) and returns one
// Pattern per group meeting the occurrence floor. Unrecognized categories
// are coerced to "other", never rejected.
func DetectPatterns(records []models.Correction, minOccurrences int) []models.Pattern {
	groups := groupBy(records, func(c models.Correction) string {
		return string(recordCategory(c)) + "_" + c.Subcategory
	})

	patterns := make([]models.Pattern, 0, len(groups))
	for _, g := range groups {
		if len(g.records) < minOccurrences {
			continue
		}
		p := buildPattern("pattern_"+g.key, recordCategory(g.records[0]), describeGroup(g.records), g.records)
		patterns = append(patterns, p)
	}
	return patterns
}

// DetectPatternsByField groups records by field path. The pattern category
// is the most frequent category among the group's members.
func DetectPatternsByField(records []models.Correction, minOccurrences int) []models.Pattern {
	groups := groupBy(records, func(c models.Correction) string {
		return c.FieldPath
	})

	patterns := make([]models.Pattern, 0, len(groups))
	for _, g := range groups {
		if len(g.records) < minOccurrences {
			continue
		}

		categories := make([]models.CorrectionType, len(g.records))
		for i, r := range g.records {
			categories[i] = recordCategory(r)
		}
		dominant, _ := mostCommon(categories)

		id := "pattern_field_" + strings.ReplaceAll(g.key, ".", "_")
		description := fmt.Sprintf("Erreur récurrente sur le champ '%s'", g.key)
		patterns = append(patterns, buildPattern(id, dominant, description, g.records))
	}
	return patterns
}

// DetectTransformationPatterns groups records by the inferred transformation
// label (or a type-pair label for non-string values), sorted by descending
// frequency. Each result keeps at most five examples.
func DetectTransformationPatterns(records []models.Correction, minOccurrences int) []TransformationPattern {
	groups := groupBy(records, func(c models.Correction) string {
		return transform.LabelFor(c.OriginalValue, c.CorrectedValue)
	})

	result := make([]TransformationPattern, 0, len(groups))
	for _, g := range groups {
		if len(g.records) < minOccurrences {
			continue
		}

		tp := TransformationPattern{
			Pattern:   g.key,
			Frequency: len(g.records),
		}
		for i, r := range g.records {
			if i < 5 {
				tp.Examples = append(tp.Examples, TransformationExample{
					Field:     r.FieldPath,
					Original:  r.OriginalValue,
					Corrected: r.CorrectedValue,
				})
			}
			tp.CorrectionIDs = append(tp.CorrectionIDs, r.ID)
		}
		result = append(result, tp)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Frequency > result[j].Frequency
	})
	return result
}

// ComputeSummary runs all three groupings at threshold 1 and aggregates
// the overview counters.
func ComputeSummary(records []models.Correction) *Summary {
	patterns := DetectPatterns(records, 1)
	fieldPatterns := DetectPatternsByField(records, 1)
	transformations := DetectTransformationPatterns(records, 1)

	s := &Summary{
		TotalPatterns:               len(patterns),
		PatternsByCategory:          make(map[models.CorrectionType]int),
		FieldPatternsCount:          len(fieldPatterns),
		TransformationPatternsCount: len(transformations),
	}

	for _, p := range patterns {
		s.PatternsByCategory[p.Category]++
		switch p.Impact {
		case models.ImpactHigh:
			s.HighImpactCount++
		case models.ImpactMedium:
			s.MediumImpactCount++
		default:
			s.LowImpactCount++
		}
		if p.AutomationPotential >= AutomatableThreshold {
			s.HighlyAutomatableCount++
		}
	}

	s.TopPatterns = topBy(patterns, 5, func(p models.Pattern) float64 { return float64(p.Frequency) })
	s.MostAutomatable = topBy(patterns, 5, func(p models.Pattern) float64 { return p.AutomationPotential })
	return s
}

func topBy(patterns []models.Pattern, n int, score func(models.Pattern) float64) []models.Pattern {
	sorted := make([]models.Pattern, len(patterns))
	copy(sorted, patterns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return score(sorted[i]) > score(sorted[j])
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func buildPattern(id string, category models.CorrectionType, description string, records []models.Correction) models.Pattern {
	first, last := records[0].Timestamp, records[0].Timestamp
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
		if r.Timestamp.Before(first) {
			first = r.Timestamp
		}
		if r.Timestamp.After(last) {
			last = r.Timestamp
		}
	}

	return models.Pattern{
		ID:                  id,
		Category:            category,
		Description:         description,
		Frequency:           len(records),
		FirstSeen:           first,
		LastSeen:            last,
		CorrectionIDs:       ids,
		Impact:              AssessImpact(len(records)),
		AutomationPotential: assessAutomationPotential(records),
	}
}

// recordCategory returns the record's parsed category, degrading missing or
// unrecognized values to "other".
func recordCategory(c models.Correction) models.CorrectionType {
	if c.Category == "" {
		return models.CategoryOther
	}
	return models.ParseCategory(string(c.Category))
}

// describeGroup picks the most common explicit description in the group,
// annotated with the dominant field; without any description it falls back
// to a generated field-based summary.
func describeGroup(records []models.Correction) string {
	fields := make([]string, len(records))
	for i, r := range records {
		fields[i] = r.FieldPath
	}
	dominantField, _ := mostCommon(fields)

	var descriptions []string
	for _, r := range records {
		if r.Description != "" {
			descriptions = append(descriptions, r.Description)
		}
	}
	if len(descriptions) > 0 {
		desc, _ := mostCommon(descriptions)
		return fmt.Sprintf("%s (champ: %s)", desc, dominantField)
	}
	return fmt.Sprintf("Erreur récurrente sur le champ '%s'", dominantField)
}

// AssessImpact buckets a pattern frequency into its impact tier.
func AssessImpact(frequency int) models.Impact {
	switch {
	case frequency >= 20:
		return models.ImpactHigh
	case frequency >= 10:
		return models.ImpactMedium
	default:
		return models.ImpactLow
	}
}

// assessAutomationPotential scores how mechanically repeatable a group's
// correction is, as a weighted sum of type, field and transformation
// consistency, rounded to two decimals.
func assessAutomationPotential(records []models.Correction) float64 {
	origTypes := make(map[string]bool)
	corrTypes := make(map[string]bool)
	fields := make(map[string]bool)
	allStrings := true

	for _, r := range records {
		origTypes[valueType(r.OriginalValue)] = true
		corrTypes[valueType(r.CorrectedValue)] = true
		fields[r.FieldPath] = true
		if _, ok := r.OriginalValue.(string); !ok {
			allStrings = false
		}
		if _, ok := r.CorrectedValue.(string); !ok {
			allStrings = false
		}
	}

	typeConsistency := 0.5
	if len(origTypes) == 1 && len(corrTypes) == 1 {
		typeConsistency = 1.0
	}

	fieldConsistency := 0.5
	if len(fields) == 1 {
		fieldConsistency = 1.0
	}

	transformationConsistency := 0.5
	if allStrings {
		labels := make(map[string]bool)
		for _, r := range records {
			labels[transform.Infer(r.OriginalValue.(string), r.CorrectedValue.(string))] = true
		}
		if len(labels) == 1 {
			transformationConsistency = 1.0
		} else {
			transformationConsistency = 0.3
		}
	}

	score := typeConsistency*0.3 + fieldConsistency*0.3 + transformationConsistency*0.4
	return math.Round(score*100) / 100
}

func valueType(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
