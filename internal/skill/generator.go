// Package skill renders the accumulated correction knowledge into a
// Claude skill directory: a SKILL.md entry point, per-category rule
// files, few-shot example JSON and a validation script.
package skill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/iterata/iterata/internal/models"
	"github.com/iterata/iterata/internal/patterns"
	"github.com/iterata/iterata/internal/store"
)

// DefaultSkillName is used when the caller does not name the skill.
const DefaultSkillName = "extraction-expertise"

// Readiness reports whether enough explained corrections exist to
// generate a useful skill.
type Readiness struct {
	Ready            bool   `json:"ready"`
	CorrectionsCount int    `json:"corrections_count"`
	PatternsCount    int    `json:"patterns_count"`
	MinRequired      int    `json:"min_required"`
	Reason           string `json:"reason"`
}

// Generator renders skills from the store's explained corrections.
type Generator struct {
	store store.Store
	now   func() time.Time
}

// NewGenerator creates a generator reading from the given store.
func NewGenerator(s store.Store) *Generator {
	return &Generator{store: s, now: time.Now}
}

// Generate writes a complete skill under skillPath and returns the path
// of the generated SKILL.md. It fails when fewer than minCorrections
// explained corrections exist.
func (g *Generator) Generate(skillPath, skillName string, minCorrections, minOccurrences int) (string, error) {
	if skillName == "" {
		skillName = DefaultSkillName
	}

	corrections, err := g.store.LoadCorrections(store.StatusExplained)
	if err != nil {
		return "", err
	}
	if len(corrections) < minCorrections {
		return "", fmt.Errorf("not enough corrections (%d < %d)", len(corrections), minCorrections)
	}

	pats := patterns.DetectPatterns(corrections, minOccurrences)
	fieldPats := patterns.DetectPatternsByField(corrections, minOccurrences)
	transformations := patterns.DetectTransformationPatterns(corrections, minOccurrences)

	for _, dir := range []string{"", "rules", "examples", "scripts"} {
		if err := os.MkdirAll(filepath.Join(skillPath, dir), 0o755); err != nil {
			return "", fmt.Errorf("creating skill layout: %w", err)
		}
	}

	skillFile := filepath.Join(skillPath, "SKILL.md")
	if err := g.writeSkillMD(skillFile, skillName, corrections, pats, fieldPats, transformations); err != nil {
		return "", err
	}
	if err := g.writeRules(skillPath, pats, corrections); err != nil {
		return "", err
	}
	if err := g.writeExamples(skillPath, corrections, pats); err != nil {
		return "", err
	}
	if err := g.writeValidationScript(skillPath, transformations); err != nil {
		return "", err
	}
	if err := g.writeReadme(skillPath, skillName, corrections, pats); err != nil {
		return "", err
	}
	return skillFile, nil
}

// CanGenerate checks skill-generation readiness without writing anything.
func (g *Generator) CanGenerate(minCorrections int) (Readiness, error) {
	corrections, err := g.store.LoadCorrections(store.StatusExplained)
	if err != nil {
		return Readiness{}, err
	}
	pats := patterns.DetectPatterns(corrections, patterns.DefaultMinOccurrences)

	r := Readiness{
		CorrectionsCount: len(corrections),
		PatternsCount:    len(pats),
		MinRequired:      minCorrections,
	}
	switch {
	case len(corrections) < minCorrections:
		r.Reason = fmt.Sprintf("Need %d more corrections", minCorrections-len(corrections))
	case len(pats) == 0:
		r.Reason = "No patterns detected"
	default:
		r.Ready = true
		r.Reason = "Ready to generate skill"
	}
	return r, nil
}

var skillTemplate = template.Must(template.New("skill").Parse(`---
name: {{.Name}}
description: Field extraction expertise learned from {{.TotalCorrections}} human corrections. Use when extracting structured fields from documents to avoid known recurring errors.
---

# {{.Name}}

Knowledge distilled from {{.TotalCorrections}} explained corrections
({{.PatternCount}} recurring patterns detected, generated {{.GeneratedAt}}).

## Top error patterns
{{range .TopPatterns}}
- **{{.Description}}** — {{.Frequency}} occurrences, impact {{.Impact}}, automation potential {{printf "%.2f" .AutomationPotential}}
{{- end}}

## Automatable corrections

These patterns are mechanical enough to apply without review:
{{range .Automatable}}
- {{.Description}} ({{.Frequency}} occurrences)
{{- end}}
{{- if not .Automatable}}
(none yet)
{{- end}}

## Problematic fields
{{range .ProblematicFields}}
- ` + "`{{.ID}}`" + `: {{.Description}} ({{.Frequency}} corrections)
{{- end}}

## Frequent transformations
{{range .Transformations}}
- ` + "`{{.Pattern}}`" + ` ({{.Frequency}} times)
{{- end}}

## Usage

Consult rules/ for per-category guidance and examples/ for few-shot
correction examples. Run scripts/validate_extraction.py on extracted
values before accepting them.
`))

type skillData struct {
	Name              string
	TotalCorrections  int
	PatternCount      int
	GeneratedAt       string
	TopPatterns       []models.Pattern
	Automatable       []models.Pattern
	ProblematicFields []models.Pattern
	Transformations   []patterns.TransformationPattern
}

func (g *Generator) writeSkillMD(path, name string, corrections []models.Correction, pats, fieldPats []models.Pattern, transformations []patterns.TransformationPattern) error {
	top := make([]models.Pattern, len(pats))
	copy(top, pats)
	sort.SliceStable(top, func(i, j int) bool {
		si, sj := impactScore(top[i].Impact), impactScore(top[j].Impact)
		if si != sj {
			return si > sj
		}
		return top[i].Frequency > top[j].Frequency
	})
	if len(top) > 10 {
		top = top[:10]
	}

	var automatable []models.Pattern
	for _, p := range pats {
		if p.AutomationPotential >= patterns.AutomatableThreshold {
			automatable = append(automatable, p)
		}
	}

	fields := make([]models.Pattern, len(fieldPats))
	copy(fields, fieldPats)
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Frequency > fields[j].Frequency
	})
	if len(fields) > 5 {
		fields = fields[:5]
	}

	topTransformations := transformations
	if len(topTransformations) > 5 {
		topTransformations = topTransformations[:5]
	}

	return renderTo(path, skillTemplate, skillData{
		Name:              name,
		TotalCorrections:  len(corrections),
		PatternCount:      len(pats),
		GeneratedAt:       g.now().UTC().Format("2006-01-02"),
		TopPatterns:       top,
		Automatable:       automatable,
		ProblematicFields: fields,
		Transformations:   topTransformations,
	})
}

var ruleTemplate = template.Must(template.New("rule").Parse(`# Rule: {{.Category}}

{{.CorrectionCount}} corrections fall into this category.

## Patterns
{{range .Patterns}}
- {{.Description}} ({{.Frequency}} occurrences, impact {{.Impact}})
{{- end}}

## Examples
{{range .Examples}}
- ` + "`{{.FieldPath}}`" + `: ` + "`{{.OriginalValue}}`" + ` -> ` + "`{{.CorrectedValue}}`" + `{{if .Description}} ({{.Description}}){{end}}
{{- end}}
`))

type ruleData struct {
	Category        string
	CorrectionCount int
	Patterns        []models.Pattern
	Examples        []models.Correction
}

func (g *Generator) writeRules(skillPath string, pats []models.Pattern, corrections []models.Correction) error {
	byCategory := make(map[models.CorrectionType][]models.Correction)
	for _, c := range corrections {
		cat := models.CategoryOther
		if c.Category != "" {
			cat = models.ParseCategory(string(c.Category))
		}
		byCategory[cat] = append(byCategory[cat], c)
	}

	for _, cat := range models.Categories() {
		group := byCategory[cat]
		if len(group) < 3 {
			continue
		}

		var related []models.Pattern
		for _, p := range pats {
			if p.Category == cat && p.Frequency >= 3 {
				related = append(related, p)
			}
		}
		if len(related) == 0 {
			continue
		}

		examples := group
		if len(examples) > 5 {
			examples = examples[:5]
		}

		name := strings.ReplaceAll(string(cat), "_", "-") + ".md"
		err := renderTo(filepath.Join(skillPath, "rules", name), ruleTemplate, ruleData{
			Category:        string(cat),
			CorrectionCount: len(group),
			Patterns:        related,
			Examples:        examples,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// correctionExample is the few-shot shape written to examples/.
type correctionExample struct {
	Field       string `json:"field"`
	Original    any    `json:"original"`
	Corrected   any    `json:"corrected"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

type patternExamples struct {
	PatternID   string              `json:"pattern_id"`
	Description string              `json:"description"`
	Frequency   int                 `json:"frequency"`
	Impact      models.Impact       `json:"impact"`
	Examples    []correctionExample `json:"examples"`
}

func (g *Generator) writeExamples(skillPath string, corrections []models.Correction, pats []models.Pattern) error {
	// Store snapshots are ordered oldest first; take the most recent 20.
	recent := corrections
	if len(recent) > 20 {
		recent = recent[len(recent)-20:]
	}
	general := make([]correctionExample, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		general = append(general, toExample(recent[i]))
	}
	if err := writeJSON(filepath.Join(skillPath, "examples", "corrections.json"), general); err != nil {
		return err
	}

	byID := make(map[string]models.Correction, len(corrections))
	for _, c := range corrections {
		byID[c.ID] = c
	}

	topPats := pats
	if len(topPats) > 5 {
		topPats = topPats[:5]
	}
	perPattern := make([]patternExamples, 0, len(topPats))
	for _, p := range topPats {
		pe := patternExamples{
			PatternID:   p.ID,
			Description: p.Description,
			Frequency:   p.Frequency,
			Impact:      p.Impact,
		}
		for _, id := range p.CorrectionIDs {
			if len(pe.Examples) == 3 {
				break
			}
			if c, ok := byID[id]; ok {
				pe.Examples = append(pe.Examples, toExample(c))
			}
		}
		perPattern = append(perPattern, pe)
	}
	return writeJSON(filepath.Join(skillPath, "examples", "patterns.json"), perPattern)
}

var validationScriptTemplate = template.Must(template.New("script").Parse(`#!/usr/bin/env python3
"""Validate extracted values against known correction patterns."""

import re
import sys

# Transformations observed in past corrections, most frequent first.
KNOWN_TRANSFORMATIONS = [
{{- range .Transformations}}
    ("{{.Pattern}}", {{.Frequency}}),
{{- end}}
]


def check_decimal_separator(value):
    """Flag values that look like comma-decimal numbers."""
    return bool(re.fullmatch(r"\d{1,3}(?:\s?\d{3})*,\d+", value))


def validate(value):
    warnings = []
    if check_decimal_separator(value):
        warnings.append("comma decimal separator, expected a dot")
    if value != value.strip():
        warnings.append("leading or trailing whitespace")
    return warnings


if __name__ == "__main__":
    failed = False
    for value in sys.argv[1:]:
        for warning in validate(value):
            print(f"{value}: {warning}")
            failed = True
    sys.exit(1 if failed else 0)
`))

func (g *Generator) writeValidationScript(skillPath string, transformations []patterns.TransformationPattern) error {
	path := filepath.Join(skillPath, "scripts", "validate_extraction.py")
	err := renderTo(path, validationScriptTemplate, struct {
		Transformations []patterns.TransformationPattern
	}{transformations})
	if err != nil {
		return err
	}
	return os.Chmod(path, 0o755)
}

var readmeTemplate = template.Must(template.New("readme").Parse(`# {{.Name}}

Generated skill capturing extraction-correction expertise.

- Corrections analyzed: {{.TotalCorrections}}
- Recurring patterns: {{.PatternCount}}
- High impact patterns: {{.HighImpactCount}}
- Automatable patterns: {{.AutomatableCount}}

Layout:

- ` + "`SKILL.md`" + ` — entry point with the distilled knowledge
- ` + "`rules/`" + ` — one rule file per major error category
- ` + "`examples/`" + ` — few-shot correction examples as JSON
- ` + "`scripts/validate_extraction.py`" + ` — pre-acceptance validation
`))

func (g *Generator) writeReadme(skillPath, name string, corrections []models.Correction, pats []models.Pattern) error {
	high, automatable := 0, 0
	for _, p := range pats {
		if p.Impact == models.ImpactHigh {
			high++
		}
		if p.AutomationPotential >= patterns.AutomatableThreshold {
			automatable++
		}
	}
	return renderTo(filepath.Join(skillPath, "README.md"), readmeTemplate, struct {
		Name             string
		TotalCorrections int
		PatternCount     int
		HighImpactCount  int
		AutomatableCount int
	}{name, len(corrections), len(pats), high, automatable})
}

func toExample(c models.Correction) correctionExample {
	return correctionExample{
		Field:       c.FieldPath,
		Original:    c.OriginalValue,
		Corrected:   c.CorrectedValue,
		Category:    string(c.Category),
		Description: c.Description,
	}
}

func impactScore(impact models.Impact) int {
	switch impact {
	case models.ImpactHigh:
		return 3
	case models.ImpactMedium:
		return 2
	case models.ImpactLow:
		return 1
	default:
		return 0
	}
}

func renderTo(path string, tmpl *template.Template, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := tmpl.Execute(f, data); err != nil {
		f.Close()
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
