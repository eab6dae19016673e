package store

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iterata/iterata/internal/models"
)

const frontmatterDelimiter = "---"

// frontmatter is the YAML header written at the top of each record file.
// Explanation fields stay empty until the record is explained.
type frontmatter struct {
	CorrectionID     string         `yaml:"correction_id"`
	Timestamp        string         `yaml:"timestamp"`
	DocumentID       string         `yaml:"document_id"`
	FieldPath        string         `yaml:"field_path"`
	OriginalValue    any            `yaml:"original_value"`
	CorrectedValue   any            `yaml:"corrected_value"`
	ConfidenceBefore *float64       `yaml:"confidence_before,omitempty"`
	CorrectorID      string         `yaml:"corrector_id,omitempty"`
	Metadata         map[string]any `yaml:"metadata,omitempty"`
	Status           string         `yaml:"status"`

	ExplanationID         string   `yaml:"explanation_id,omitempty"`
	ExplanationType       string   `yaml:"explanation_type,omitempty"`
	ExplainedAt           string   `yaml:"explained_at,omitempty"`
	Category              string   `yaml:"category,omitempty"`
	Subcategory           string   `yaml:"subcategory,omitempty"`
	Description           string   `yaml:"description,omitempty"`
	ExplanationConfidence *float64 `yaml:"explanation_confidence,omitempty"`
	ExplainerID           string   `yaml:"explainer_id,omitempty"`
	Tags                  []string `yaml:"tags,omitempty"`
}

// encodeDocument renders a frontmatter header plus markdown body.
func encodeDocument(fm frontmatter, body string) ([]byte, error) {
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString(frontmatterDelimiter)
	b.WriteByte('\n')
	b.Write(header)
	b.WriteString(frontmatterDelimiter)
	b.WriteString("\n\n")
	b.WriteString(body)
	return []byte(b.String()), nil
}

// decodeDocument splits a record file into its frontmatter and body.
func decodeDocument(data []byte) (frontmatter, string, error) {
	text := string(data)
	if !strings.HasPrefix(text, frontmatterDelimiter+"\n") {
		return frontmatter{}, "", fmt.Errorf("missing frontmatter header")
	}
	rest := text[len(frontmatterDelimiter)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelimiter+"\n")
	if end < 0 {
		return frontmatter{}, "", fmt.Errorf("unterminated frontmatter header")
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return frontmatter{}, "", fmt.Errorf("parsing frontmatter: %w", err)
	}

	body := strings.TrimPrefix(rest[end+len(frontmatterDelimiter)+2:], "\n")
	return fm, body, nil
}

func correctionToFrontmatter(c models.Correction) frontmatter {
	fm := frontmatter{
		CorrectionID:     c.ID,
		Timestamp:        c.Timestamp.UTC().Format(time.RFC3339Nano),
		DocumentID:       c.DocumentID,
		FieldPath:        c.FieldPath,
		OriginalValue:    c.OriginalValue,
		CorrectedValue:   c.CorrectedValue,
		ConfidenceBefore: c.ConfidenceBefore,
		CorrectorID:      c.CorrectorID,
		Metadata:         c.Metadata,
		Status:           "inbox",
	}
	if c.Explained {
		fm.Status = "explained"
		fm.Category = string(c.Category)
		fm.Subcategory = c.Subcategory
		fm.Description = c.Description
		fm.Tags = c.Tags
	}
	return fm
}

func correctionFromFrontmatter(fm frontmatter) (models.Correction, error) {
	ts, err := time.Parse(time.RFC3339Nano, fm.Timestamp)
	if err != nil {
		return models.Correction{}, fmt.Errorf("parsing timestamp %q: %w", fm.Timestamp, err)
	}

	c := models.Correction{
		ID:               fm.CorrectionID,
		Timestamp:        ts.UTC(),
		DocumentID:       fm.DocumentID,
		FieldPath:        fm.FieldPath,
		OriginalValue:    fm.OriginalValue,
		CorrectedValue:   fm.CorrectedValue,
		ConfidenceBefore: fm.ConfidenceBefore,
		CorrectorID:      fm.CorrectorID,
		Metadata:         fm.Metadata,
	}
	if fm.Status == "explained" {
		c.Explained = true
		c.Category = models.ParseCategory(fm.Category)
		c.Subcategory = fm.Subcategory
		c.Description = fm.Description
		c.Tags = fm.Tags
	}
	return c, nil
}
