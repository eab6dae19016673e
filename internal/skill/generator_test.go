package skill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/iterata/iterata/internal/models"
	"github.com/iterata/iterata/internal/store"
)

func newTestGenerator(t *testing.T) (*Generator, *store.MarkdownStore) {
	t.Helper()
	s, err := store.NewMarkdownStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewMarkdownStore failed: %v", err)
	}
	g := NewGenerator(s)
	g.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return g, s
}

func seedExplained(t *testing.T, s *store.MarkdownStore, n int) {
	t.Helper()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := models.Correction{
			ID:             fmt.Sprintf("c-%03d", i),
			Timestamp:      base.Add(time.Duration(i) * time.Hour),
			DocumentID:     fmt.Sprintf("doc_%03d.pdf", i),
			FieldPath:      "amount",
			OriginalValue:  fmt.Sprintf("1%d34,56", i),
			CorrectedValue: fmt.Sprintf("1%d34.56", i),
		}
		if _, err := s.SaveCorrection(c); err != nil {
			t.Fatalf("SaveCorrection failed: %v", err)
		}
		e := models.Explanation{
			ID:           "e-" + c.ID,
			CorrectionID: c.ID,
			Timestamp:    c.Timestamp.Add(time.Minute),
			Type:         models.ExplanationHumanProvided,
			Category:     models.CategoryFormatError,
			Description:  "Le séparateur décimal devrait être un point",
			ExplainerID:  "reviewer-1",
		}
		if _, err := s.SaveExplanation(e, c); err != nil {
			t.Fatalf("SaveExplanation failed: %v", err)
		}
	}
}

func TestGenerate_NotEnoughCorrections(t *testing.T) {
	g, s := newTestGenerator(t)
	seedExplained(t, s, 3)

	if _, err := g.Generate(t.TempDir(), "", 10, 3); err == nil {
		t.Error("expected error with too few corrections")
	}
}

func TestGenerate_WritesSkillTree(t *testing.T) {
	g, s := newTestGenerator(t)
	seedExplained(t, s, 12)
	skillPath := filepath.Join(t.TempDir(), "my-skill")

	skillFile, err := g.Generate(skillPath, "", 10, 3)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if skillFile != filepath.Join(skillPath, "SKILL.md") {
		t.Errorf("skill file = %s", skillFile)
	}

	content, err := os.ReadFile(skillFile)
	if err != nil {
		t.Fatalf("reading SKILL.md: %v", err)
	}
	text := string(content)
	for _, want := range []string{
		"name: extraction-expertise",
		"12 human corrections",
		"Le séparateur décimal devrait être un point",
		"decimal_comma_to_dot",
		"generated 2026-03-01",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("SKILL.md missing %q", want)
		}
	}

	// Rule file for the dominant category.
	ruleFile := filepath.Join(skillPath, "rules", "format-error.md")
	rule, err := os.ReadFile(ruleFile)
	if err != nil {
		t.Fatalf("reading rule file: %v", err)
	}
	if !strings.Contains(string(rule), "# Rule: format_error") {
		t.Errorf("rule content = %s", rule)
	}

	readme, err := os.ReadFile(filepath.Join(skillPath, "README.md"))
	if err != nil {
		t.Fatalf("reading README: %v", err)
	}
	if !strings.Contains(string(readme), "Corrections analyzed: 12") {
		t.Errorf("README content = %s", readme)
	}
}

func TestGenerate_Examples(t *testing.T) {
	g, s := newTestGenerator(t)
	seedExplained(t, s, 25)
	skillPath := t.TempDir()

	if _, err := g.Generate(skillPath, "", 10, 3); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(skillPath, "examples", "corrections.json"))
	if err != nil {
		t.Fatalf("reading corrections.json: %v", err)
	}
	var general []correctionExample
	if err := json.Unmarshal(data, &general); err != nil {
		t.Fatalf("parsing corrections.json: %v", err)
	}
	if len(general) != 20 {
		t.Errorf("general examples = %d, want 20", len(general))
	}
	// Most recent correction first.
	if general[0].Original != "12434,56" {
		t.Errorf("general[0].Original = %v", general[0].Original)
	}

	data, err = os.ReadFile(filepath.Join(skillPath, "examples", "patterns.json"))
	if err != nil {
		t.Fatalf("reading patterns.json: %v", err)
	}
	var perPattern []patternExamples
	if err := json.Unmarshal(data, &perPattern); err != nil {
		t.Fatalf("parsing patterns.json: %v", err)
	}
	if len(perPattern) != 1 {
		t.Fatalf("pattern examples = %d, want 1", len(perPattern))
	}
	if perPattern[0].Frequency != 25 || len(perPattern[0].Examples) != 3 {
		t.Errorf("perPattern[0] = %+v", perPattern[0])
	}
}

func TestGenerate_ValidationScriptExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on windows")
	}
	g, s := newTestGenerator(t)
	seedExplained(t, s, 10)
	skillPath := t.TempDir()

	if _, err := g.Generate(skillPath, "", 10, 3); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(skillPath, "scripts", "validate_extraction.py"))
	if err != nil {
		t.Fatalf("stat script: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Errorf("script mode = %v, want executable", info.Mode())
	}
}

func TestCanGenerate(t *testing.T) {
	g, s := newTestGenerator(t)

	r, err := g.CanGenerate(10)
	if err != nil {
		t.Fatalf("CanGenerate failed: %v", err)
	}
	if r.Ready {
		t.Error("empty store should not be ready")
	}
	if r.Reason != "Need 10 more corrections" {
		t.Errorf("Reason = %q", r.Reason)
	}

	seedExplained(t, s, 12)
	r, err = g.CanGenerate(10)
	if err != nil {
		t.Fatalf("CanGenerate failed: %v", err)
	}
	if !r.Ready {
		t.Errorf("expected ready, got %+v", r)
	}
	if r.CorrectionsCount != 12 || r.PatternsCount != 1 {
		t.Errorf("counts = %d/%d", r.CorrectionsCount, r.PatternsCount)
	}
}

func TestCanGenerate_NoPatterns(t *testing.T) {
	g, s := newTestGenerator(t)

	// Enough corrections but each in its own category/subcategory group.
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	cats := models.Categories()
	for i := 0; i < 5; i++ {
		c := models.Correction{
			ID:             fmt.Sprintf("c-%03d", i),
			Timestamp:      base.Add(time.Duration(i) * time.Hour),
			DocumentID:     "doc.pdf",
			FieldPath:      fmt.Sprintf("field_%d", i),
			OriginalValue:  "a",
			CorrectedValue: "b",
		}
		if _, err := s.SaveCorrection(c); err != nil {
			t.Fatalf("SaveCorrection failed: %v", err)
		}
		e := models.Explanation{
			ID:           "e-" + c.ID,
			CorrectionID: c.ID,
			Timestamp:    c.Timestamp.Add(time.Minute),
			Type:         models.ExplanationHumanProvided,
			Category:     cats[i%len(cats)],
			Description:  "d",
			ExplainerID:  "reviewer-1",
		}
		if _, err := s.SaveExplanation(e, c); err != nil {
			t.Fatalf("SaveExplanation failed: %v", err)
		}
	}

	r, err := g.CanGenerate(5)
	if err != nil {
		t.Fatalf("CanGenerate failed: %v", err)
	}
	if r.Ready {
		t.Error("should not be ready without patterns")
	}
	if r.Reason != "No patterns detected" {
		t.Errorf("Reason = %q", r.Reason)
	}
}
