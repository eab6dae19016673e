package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iterata/iterata/internal/models"
)

func newTestStore(t *testing.T) *MarkdownStore {
	t.Helper()
	s, err := NewMarkdownStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewMarkdownStore failed: %v", err)
	}
	return s
}

func testCorrection(id string, ts time.Time) models.Correction {
	return models.Correction{
		ID:             id,
		Timestamp:      ts,
		DocumentID:     "invoice_001.pdf",
		FieldPath:      "invoice.total_amount",
		OriginalValue:  "1234,56",
		CorrectedValue: "1234.56",
		Metadata:       map[string]any{"model": "ocr-v2"},
	}
}

func TestNewMarkdownStore_CreatesLayout(t *testing.T) {
	s := newTestStore(t)

	for _, dir := range []string{
		"inbox",
		"explained/format_errors",
		"explained/business_rules",
		"explained/other",
		"patterns",
		"rules",
		"meta",
	} {
		if _, err := os.Stat(filepath.Join(s.BasePath(), dir)); err != nil {
			t.Errorf("expected directory %s: %v", dir, err)
		}
	}
}

func TestSaveAndLoadCorrection(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := testCorrection("c1", now)
	if _, err := s.SaveCorrection(c); err != nil {
		t.Fatalf("SaveCorrection failed: %v", err)
	}

	loaded, err := s.LoadCorrections(StatusInbox)
	if err != nil {
		t.Fatalf("LoadCorrections failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 correction, got %d", len(loaded))
	}

	got := loaded[0]
	if got.ID != "c1" {
		t.Errorf("ID = %q, want %q", got.ID, "c1")
	}
	if !got.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, now)
	}
	if got.FieldPath != "invoice.total_amount" {
		t.Errorf("FieldPath = %q", got.FieldPath)
	}
	if got.OriginalValue != "1234,56" || got.CorrectedValue != "1234.56" {
		t.Errorf("values = %v -> %v", got.OriginalValue, got.CorrectedValue)
	}
	if got.Explained {
		t.Error("inbox correction should not be explained")
	}
	if got.Metadata["model"] != "ocr-v2" {
		t.Errorf("Metadata = %v", got.Metadata)
	}
}

func TestSaveCorrection_NumericValues(t *testing.T) {
	s := newTestStore(t)

	c := testCorrection("c1", time.Now().UTC())
	c.OriginalValue = 1234
	c.CorrectedValue = 1234.56
	if _, err := s.SaveCorrection(c); err != nil {
		t.Fatalf("SaveCorrection failed: %v", err)
	}

	loaded, err := s.LoadCorrections(StatusAll)
	if err != nil {
		t.Fatalf("LoadCorrections failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 correction, got %d", len(loaded))
	}
	if _, ok := loaded[0].OriginalValue.(int); !ok {
		t.Errorf("OriginalValue type = %T, want int", loaded[0].OriginalValue)
	}
	if _, ok := loaded[0].CorrectedValue.(float64); !ok {
		t.Errorf("CorrectedValue type = %T, want float64", loaded[0].CorrectedValue)
	}
}

func TestSaveExplanation_MovesToExplained(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := testCorrection("c1", now)
	if _, err := s.SaveCorrection(c); err != nil {
		t.Fatalf("SaveCorrection failed: %v", err)
	}

	e := models.Explanation{
		ID:           "e1",
		CorrectionID: "c1",
		Timestamp:    now.Add(time.Hour),
		Type:         models.ExplanationHumanProvided,
		Category:     models.CategoryFormatError,
		Description:  "Le séparateur décimal devrait être un point",
		ExplainerID:  "reviewer-1",
		Tags:         []string{"decimal", "format"},
	}
	newPath, err := s.SaveExplanation(e, c)
	if err != nil {
		t.Fatalf("SaveExplanation failed: %v", err)
	}
	if filepath.Dir(newPath) != filepath.Join(s.BasePath(), "explained", "format_errors") {
		t.Errorf("explained path = %s", newPath)
	}

	// Inbox copy must be gone.
	if _, err := os.Stat(filepath.Join(s.BasePath(), "inbox", "c1.md")); !os.IsNotExist(err) {
		t.Error("inbox file should have been removed")
	}

	inbox, err := s.LoadCorrections(StatusInbox)
	if err != nil {
		t.Fatalf("LoadCorrections(inbox) failed: %v", err)
	}
	if len(inbox) != 0 {
		t.Errorf("expected empty inbox, got %d", len(inbox))
	}

	explained, err := s.LoadCorrections(StatusExplained)
	if err != nil {
		t.Fatalf("LoadCorrections(explained) failed: %v", err)
	}
	if len(explained) != 1 {
		t.Fatalf("expected 1 explained correction, got %d", len(explained))
	}

	got := explained[0]
	if got.ID != "c1" {
		t.Errorf("ID changed across transition: %q", got.ID)
	}
	if !got.Explained {
		t.Error("expected Explained=true")
	}
	if got.Category != models.CategoryFormatError {
		t.Errorf("Category = %q", got.Category)
	}
	if got.Description != "Le séparateur décimal devrait être un point" {
		t.Errorf("Description = %q", got.Description)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "decimal" {
		t.Errorf("Tags = %v", got.Tags)
	}
}

func TestSaveExplanation_MissingCorrection(t *testing.T) {
	s := newTestStore(t)

	e := models.Explanation{ID: "e1", CorrectionID: "nope", Category: models.CategoryOther}
	c := models.Correction{ID: "nope", Timestamp: time.Now()}
	if _, err := s.SaveExplanation(e, c); err == nil {
		t.Error("expected error for missing inbox correction")
	}
}

func TestLoadCorrections_All(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"c1", "c2", "c3"} {
		c := testCorrection(id, base.Add(time.Duration(i)*time.Hour))
		if _, err := s.SaveCorrection(c); err != nil {
			t.Fatalf("SaveCorrection failed: %v", err)
		}
	}

	c1 := testCorrection("c1", base)
	e := models.Explanation{
		ID:           "e1",
		CorrectionID: "c1",
		Timestamp:    base.Add(time.Hour),
		Type:         models.ExplanationHumanProvided,
		Category:     models.CategoryBusinessRule,
		Description:  "Nom complet requis",
		ExplainerID:  "reviewer-1",
	}
	if _, err := s.SaveExplanation(e, c1); err != nil {
		t.Fatalf("SaveExplanation failed: %v", err)
	}

	all, err := s.LoadCorrections(StatusAll)
	if err != nil {
		t.Fatalf("LoadCorrections(all) failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 corrections, got %d", len(all))
	}

	// Snapshot ordering is by timestamp, then ID.
	if all[0].ID != "c1" || all[1].ID != "c2" || all[2].ID != "c3" {
		t.Errorf("unexpected order: %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}
}

func TestLoadCorrections_UnknownStatus(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.LoadCorrections(Status("bogus")); err == nil {
		t.Error("expected error for unknown status")
	}
}
