package index

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/iterata/iterata/internal/models"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func indexedCorrection(id int, field string, explained bool, category models.CorrectionType) models.Correction {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	c := models.Correction{
		ID:             fmt.Sprintf("c-%03d", id),
		Timestamp:      base.Add(time.Duration(id) * time.Minute),
		DocumentID:     fmt.Sprintf("doc_%03d.pdf", id%2),
		FieldPath:      field,
		OriginalValue:  "1,2",
		CorrectedValue: "1.2",
	}
	if explained {
		c.Explained = true
		c.Category = category
	}
	return c
}

func TestRebuildAndCounts(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	records := []models.Correction{
		indexedCorrection(1, "amount", true, models.CategoryFormatError),
		indexedCorrection(2, "amount", true, models.CategoryFormatError),
		indexedCorrection(3, "vendor", true, models.CategoryBusinessRule),
		indexedCorrection(4, "vendor", false, ""),
		indexedCorrection(5, "date", false, ""),
	}

	n, err := ix.Rebuild(ctx, records)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Rebuild indexed %d, want 5", n)
	}

	counts, err := ix.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts.Total != 5 || counts.Inbox != 2 || counts.Explained != 3 {
		t.Errorf("counts = %+v", counts)
	}

	byCategory, err := ix.CountByCategory(ctx)
	if err != nil {
		t.Fatalf("CountByCategory failed: %v", err)
	}
	if len(byCategory) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(byCategory))
	}
	if byCategory[0].Category != models.CategoryFormatError || byCategory[0].Count != 2 {
		t.Errorf("byCategory[0] = %+v", byCategory[0])
	}
	if byCategory[1].Category != models.CategoryBusinessRule || byCategory[1].Count != 1 {
		t.Errorf("byCategory[1] = %+v", byCategory[1])
	}
}

func TestRebuild_ReplacesPreviousContent(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	first := []models.Correction{
		indexedCorrection(1, "amount", false, ""),
		indexedCorrection(2, "amount", false, ""),
	}
	if _, err := ix.Rebuild(ctx, first); err != nil {
		t.Fatalf("first Rebuild failed: %v", err)
	}

	second := []models.Correction{
		indexedCorrection(3, "vendor", true, models.CategoryOther),
	}
	if _, err := ix.Rebuild(ctx, second); err != nil {
		t.Fatalf("second Rebuild failed: %v", err)
	}

	counts, err := ix.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts.Total != 1 || counts.Explained != 1 {
		t.Errorf("counts after rebuild = %+v", counts)
	}
}

func TestRebuild_Empty(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	if _, err := ix.Rebuild(ctx, nil); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	counts, err := ix.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts.Total != 0 {
		t.Errorf("counts = %+v, want zeros", counts)
	}
	fields, err := ix.TopFields(ctx, 10)
	if err != nil {
		t.Fatalf("TopFields failed: %v", err)
	}
	if len(fields) != 0 {
		t.Errorf("fields = %v, want none", fields)
	}
}

func TestTopFields(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	var records []models.Correction
	for i := 0; i < 4; i++ {
		records = append(records, indexedCorrection(i, "amount", false, ""))
	}
	for i := 4; i < 6; i++ {
		records = append(records, indexedCorrection(i, "vendor", false, ""))
	}
	records = append(records, indexedCorrection(6, "date", false, ""))

	if _, err := ix.Rebuild(ctx, records); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	fields, err := ix.TopFields(ctx, 2)
	if err != nil {
		t.Fatalf("TopFields failed: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].FieldPath != "amount" || fields[0].Count != 4 {
		t.Errorf("fields[0] = %+v", fields[0])
	}
	if fields[1].FieldPath != "vendor" || fields[1].Count != 2 {
		t.Errorf("fields[1] = %+v", fields[1])
	}
}
