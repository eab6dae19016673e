// Package stats aggregates correction records into reports, prioritized
// recommendations and text/JSON/CSV exports. Every computation is a
// read-only pass over a snapshot loaded from the store; the only
// wall-clock dependence is the pair of 7/30-day window counters, driven
// by an injectable clock.
package stats

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/iterata/iterata/internal/models"
	"github.com/iterata/iterata/internal/patterns"
	"github.com/iterata/iterata/internal/store"
)

// Recommendation priorities, ordered high before medium before low.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Recommendation types.
const (
	TypeAutomation    = "automation"
	TypeInvestigation = "investigation"
	TypeRule          = "rule"
	TypeAction        = "action"
)

// KeyCount is one entry of a frequency ranking, ordered by descending
// count with ties in first-encounter order.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// TimeStats covers the temporal aggregates of a snapshot. All fields are
// zero when the snapshot is empty.
type TimeStats struct {
	FirstCorrection       string  `json:"first_correction,omitempty"`
	LastCorrection        string  `json:"last_correction,omitempty"`
	CorrectionsLast7Days  int     `json:"corrections_last_7_days"`
	CorrectionsLast30Days int     `json:"corrections_last_30_days"`
	DaysSinceFirst        int     `json:"days_since_first,omitempty"`
	AveragePerDay         float64 `json:"average_per_day,omitempty"`
}

// Report is the basic statistics report.
type Report struct {
	TotalCorrections     int                           `json:"total_corrections"`
	CorrectionsExplained int                           `json:"corrections_explained"`
	CorrectionsPending   int                           `json:"corrections_pending"`
	PatternsCount        int                           `json:"patterns_count"`
	CorrectionRate       float64                       `json:"correction_rate"`
	Categories           map[models.CorrectionType]int `json:"categories"`
	TopFields            []KeyCount                    `json:"top_fields"`
	TimeStats            TimeStats                     `json:"time_stats"`
	Patterns             []models.Pattern              `json:"patterns"`
}

// CorrectorStats counts corrections per corrector. Records without a
// corrector are excluded.
type CorrectorStats struct {
	TotalCorrectors        int        `json:"total_correctors"`
	CorrectionsByCorrector []KeyCount `json:"corrections_by_corrector"`
	MostActiveCorrector    *KeyCount  `json:"most_active_corrector,omitempty"`
}

// ConfidenceStats aggregates the prior-confidence scores of records that
// carry one. Average, min and max are rounded to three decimals.
type ConfidenceStats struct {
	CorrectionsWithConfidence int      `json:"corrections_with_confidence"`
	AverageConfidence         *float64 `json:"average_confidence"`
	MinConfidence             *float64 `json:"min_confidence,omitempty"`
	MaxConfidence             *float64 `json:"max_confidence,omitempty"`
	LowConfidenceCorrections  int      `json:"low_confidence_corrections"`
	LowConfidenceRate         float64  `json:"low_confidence_rate,omitempty"`
}

// DocumentStats counts corrections per document.
type DocumentStats struct {
	TotalDocuments               int        `json:"total_documents"`
	CorrectionsPerDocument       []KeyCount `json:"corrections_per_document"`
	AverageCorrectionsPerDoc     float64    `json:"average_corrections_per_doc"`
	DocumentsWithMostCorrections []KeyCount `json:"documents_with_most_corrections"`
}

// DetailedReport extends the basic report with pattern breakdowns and
// per-corrector, confidence and per-document aggregates.
type DetailedReport struct {
	Report

	FieldPatterns          []models.Pattern                 `json:"field_patterns"`
	TransformationPatterns []patterns.TransformationPattern `json:"transformation_patterns"`
	PatternSummary         *patterns.Summary                `json:"pattern_summary"`
	CorrectorStats         CorrectorStats                   `json:"corrector_stats"`
	ConfidenceStats        ConfidenceStats                  `json:"confidence_stats"`
	DocumentStats          DocumentStats                    `json:"document_stats"`
	InboxCorrections       int                              `json:"inbox_corrections"`
}

// Recommendation is one prioritized action derived from the detected
// patterns or the pending backlog.
type Recommendation struct {
	Priority  string                           `json:"priority"`
	Type      string                           `json:"type"`
	Title     string                           `json:"title"`
	Reason    string                           `json:"reason"`
	PatternID string                           `json:"pattern_id,omitempty"`
	Examples  []patterns.TransformationExample `json:"examples,omitempty"`
}

// Engine computes statistics over the records of a store.
type Engine struct {
	store store.Store

	// now drives the 7/30-day window counters; tests pin it.
	now func() time.Time
}

// NewEngine creates an engine reading from the given store.
func NewEngine(s store.Store) *Engine {
	return &Engine{store: s, now: time.Now}
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// Compute builds the basic report over the current snapshot.
func (e *Engine) Compute() (*Report, error) {
	all, err := e.store.LoadCorrections(store.StatusAll)
	if err != nil {
		return nil, err
	}
	explained, err := e.store.LoadCorrections(store.StatusExplained)
	if err != nil {
		return nil, err
	}

	pats := patterns.DetectPatterns(explained, patterns.DefaultMinOccurrences)

	categories := make(map[models.CorrectionType]int)
	for _, c := range explained {
		categories[models.ParseCategory(string(c.Category))]++
	}

	rate := 0.0
	if len(all) > 0 {
		rate = float64(len(explained)) / float64(len(all))
	}

	return &Report{
		TotalCorrections:     len(all),
		CorrectionsExplained: len(explained),
		CorrectionsPending:   len(all) - len(explained),
		PatternsCount:        len(pats),
		CorrectionRate:       rate,
		Categories:           categories,
		TopFields: topN(countBy(all, func(c models.Correction) string {
			return c.FieldPath
		}), 10),
		TimeStats: e.computeTimeStats(all),
		Patterns:  pats,
	}, nil
}

// ComputeDetailed builds the extended report.
func (e *Engine) ComputeDetailed() (*DetailedReport, error) {
	basic, err := e.Compute()
	if err != nil {
		return nil, err
	}
	all, err := e.store.LoadCorrections(store.StatusAll)
	if err != nil {
		return nil, err
	}
	explained, err := e.store.LoadCorrections(store.StatusExplained)
	if err != nil {
		return nil, err
	}
	inbox, err := e.store.LoadCorrections(store.StatusInbox)
	if err != nil {
		return nil, err
	}

	return &DetailedReport{
		Report:                 *basic,
		FieldPatterns:          patterns.DetectPatternsByField(explained, patterns.DefaultMinOccurrences),
		TransformationPatterns: patterns.DetectTransformationPatterns(explained, patterns.DefaultMinOccurrences),
		PatternSummary:         patterns.ComputeSummary(explained),
		CorrectorStats:         computeCorrectorStats(all),
		ConfidenceStats:        computeConfidenceStats(all),
		DocumentStats:          computeDocumentStats(all),
		InboxCorrections:       len(inbox),
	}, nil
}

// Recommendations derives the prioritized action list: high-impact
// patterns first, then frequent transformations worth codifying, then a
// backlog reminder when more than ten corrections are pending.
func (e *Engine) Recommendations() ([]Recommendation, error) {
	explained, err := e.store.LoadCorrections(store.StatusExplained)
	if err != nil {
		return nil, err
	}
	inbox, err := e.store.LoadCorrections(store.StatusInbox)
	if err != nil {
		return nil, err
	}

	pats := patterns.DetectPatterns(explained, patterns.DefaultMinOccurrences)
	transformations := patterns.DetectTransformationPatterns(explained, 5)

	var recs []Recommendation
	for _, p := range pats {
		if p.Impact != models.ImpactHigh {
			continue
		}
		if p.AutomationPotential >= patterns.AutomatableThreshold {
			recs = append(recs, Recommendation{
				Priority:  PriorityHigh,
				Type:      TypeAutomation,
				Title:     "Automate: " + p.Description,
				Reason:    fmt.Sprintf("High-impact pattern (%d occurrences) with high automation potential (%.0f%%)", p.Frequency, p.AutomationPotential*100),
				PatternID: p.ID,
			})
		} else {
			recs = append(recs, Recommendation{
				Priority:  PriorityHigh,
				Type:      TypeInvestigation,
				Title:     "Investigate: " + p.Description,
				Reason:    fmt.Sprintf("High-impact pattern (%d occurrences) requires deeper analysis", p.Frequency),
				PatternID: p.ID,
			})
		}
	}

	top := transformations
	if len(top) > 3 {
		top = top[:3]
	}
	for _, t := range top {
		if t.Frequency < 10 {
			continue
		}
		examples := t.Examples
		if len(examples) > 3 {
			examples = examples[:3]
		}
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Type:     TypeRule,
			Title:    "Create rule: " + t.Pattern,
			Reason:   fmt.Sprintf("Recurring transformation (%d times)", t.Frequency),
			Examples: examples,
		})
	}

	if len(inbox) > 10 {
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Type:     TypeAction,
			Title:    "Explain pending corrections",
			Reason:   fmt.Sprintf("%d corrections are awaiting an explanation", len(inbox)),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return priorityRank(recs[i].Priority) < priorityRank(recs[j].Priority)
	})
	return recs, nil
}

func priorityRank(p string) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Summary renders the basic report as a short human-readable text.
func (e *Engine) Summary() (string, error) {
	r, err := e.Compute()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n=== Iterata Statistics Summary ===\n\n")
	fmt.Fprintf(&b, "Total Corrections: %d\n", r.TotalCorrections)
	fmt.Fprintf(&b, "  - Explained: %d\n", r.CorrectionsExplained)
	fmt.Fprintf(&b, "  - Pending: %d\n", r.CorrectionsPending)
	fmt.Fprintf(&b, "  - Explanation Rate: %.1f%%\n\n", r.CorrectionRate*100)
	fmt.Fprintf(&b, "Patterns Detected: %d\n\n", r.PatternsCount)

	b.WriteString("Top Categories:\n")
	for _, kc := range sortedCategories(r.Categories) {
		fmt.Fprintf(&b, "  - %s: %d\n", kc.Key, kc.Count)
	}

	if len(r.TopFields) > 0 {
		b.WriteString("\nTop Fields with Corrections:\n")
		fields := r.TopFields
		if len(fields) > 5 {
			fields = fields[:5]
		}
		for _, kc := range fields {
			fmt.Fprintf(&b, "  - %s: %d\n", kc.Key, kc.Count)
		}
	}

	if r.TimeStats.CorrectionsLast7Days > 0 {
		b.WriteString("\nRecent Activity:\n")
		fmt.Fprintf(&b, "  - Last 7 days: %d\n", r.TimeStats.CorrectionsLast7Days)
		fmt.Fprintf(&b, "  - Last 30 days: %d\n", r.TimeStats.CorrectionsLast30Days)
	}
	return b.String(), nil
}

// ExportJSON serializes the detailed report with indentation.
func (e *Engine) ExportJSON() (string, error) {
	r, err := e.ComputeDetailed()
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding stats: %w", err)
	}
	return string(data), nil
}

// ExportCSV emits one row per record, any status. The category column is
// empty for pending records; corrector is empty when absent.
func (e *Engine) ExportCSV() (string, error) {
	all, err := e.store.LoadCorrections(store.StatusAll)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"correction_id", "timestamp", "document_id", "field_path",
		"original_value", "corrected_value", "category", "corrector_id",
	}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("writing csv: %w", err)
	}

	for _, c := range all {
		category := ""
		if c.Explained {
			category = string(c.Category)
		}
		row := []string{
			c.ID,
			c.Timestamp.UTC().Format(time.RFC3339Nano),
			c.DocumentID,
			c.FieldPath,
			fmt.Sprintf("%v", c.OriginalValue),
			fmt.Sprintf("%v", c.CorrectedValue),
			category,
			c.CorrectorID,
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("writing csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("writing csv: %w", err)
	}
	return buf.String(), nil
}

func (e *Engine) computeTimeStats(records []models.Correction) TimeStats {
	if len(records) == 0 {
		return TimeStats{}
	}

	now := e.clock()
	first, last := records[0].Timestamp, records[0].Timestamp
	last7, last30 := 0, 0
	for _, c := range records {
		if c.Timestamp.Before(first) {
			first = c.Timestamp
		}
		if c.Timestamp.After(last) {
			last = c.Timestamp
		}
		if !c.Timestamp.Before(now.AddDate(0, 0, -7)) {
			last7++
		}
		if !c.Timestamp.Before(now.AddDate(0, 0, -30)) {
			last30++
		}
	}

	days := int(now.Sub(first).Hours() / 24)
	denominator := days
	if denominator < 1 {
		denominator = 1
	}

	return TimeStats{
		FirstCorrection:       first.UTC().Format(time.RFC3339Nano),
		LastCorrection:        last.UTC().Format(time.RFC3339Nano),
		CorrectionsLast7Days:  last7,
		CorrectionsLast30Days: last30,
		DaysSinceFirst:        days,
		AveragePerDay:         float64(len(records)) / float64(denominator),
	}
}

func computeCorrectorStats(records []models.Correction) CorrectorStats {
	counts := countBy(records, func(c models.Correction) string {
		return c.CorrectorID
	})
	counts = dropEmptyKey(counts)

	stats := CorrectorStats{
		TotalCorrectors:        len(counts),
		CorrectionsByCorrector: counts,
	}
	if len(counts) > 0 {
		most := counts[0]
		stats.MostActiveCorrector = &most
	}
	return stats
}

func computeConfidenceStats(records []models.Correction) ConfidenceStats {
	var confidences []float64
	for _, c := range records {
		if c.ConfidenceBefore != nil {
			confidences = append(confidences, *c.ConfidenceBefore)
		}
	}
	if len(confidences) == 0 {
		return ConfidenceStats{}
	}

	sum, low := 0.0, 0
	min, max := confidences[0], confidences[0]
	for _, v := range confidences {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		if v < 0.5 {
			low++
		}
	}

	avg := round3(sum / float64(len(confidences)))
	minR, maxR := round3(min), round3(max)
	return ConfidenceStats{
		CorrectionsWithConfidence: len(confidences),
		AverageConfidence:         &avg,
		MinConfidence:             &minR,
		MaxConfidence:             &maxR,
		LowConfidenceCorrections:  low,
		LowConfidenceRate:         float64(low) / float64(len(confidences)),
	}
}

func computeDocumentStats(records []models.Correction) DocumentStats {
	counts := countBy(records, func(c models.Correction) string {
		return c.DocumentID
	})
	if len(counts) == 0 {
		return DocumentStats{}
	}

	return DocumentStats{
		TotalDocuments:               len(counts),
		CorrectionsPerDocument:       topN(counts, 10),
		AverageCorrectionsPerDoc:     float64(len(records)) / float64(len(counts)),
		DocumentsWithMostCorrections: topN(counts, 5),
	}
}

// countBy counts records per key and ranks them by descending count, ties
// kept in first-encounter order.
func countBy(records []models.Correction, key func(models.Correction) string) []KeyCount {
	index := make(map[string]int, len(records))
	var counts []KeyCount
	for _, r := range records {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(counts)
			index[k] = i
			counts = append(counts, KeyCount{Key: k})
		}
		counts[i].Count++
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}

func topN(counts []KeyCount, n int) []KeyCount {
	if len(counts) > n {
		return counts[:n]
	}
	return counts
}

func dropEmptyKey(counts []KeyCount) []KeyCount {
	out := counts[:0]
	for _, kc := range counts {
		if kc.Key != "" {
			out = append(out, kc)
		}
	}
	return out
}

func sortedCategories(categories map[models.CorrectionType]int) []KeyCount {
	counts := make([]KeyCount, 0, len(categories))
	for _, cat := range models.Categories() {
		if n, ok := categories[cat]; ok {
			counts = append(counts, KeyCount{Key: string(cat), Count: n})
		}
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
