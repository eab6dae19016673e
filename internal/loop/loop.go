// Package loop is the top-level facade tying the store, the explainer,
// the analysis engines and the skill generator together. CLI commands
// and the MCP server talk to this package only.
package loop

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iterata/iterata/internal/config"
	"github.com/iterata/iterata/internal/explain"
	"github.com/iterata/iterata/internal/index"
	"github.com/iterata/iterata/internal/models"
	"github.com/iterata/iterata/internal/patterns"
	"github.com/iterata/iterata/internal/skill"
	"github.com/iterata/iterata/internal/stats"
	"github.com/iterata/iterata/internal/store"
)

// Options configures a Loop.
type Options struct {
	BasePath  string
	SkillPath string

	// Explainer backs auto-explanation; nil disables it.
	Explainer   explain.Explainer
	AutoExplain bool

	MinCorrectionsForSkill int

	Logger *zap.Logger
}

// Loop is the unified entry point for logging, explaining and analyzing
// corrections.
type Loop struct {
	store     *store.MarkdownStore
	explainer explain.Explainer
	stats     *stats.Engine
	detector  *patterns.Detector
	skills    *skill.Generator

	skillPath              string
	autoExplain            bool
	minCorrectionsForSkill int

	log *zap.Logger
	now func() time.Time
}

// New creates a Loop over the markdown store at opts.BasePath, creating
// the directory layout if needed.
func New(opts Options) (*Loop, error) {
	s, err := store.NewMarkdownStore(opts.BasePath)
	if err != nil {
		return nil, err
	}

	minSkill := opts.MinCorrectionsForSkill
	if minSkill == 0 {
		minSkill = config.DefaultMinCorrectionsForSkill
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loop{
		store:                  s,
		explainer:              opts.Explainer,
		stats:                  stats.NewEngine(s),
		detector:               patterns.NewDetector(s),
		skills:                 skill.NewGenerator(s),
		skillPath:              opts.SkillPath,
		autoExplain:            opts.AutoExplain,
		minCorrectionsForSkill: minSkill,
		log:                    logger,
		now:                    time.Now,
	}, nil
}

// FromConfig builds a Loop from a loaded configuration, wiring the
// explainer backend it names.
func FromConfig(cfg *config.Config, logger *zap.Logger) (*Loop, error) {
	var explainer explain.Explainer
	switch cfg.Backend.Provider {
	case "anthropic":
		explainer = explain.NewAnthropicExplainer(cfg.Backend.APIKey, cfg.Backend.Model)
	case "mock":
		explainer = explain.MockExplainer{}
	}

	return New(Options{
		BasePath:               cfg.BasePath,
		SkillPath:              cfg.SkillPath,
		Explainer:              explainer,
		AutoExplain:            cfg.AutoExplain,
		MinCorrectionsForSkill: cfg.MinCorrectionsForSkill,
		Logger:                 logger,
	})
}

// Store exposes the underlying store for read-only consumers.
func (l *Loop) Store() *store.MarkdownStore {
	return l.store
}

// LogRequest carries one correction to record.
type LogRequest struct {
	Original   any
	Corrected  any
	DocumentID string

	// FieldPath defaults to "unknown" when empty.
	FieldPath string

	CorrectorID      string
	ConfidenceBefore *float64
	Metadata         map[string]any

	// HumanExplanation, when set together with auto-explain, attaches a
	// human-provided explanation instead of asking the LLM.
	HumanExplanation string
}

// Log records a correction and, when auto-explain is on and an explainer
// is configured, attaches an explanation immediately. The returned
// correction reflects the persisted state: Explained and the explanation
// fields are set only when an explanation was actually attached.
func (l *Loop) Log(ctx context.Context, req LogRequest) (models.Correction, error) {
	fieldPath := req.FieldPath
	if fieldPath == "" {
		fieldPath = "unknown"
	}

	c := models.Correction{
		ID:               models.NewID(),
		Timestamp:        l.now().UTC(),
		DocumentID:       req.DocumentID,
		FieldPath:        fieldPath,
		OriginalValue:    req.Original,
		CorrectedValue:   req.Corrected,
		ConfidenceBefore: req.ConfidenceBefore,
		CorrectorID:      req.CorrectorID,
		Metadata:         req.Metadata,
	}

	path, err := l.store.SaveCorrection(c)
	if err != nil {
		return models.Correction{}, err
	}
	l.log.Info("correction logged",
		zap.String("correction_id", c.ID),
		zap.String("field_path", c.FieldPath),
		zap.String("path", path))

	if l.autoExplain && l.explainer != nil {
		var e models.Explanation
		if req.HumanExplanation != "" {
			explainerID := req.CorrectorID
			if explainerID == "" {
				explainerID = "unknown"
			}
			e = l.humanExplanation(c.ID, req.HumanExplanation, explainerID)
		} else {
			e, err = l.explainer.Explain(ctx, c)
			if err != nil {
				return models.Correction{}, fmt.Errorf("auto-explaining correction %s: %w", c.ID, err)
			}
		}
		if _, err := l.store.SaveExplanation(e, c); err != nil {
			return models.Correction{}, err
		}
		c.Explained = true
		c.Category = e.Category
		c.Subcategory = e.Subcategory
		c.Description = e.Description
		c.Tags = e.Tags
		l.log.Info("correction explained",
			zap.String("correction_id", c.ID),
			zap.String("category", string(e.Category)))
	}
	return c, nil
}

// ExplainPending attaches an explanation to a pending correction, from
// the given text or, when the text is empty, from the explainer.
func (l *Loop) ExplainPending(ctx context.Context, correctionID, text string) error {
	inbox, err := l.store.LoadCorrections(store.StatusInbox)
	if err != nil {
		return err
	}

	var target *models.Correction
	for i := range inbox {
		if inbox[i].ID == correctionID {
			target = &inbox[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("correction %s not found in inbox", correctionID)
	}

	var e models.Explanation
	switch {
	case text != "":
		e = l.humanExplanation(correctionID, text, "human")
	case l.explainer != nil:
		e, err = l.explainer.Explain(ctx, *target)
		if err != nil {
			return fmt.Errorf("explaining correction %s: %w", correctionID, err)
		}
	default:
		return fmt.Errorf("no explainer configured and no explanation provided")
	}

	if _, err := l.store.SaveExplanation(e, *target); err != nil {
		return err
	}
	l.log.Info("pending correction explained",
		zap.String("correction_id", correctionID),
		zap.String("category", string(e.Category)))
	return nil
}

// List returns the stored corrections for a status.
func (l *Loop) List(status store.Status) ([]models.Correction, error) {
	return l.store.LoadCorrections(status)
}

// UpdateResult reports the outcome of a skill update.
type UpdateResult struct {
	Updated          bool    `json:"updated"`
	Reason           string  `json:"reason,omitempty"`
	SkillFile        string  `json:"skill_file,omitempty"`
	SkillName        string  `json:"skill_name,omitempty"`
	TotalCorrections int     `json:"total_corrections"`
	PatternsDetected int     `json:"patterns_detected,omitempty"`
	CorrectionRate   float64 `json:"correction_rate,omitempty"`
}

// UpdateSkill regenerates the skill when enough explained corrections
// have accumulated, or unconditionally with force.
func (l *Loop) UpdateSkill(force bool, skillName string) (UpdateResult, error) {
	if l.skillPath == "" {
		return UpdateResult{}, fmt.Errorf("no skill path configured")
	}

	explained, err := l.store.LoadCorrections(store.StatusExplained)
	if err != nil {
		return UpdateResult{}, err
	}
	if len(explained) < l.minCorrectionsForSkill && !force {
		return UpdateResult{
			Updated:          false,
			Reason:           fmt.Sprintf("Not enough corrections (%d < %d)", len(explained), l.minCorrectionsForSkill),
			TotalCorrections: len(explained),
		}, nil
	}

	minCorrections := l.minCorrectionsForSkill
	if force {
		minCorrections = 0
	}
	if skillName == "" {
		skillName = skill.DefaultSkillName
	}

	skillFile, err := l.skills.Generate(l.skillPath, skillName, minCorrections, patterns.DefaultMinOccurrences)
	if err != nil {
		return UpdateResult{}, err
	}

	report, err := l.stats.Compute()
	if err != nil {
		return UpdateResult{}, err
	}

	l.log.Info("skill updated",
		zap.String("skill_file", skillFile),
		zap.Int("corrections", len(explained)),
		zap.Int("patterns", report.PatternsCount))

	return UpdateResult{
		Updated:          true,
		SkillFile:        skillFile,
		SkillName:        skillName,
		TotalCorrections: len(explained),
		PatternsDetected: report.PatternsCount,
		CorrectionRate:   report.CorrectionRate,
	}, nil
}

// CheckSkillReadiness reports whether a skill can be generated.
func (l *Loop) CheckSkillReadiness() (skill.Readiness, error) {
	return l.skills.CanGenerate(l.minCorrectionsForSkill)
}

// Stats computes the basic report.
func (l *Loop) Stats() (*stats.Report, error) {
	return l.stats.Compute()
}

// DetailedStats computes the extended report.
func (l *Loop) DetailedStats() (*stats.DetailedReport, error) {
	return l.stats.ComputeDetailed()
}

// Summary renders the text summary.
func (l *Loop) Summary() (string, error) {
	return l.stats.Summary()
}

// Recommendations derives the prioritized action list.
func (l *Loop) Recommendations() ([]stats.Recommendation, error) {
	return l.stats.Recommendations()
}

// Patterns runs the category grouping at the default threshold.
func (l *Loop) Patterns() ([]models.Pattern, error) {
	return l.detector.DetectPatterns(patterns.DefaultMinOccurrences)
}

// ExportJSON serializes the detailed report.
func (l *Loop) ExportJSON() (string, error) {
	return l.stats.ExportJSON()
}

// ExportCSV emits one row per stored correction.
func (l *Loop) ExportCSV() (string, error) {
	return l.stats.ExportCSV()
}

// RebuildIndex repopulates the SQLite index under meta/ from the current
// markdown snapshot and returns the number of indexed records.
func (l *Loop) RebuildIndex(ctx context.Context) (int, error) {
	records, err := l.store.LoadCorrections(store.StatusAll)
	if err != nil {
		return 0, err
	}

	ix, err := index.Open(filepath.Join(l.store.BasePath(), "meta", "index.db"))
	if err != nil {
		return 0, err
	}
	defer ix.Close()

	n, err := ix.Rebuild(ctx, records)
	if err != nil {
		return 0, err
	}
	l.log.Info("index rebuilt", zap.Int("records", n))
	return n, nil
}

func (l *Loop) humanExplanation(correctionID, text, explainerID string) models.Explanation {
	return models.Explanation{
		ID:           models.NewID(),
		CorrectionID: correctionID,
		Timestamp:    l.now().UTC(),
		Type:         models.ExplanationHumanProvided,
		Category:     categorizeText(text),
		Description:  text,
		ExplainerID:  explainerID,
	}
}

// categorizeText is a coarse keyword categorizer for human-provided
// explanation texts.
func categorizeText(text string) models.CorrectionType {
	lower := strings.ToLower(text)
	for _, word := range []string{"format", "décimal", "séparateur"} {
		if strings.Contains(lower, word) {
			return models.CategoryFormatError
		}
	}
	for _, word := range []string{"règle", "métier", "business"} {
		if strings.Contains(lower, word) {
			return models.CategoryBusinessRule
		}
	}
	return models.CategoryOther
}
