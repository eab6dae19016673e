package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/iterata/iterata/internal/models"
)

// categoryDirs maps each category to its subdirectory under explained/.
var categoryDirs = map[models.CorrectionType]string{
	models.CategoryFormatError:     "format_errors",
	models.CategoryBusinessRule:    "business_rules",
	models.CategoryModelLimitation: "model_limitations",
	models.CategoryContextMissing:  "context_missing",
	models.CategoryOCRError:        "ocr_errors",
	models.CategoryOther:           "other",
}

// MarkdownStore keeps one markdown file per correction. Pending records
// live in inbox/; explained records live under explained/<category>/.
type MarkdownStore struct {
	basePath string
}

// NewMarkdownStore creates the directory layout under basePath if needed.
func NewMarkdownStore(basePath string) (*MarkdownStore, error) {
	dirs := []string{"inbox", "patterns", "rules", "meta"}
	for _, dir := range categoryDirs {
		dirs = append(dirs, filepath.Join("explained", dir))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(basePath, dir), 0o755); err != nil {
			return nil, fmt.Errorf("creating store layout: %w", err)
		}
	}
	return &MarkdownStore{basePath: basePath}, nil
}

// BasePath returns the root directory of the store.
func (s *MarkdownStore) BasePath() string {
	return s.basePath
}

// SaveCorrection implements Store.
func (s *MarkdownStore) SaveCorrection(c models.Correction) (string, error) {
	data, err := encodeDocument(correctionToFrontmatter(c), correctionBody(c))
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.basePath, "inbox", c.ID+".md")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing correction: %w", err)
	}
	return path, nil
}

// SaveExplanation implements Store. The inbox file is rewritten under
// explained/<category>/ with the explanation merged into the frontmatter
// and appended to the body, then removed from the inbox.
func (s *MarkdownStore) SaveExplanation(e models.Explanation, c models.Correction) (string, error) {
	inboxPath := filepath.Join(s.basePath, "inbox", c.ID+".md")
	data, err := os.ReadFile(inboxPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("correction %s not found in inbox", c.ID)
		}
		return "", fmt.Errorf("reading correction: %w", err)
	}

	fm, body, err := decodeDocument(data)
	if err != nil {
		return "", fmt.Errorf("decoding correction %s: %w", c.ID, err)
	}

	fm.Status = "explained"
	fm.ExplanationID = e.ID
	fm.ExplanationType = string(e.Type)
	fm.ExplainedAt = e.Timestamp.UTC().Format(time.RFC3339Nano)
	fm.Category = string(e.Category)
	fm.Subcategory = e.Subcategory
	fm.Description = e.Description
	fm.ExplanationConfidence = e.Confidence
	fm.ExplainerID = e.ExplainerID
	fm.Tags = e.Tags

	out, err := encodeDocument(fm, body+"\n\n"+explanationBody(e))
	if err != nil {
		return "", err
	}

	dir, ok := categoryDirs[e.Category]
	if !ok {
		dir = categoryDirs[models.CategoryOther]
	}
	newPath := filepath.Join(s.basePath, "explained", dir, c.ID+".md")
	if err := os.WriteFile(newPath, out, 0o644); err != nil {
		return "", fmt.Errorf("writing explained correction: %w", err)
	}

	if err := os.Remove(inboxPath); err != nil {
		return "", fmt.Errorf("removing inbox correction: %w", err)
	}
	return newPath, nil
}

// LoadCorrections implements Store. Results are ordered by timestamp, then
// ID, so repeated loads over the same files yield identical snapshots.
func (s *MarkdownStore) LoadCorrections(status Status) ([]models.Correction, error) {
	var roots []string
	switch status {
	case StatusAll:
		roots = []string{"inbox", "explained"}
	case StatusInbox:
		roots = []string{"inbox"}
	case StatusExplained:
		roots = []string{"explained"}
	default:
		return nil, ErrUnknownStatus(status)
	}

	var corrections []models.Correction
	for _, root := range roots {
		dir := filepath.Join(s.basePath, root)
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() || filepath.Ext(path) != ".md" {
				return nil
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			fm, _, err := decodeDocument(data)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", path, err)
			}
			c, err := correctionFromFrontmatter(fm)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", path, err)
			}
			corrections = append(corrections, c)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(corrections, func(i, j int) bool {
		if !corrections[i].Timestamp.Equal(corrections[j].Timestamp) {
			return corrections[i].Timestamp.Before(corrections[j].Timestamp)
		}
		return corrections[i].ID < corrections[j].ID
	})
	return corrections, nil
}

func correctionBody(c models.Correction) string {
	return fmt.Sprintf(`# Correction : %s

## Contexte
Document : %s
Timestamp : %s

## Valeurs
- **Original** : %s
- **Corrigé** : %s

## Explication
[À compléter]

## Notes
`,
		c.FieldPath,
		c.DocumentID,
		c.Timestamp.UTC().Format(time.RFC3339Nano),
		fmt.Sprintf("`%v`", c.OriginalValue),
		fmt.Sprintf("`%v`", c.CorrectedValue),
	)
}

func explanationBody(e models.Explanation) string {
	out := fmt.Sprintf("## Explication\n\n**Catégorie** : `%s`\n", e.Category)
	if e.Subcategory != "" {
		out += fmt.Sprintf("**Sous-catégorie** : `%s`\n", e.Subcategory)
	}
	out += "\n" + e.Description + "\n\n**Type** : " + string(e.Type) + "\n"
	if e.Confidence != nil {
		out += fmt.Sprintf("**Confiance** : %v\n", *e.Confidence)
	}
	return out
}
