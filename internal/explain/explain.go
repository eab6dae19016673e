// Package explain produces categorized explanations for corrections,
// either from a human-provided text or from an LLM backend.
package explain

import (
	"context"
	"time"

	"github.com/iterata/iterata/internal/models"
)

// Explainer generates an explanation for a single correction.
type Explainer interface {
	Explain(ctx context.Context, c models.Correction) (models.Explanation, error)
}

// ExplainBatch runs an explainer over several corrections sequentially.
// The first error aborts the batch.
func ExplainBatch(ctx context.Context, e Explainer, corrections []models.Correction) ([]models.Explanation, error) {
	explanations := make([]models.Explanation, 0, len(corrections))
	for _, c := range corrections {
		exp, err := e.Explain(ctx, c)
		if err != nil {
			return explanations, err
		}
		explanations = append(explanations, exp)
	}
	return explanations, nil
}

// MockExplainer returns a fixed explanation. Used in tests and as the
// backend when no API key is configured.
type MockExplainer struct{}

// Explain implements Explainer.
func (MockExplainer) Explain(_ context.Context, c models.Correction) (models.Explanation, error) {
	return models.Explanation{
		ID:           models.NewID(),
		CorrectionID: c.ID,
		Timestamp:    time.Now().UTC(),
		Type:         models.ExplanationLLMInferred,
		Category:     models.CategoryFormatError,
		Description:  "Mock explanation for testing",
		ExplainerID:  "mock",
		Tags:         []string{"test"},
	}, nil
}
