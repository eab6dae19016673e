package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/iterata/iterata/internal/models"
)

// DefaultModel is the Claude model used when none is configured.
const DefaultModel = "claude-sonnet-4-5-20250929"

// messageCreator is the slice of the Anthropic client the explainer
// needs; tests substitute a fake.
type messageCreator interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicExplainer categorizes corrections with the Claude API. Any
// API or parsing failure degrades to a fallback explanation flagged for
// manual review; Explain itself never returns an error.
type AnthropicExplainer struct {
	messages messageCreator
	model    string
	now      func() time.Time
}

// NewAnthropicExplainer creates an explainer calling the Claude API with
// the given key. An empty model selects DefaultModel.
func NewAnthropicExplainer(apiKey, model string) *AnthropicExplainer {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = DefaultModel
	}
	return &AnthropicExplainer{
		messages: &client.Messages,
		model:    model,
		now:      time.Now,
	}
}

// llmExplanation is the JSON shape the model is instructed to return.
type llmExplanation struct {
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Confidence  *float64 `json:"confidence"`
}

// Explain implements Explainer.
func (a *AnthropicExplainer) Explain(ctx context.Context, c models.Correction) (models.Explanation, error) {
	msg, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1000,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(c))),
		},
	})
	if err != nil {
		return a.fallback(c, err), nil
	}
	if len(msg.Content) == 0 {
		return a.fallback(c, fmt.Errorf("empty response")), nil
	}

	var parsed llmExplanation
	if err := json.Unmarshal([]byte(stripFences(msg.Content[0].Text)), &parsed); err != nil {
		return a.fallback(c, err), nil
	}

	return models.Explanation{
		ID:           models.NewID(),
		CorrectionID: c.ID,
		Timestamp:    a.now().UTC(),
		Type:         models.ExplanationLLMInferred,
		Category:     models.ParseCategory(parsed.Category),
		Subcategory:  parsed.Subcategory,
		Description:  parsed.Description,
		Confidence:   parsed.Confidence,
		ExplainerID:  a.model,
		Tags:         parsed.Tags,
	}, nil
}

func (a *AnthropicExplainer) fallback(c models.Correction, cause error) models.Explanation {
	zero := 0.0
	return models.Explanation{
		ID:           models.NewID(),
		CorrectionID: c.ID,
		Timestamp:    a.now().UTC(),
		Type:         models.ExplanationLLMInferred,
		Category:     models.CategoryOther,
		Description:  fmt.Sprintf("Automatic explanation failed: %v. Manual review needed.", cause),
		Confidence:   &zero,
		ExplainerID:  a.model + "_fallback",
		Tags:         []string{"error", "needs_review"},
	}
}

func buildPrompt(c models.Correction) string {
	metadata := "{}"
	if len(c.Metadata) > 0 {
		if data, err := json.Marshal(c.Metadata); err == nil {
			metadata = string(data)
		}
	}

	return fmt.Sprintf(`Analyse cette correction faite par un humain sur une extraction automatique.

Document : %s
Champ : %s
Valeur originale : %v
Valeur corrigée : %v

Contexte additionnel : %s

Fournis une explication structurée de cette correction.

Catégories possibles :
- format_error : Erreur de format (décimal, date, etc.)
- business_rule : Violation d'une règle métier
- model_limitation : Limitation du modèle d'extraction
- context_missing : Contexte manquant
- ocr_error : Erreur d'OCR
- other : Autre raison

Réponds UNIQUEMENT avec un JSON valide suivant ce format exact :
{
    "category": "format_error|business_rule|model_limitation|context_missing|ocr_error|other",
    "subcategory": "sous-catégorie spécifique si applicable, sinon null",
    "description": "Description claire et concise du problème (1-2 phrases)",
    "tags": ["tag1", "tag2"],
    "confidence": 0.95
}

Ne réponds qu'avec le JSON, rien d'autre.`,
		c.DocumentID, c.FieldPath, c.OriginalValue, c.CorrectedValue, metadata)
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
