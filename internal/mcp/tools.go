package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/iterata/iterata/internal/loop"
	"github.com/iterata/iterata/internal/models"
	"github.com/iterata/iterata/internal/stats"
)

type logCorrectionInput struct {
	Original    string  `json:"original" jsonschema:"required,Value the machine extracted"`
	Corrected   string  `json:"corrected" jsonschema:"required,Value after human correction"`
	DocumentID  string  `json:"document_id" jsonschema:"required,Source document identifier"`
	FieldPath   string  `json:"field_path,omitempty" jsonschema:"Dotted path of the corrected field (default: unknown)"`
	CorrectorID string  `json:"corrector_id,omitempty" jsonschema:"Who made the correction"`
	Confidence  float64 `json:"confidence_before,omitempty" jsonschema:"Extraction confidence before correction (0-1)"`
	Explanation string  `json:"explanation,omitempty" jsonschema:"Why the correction was needed, in the corrector's words"`
}

type logCorrectionOutput struct {
	CorrectionID string `json:"correction_id" jsonschema:"Identifier of the stored correction"`
	FieldPath    string `json:"field_path" jsonschema:"Field path recorded"`
	Explained    bool   `json:"explained" jsonschema:"True when an explanation was attached immediately"`
}

type explainCorrectionInput struct {
	CorrectionID string `json:"correction_id" jsonschema:"required,Pending correction to explain"`
	Explanation  string `json:"explanation,omitempty" jsonschema:"Explanation text; when empty the configured backend is asked"`
}

type explainCorrectionOutput struct {
	CorrectionID string `json:"correction_id" jsonschema:"Correction that was explained"`
}

type statsInput struct {
	Detailed bool `json:"detailed,omitempty" jsonschema:"Include corrector, confidence and document breakdowns"`
}

type statsOutput struct {
	Report         *stats.Report         `json:"report,omitempty" jsonschema:"Basic statistics report"`
	DetailedReport *stats.DetailedReport `json:"detailed_report,omitempty" jsonschema:"Extended statistics report"`
}

type patternsInput struct{}

type patternsOutput struct {
	Patterns []models.Pattern `json:"patterns" jsonschema:"Detected recurring correction patterns"`
	Count    int              `json:"count" jsonschema:"Number of patterns"`
}

type recommendationsInput struct{}

type recommendationsOutput struct {
	Recommendations []stats.Recommendation `json:"recommendations" jsonschema:"Prioritized actions derived from the data"`
}

type summaryInput struct{}

type summaryOutput struct {
	Summary string `json:"summary" jsonschema:"Human-readable statistics summary"`
}

type skillUpdateInput struct {
	Force bool   `json:"force,omitempty" jsonschema:"Regenerate even below the correction threshold"`
	Name  string `json:"name,omitempty" jsonschema:"Skill name (default: extraction-expertise)"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "iterata_log",
		Description: "Log a human correction to a machine-extracted field value",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args logCorrectionInput) (*mcp.CallToolResult, logCorrectionOutput, error) {
		lreq := loop.LogRequest{
			Original:         args.Original,
			Corrected:        args.Corrected,
			DocumentID:       args.DocumentID,
			FieldPath:        args.FieldPath,
			CorrectorID:      args.CorrectorID,
			HumanExplanation: args.Explanation,
		}
		if args.Confidence > 0 {
			conf := args.Confidence
			lreq.ConfidenceBefore = &conf
		}

		c, err := s.loop.Log(ctx, lreq)
		if err != nil {
			s.logger.Error("iterata_log failed", zap.Error(err))
			return nil, logCorrectionOutput{}, err
		}

		out := logCorrectionOutput{
			CorrectionID: c.ID,
			FieldPath:    c.FieldPath,
			Explained:    c.Explained,
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Correction logged: %s", c.ID)},
			},
		}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "iterata_explain",
		Description: "Attach an explanation to a pending correction",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args explainCorrectionInput) (*mcp.CallToolResult, explainCorrectionOutput, error) {
		if err := s.loop.ExplainPending(ctx, args.CorrectionID, args.Explanation); err != nil {
			s.logger.Error("iterata_explain failed", zap.Error(err))
			return nil, explainCorrectionOutput{}, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Correction explained: %s", args.CorrectionID)},
			},
		}, explainCorrectionOutput{CorrectionID: args.CorrectionID}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "iterata_stats",
		Description: "Compute correction statistics, optionally with detailed breakdowns",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args statsInput) (*mcp.CallToolResult, statsOutput, error) {
		var out statsOutput
		if args.Detailed {
			report, err := s.loop.DetailedStats()
			if err != nil {
				return nil, statsOutput{}, err
			}
			out.DetailedReport = report
		} else {
			report, err := s.loop.Stats()
			if err != nil {
				return nil, statsOutput{}, err
			}
			out.Report = report
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: "Statistics computed"},
			},
		}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "iterata_patterns",
		Description: "Detect recurring correction patterns grouped by error category",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args patternsInput) (*mcp.CallToolResult, patternsOutput, error) {
		detected, err := s.loop.Patterns()
		if err != nil {
			return nil, patternsOutput{}, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("%d patterns detected", len(detected))},
			},
		}, patternsOutput{Patterns: detected, Count: len(detected)}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "iterata_recommendations",
		Description: "Derive prioritized recommendations from the correction history",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args recommendationsInput) (*mcp.CallToolResult, recommendationsOutput, error) {
		recs, err := s.loop.Recommendations()
		if err != nil {
			return nil, recommendationsOutput{}, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("%d recommendations", len(recs))},
			},
		}, recommendationsOutput{Recommendations: recs}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "iterata_summary",
		Description: "Render a human-readable summary of the correction statistics",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args summaryInput) (*mcp.CallToolResult, summaryOutput, error) {
		text, err := s.loop.Summary()
		if err != nil {
			return nil, summaryOutput{}, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: text},
			},
		}, summaryOutput{Summary: text}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "iterata_skill_update",
		Description: "Regenerate the extraction skill from accumulated corrections",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args skillUpdateInput) (*mcp.CallToolResult, loop.UpdateResult, error) {
		result, err := s.loop.UpdateSkill(args.Force, args.Name)
		if err != nil {
			s.logger.Error("iterata_skill_update failed", zap.Error(err))
			return nil, loop.UpdateResult{}, err
		}
		text := result.Reason
		if result.Updated {
			text = fmt.Sprintf("Skill updated: %s", result.SkillFile)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: text},
			},
		}, result, nil
	})
}
