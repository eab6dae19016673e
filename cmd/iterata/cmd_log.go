package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iterata/iterata/internal/loop"
	"github.com/iterata/iterata/internal/store"
)

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record a human correction",
		Long: `Record one human correction to a machine-extracted field value.

Example:
  iterata log --original "1234,56" --corrected "1234.56" \
    --document invoice_001.pdf --field invoice.total_amount`,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadLoop(cmd)
			if err != nil {
				return err
			}

			original, _ := cmd.Flags().GetString("original")
			corrected, _ := cmd.Flags().GetString("corrected")
			document, _ := cmd.Flags().GetString("document")
			field, _ := cmd.Flags().GetString("field")
			corrector, _ := cmd.Flags().GetString("corrector")
			explanation, _ := cmd.Flags().GetString("explain")

			req := loop.LogRequest{
				Original:         original,
				Corrected:        corrected,
				DocumentID:       document,
				FieldPath:        field,
				CorrectorID:      corrector,
				HumanExplanation: explanation,
			}
			if cmd.Flags().Changed("confidence") {
				conf, _ := cmd.Flags().GetFloat64("confidence")
				req.ConfidenceBefore = &conf
			}

			c, err := l.Log(cmd.Context(), req)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]string{
					"status":        "logged",
					"correction_id": c.ID,
					"field_path":    c.FieldPath,
				})
			}
			fmt.Println("Correction logged:")
			fmt.Printf("  ID:       %s\n", c.ID)
			fmt.Printf("  Field:    %s\n", c.FieldPath)
			fmt.Printf("  Document: %s\n", c.DocumentID)
			return nil
		},
	}

	cmd.Flags().String("original", "", "Value the machine extracted (required)")
	cmd.Flags().String("corrected", "", "Value after human correction (required)")
	cmd.Flags().String("document", "", "Source document identifier (required)")
	cmd.Flags().String("field", "", "Dotted path of the corrected field")
	cmd.Flags().String("corrector", "", "Who made the correction")
	cmd.Flags().Float64("confidence", 0, "Extraction confidence before correction (0-1)")
	cmd.Flags().String("explain", "", "Why the correction was needed")
	cmd.MarkFlagRequired("original")
	cmd.MarkFlagRequired("corrected")
	cmd.MarkFlagRequired("document")

	return cmd
}

func newExplainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <correction-id>",
		Short: "Attach an explanation to a pending correction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadLoop(cmd)
			if err != nil {
				return err
			}

			text, _ := cmd.Flags().GetString("text")
			if err := l.ExplainPending(cmd.Context(), args[0], text); err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]string{
					"status":        "explained",
					"correction_id": args[0],
				})
			}
			fmt.Printf("Correction explained: %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().String("text", "", "Explanation text; when empty the configured backend is asked")
	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored corrections",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadLoop(cmd)
			if err != nil {
				return err
			}

			statusFlag, _ := cmd.Flags().GetString("status")
			var status store.Status
			switch statusFlag {
			case "inbox":
				status = store.StatusInbox
			case "explained":
				status = store.StatusExplained
			case "all":
				status = store.StatusAll
			default:
				return fmt.Errorf("unknown status %q (want inbox, explained or all)", statusFlag)
			}

			records, err := l.List(status)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"corrections": records,
					"count":       len(records),
				})
			}
			if len(records) == 0 {
				fmt.Println("No corrections found.")
				return nil
			}
			fmt.Printf("Corrections (%d):\n\n", len(records))
			for i, c := range records {
				fmt.Printf("%d. %s\n", i+1, c.ID)
				fmt.Printf("   Field:    %s\n", c.FieldPath)
				fmt.Printf("   Document: %s\n", c.DocumentID)
				fmt.Printf("   %v -> %v\n", c.OriginalValue, c.CorrectedValue)
				if c.Explained {
					fmt.Printf("   Category: %s\n", c.Category)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().String("status", "all", "Which corrections to list (inbox, explained, all)")
	return cmd
}
