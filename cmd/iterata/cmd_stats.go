package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iterata/iterata/internal/stats"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show statistics about corrections",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadLoop(cmd)
			if err != nil {
				return err
			}

			detailed, _ := cmd.Flags().GetBool("detailed")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if detailed {
				report, err := l.DetailedStats()
				if err != nil {
					return err
				}
				if jsonOut {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(report)
				}
				printBasicStats(&report.Report)
				fmt.Printf("Correctors:        %d\n", report.CorrectorStats.TotalCorrectors)
				fmt.Printf("Documents:         %d\n", report.DocumentStats.TotalDocuments)
				fmt.Printf("Pending (inbox):   %d\n", report.InboxCorrections)
				return nil
			}

			report, err := l.Stats()
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printBasicStats(report)
			return nil
		},
	}

	cmd.Flags().Bool("detailed", false, "Show detailed statistics")
	return cmd
}

func printBasicStats(report *stats.Report) {
	fmt.Println("Correction Statistics")
	fmt.Printf("Total Corrections: %d\n", report.TotalCorrections)
	fmt.Printf("Explained:         %d\n", report.CorrectionsExplained)
	fmt.Printf("Explanation Rate:  %.1f%%\n", report.CorrectionRate*100)
	fmt.Printf("Patterns:          %d\n", report.PatternsCount)
}

func newRecommendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recommend",
		Short: "Show prioritized recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadLoop(cmd)
			if err != nil {
				return err
			}

			recs, err := l.Recommendations()
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}
			if len(recs) == 0 {
				fmt.Println("No recommendations yet.")
				return nil
			}
			for i, r := range recs {
				fmt.Printf("%d. [%s] %s\n", i+1, r.Priority, r.Title)
				fmt.Printf("   %s\n\n", r.Reason)
			}
			return nil
		},
	}
}

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print a human-readable summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadLoop(cmd)
			if err != nil {
				return err
			}

			text, err := l.Summary()
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export corrections and statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadLoop(cmd)
			if err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")

			var content string
			switch format {
			case "json":
				content, err = l.ExportJSON()
			case "csv":
				content, err = l.ExportCSV()
			default:
				return fmt.Errorf("unknown format %q (want json or csv)", format)
			}
			if err != nil {
				return err
			}

			if output == "" {
				fmt.Print(content)
				return nil
			}
			if err := os.WriteFile(output, []byte(content), 0o644); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			fmt.Printf("Exported to %s\n", output)
			return nil
		},
	}

	cmd.Flags().String("format", "json", "Export format (json or csv)")
	cmd.Flags().String("output", "", "Write to file instead of stdout")
	return cmd
}
