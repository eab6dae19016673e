package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newSkillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skill",
		Short: "Manage the generated extraction skill",
	}
	cmd.AddCommand(newSkillUpdateCmd(), newSkillCheckCmd())
	return cmd
}

func newSkillUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Regenerate the skill from accumulated corrections",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadLoop(cmd)
			if err != nil {
				return err
			}

			force, _ := cmd.Flags().GetBool("force")
			name, _ := cmd.Flags().GetString("name")

			result, err := l.UpdateSkill(force, name)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(result)
			}
			if !result.Updated {
				fmt.Printf("Skill not updated: %s\n", result.Reason)
				fmt.Println("Use --force to generate anyway, or add more corrections.")
				return nil
			}
			fmt.Println("Skill updated successfully")
			fmt.Printf("Skill file:        %s\n", result.SkillFile)
			fmt.Printf("Total corrections: %d\n", result.TotalCorrections)
			fmt.Printf("Patterns detected: %d\n", result.PatternsDetected)
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Force update even if not enough corrections")
	cmd.Flags().String("name", "", "Custom skill name")
	return cmd
}

func newSkillCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check readiness for skill generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadLoop(cmd)
			if err != nil {
				return err
			}

			readiness, err := l.CheckSkillReadiness()
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(readiness)
			}
			if readiness.Ready {
				fmt.Println("Ready to generate skill!")
			} else {
				fmt.Printf("Not ready: %s\n", readiness.Reason)
			}
			fmt.Printf("Corrections: %d\n", readiness.CorrectionsCount)
			fmt.Printf("Patterns:    %d\n", readiness.PatternsCount)
			return nil
		},
	}
}
