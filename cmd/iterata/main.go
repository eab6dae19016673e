package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iterata/iterata/internal/config"
	"github.com/iterata/iterata/internal/loop"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "iterata",
		Short: "Learn from human corrections to machine-extracted data",
		Long: `iterata records human corrections to machine-extracted field values,
groups them into recurring error patterns, and turns the accumulated
knowledge into statistics, recommendations and a reusable skill.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", config.DefaultConfigFile, "Config file")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newLogCmd(),
		newExplainCmd(),
		newListCmd(),
		newStatsCmd(),
		newRecommendCmd(),
		newSummaryCmd(),
		newExportCmd(),
		newSkillCmd(),
		newIndexCmd(),
		newMCPServerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadLoop builds a Loop from the --config flag.
func loadLoop(cmd *cobra.Command) (*loop.Loop, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return loop.FromConfig(cfg, nil)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"version": version})
			} else {
				fmt.Printf("iterata version %s\n", version)
			}
		},
	}
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new correction project",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("path")
			name, _ := cmd.Flags().GetString("name")
			skillPath, _ := cmd.Flags().GetString("skill-path")

			// Creating the loop creates the directory layout.
			if _, err := loop.New(loop.Options{BasePath: path, SkillPath: skillPath}); err != nil {
				return fmt.Errorf("initializing project: %w", err)
			}

			configFile := filepath.Join(path, config.DefaultConfigFile)
			if _, err := os.Stat(configFile); os.IsNotExist(err) {
				if err := os.WriteFile(configFile, []byte(sampleConfig(path, skillPath)), 0o644); err != nil {
					return fmt.Errorf("writing config file: %w", err)
				}
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]string{
					"status": "initialized",
					"name":   name,
					"path":   path,
				})
			}
			fmt.Printf("Initialized iterata project: %s\n", name)
			fmt.Printf("Location: %s\n", path)
			if skillPath != "" {
				fmt.Printf("Skill path: %s\n", skillPath)
			}
			fmt.Printf("Created config file: %s\n", configFile)
			return nil
		},
	}

	cmd.Flags().String("path", config.DefaultBasePath, "Base path for corrections")
	cmd.Flags().String("name", "my-project", "Project name")
	cmd.Flags().String("skill-path", "", "Path for skill generation (optional)")
	return cmd
}

func sampleConfig(basePath, skillPath string) string {
	if skillPath == "" {
		skillPath = "./my-skill"
	}
	return fmt.Sprintf(`# iterata configuration
base_path: %s
skill_path: %s
auto_explain: false
min_corrections_for_skill: 25

# Optional: configure a backend for auto-explanation
# backend:
#   provider: anthropic
#   api_key: ${ANTHROPIC_API_KEY}
#   model: claude-sonnet-4-5-20250929
`, basePath, skillPath)
}
