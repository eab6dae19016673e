package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the SQLite query index from the markdown store",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadLoop(cmd)
			if err != nil {
				return err
			}

			n, err := l.RebuildIndex(cmd.Context())
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"status":  "rebuilt",
					"records": n,
				})
			}
			fmt.Printf("Index rebuilt: %d records\n", n)
			return nil
		},
	}
}
