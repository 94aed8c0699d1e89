package role

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/schoolops/campus/cmd/campusctl/internal/client"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the role catalog to a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, _ := cmd.Flags().GetString("output")

		api, err := sdkClient(cmd.Context())
		if err != nil {
			return err
		}

		roles, err := api.ListRoles(cmd.Context())
		if err != nil {
			return client.ExplainError("export roles", err)
		}

		data, err := json.MarshalIndent(roles, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode roles: %w", err)
		}
		if err := os.WriteFile(outputFile, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("failed to write to output file: %w", err)
		}

		fmt.Printf("Exported %d roles to %s\n", len(roles), outputFile)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "roles.json", "Output file for exported roles")
}
