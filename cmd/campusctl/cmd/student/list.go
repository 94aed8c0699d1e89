package student

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/schoolops/campus/cmd/campusctl/internal/client"
	"github.com/schoolops/campus/pkg/sdk"
	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List students",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, api, _, err := openScreen(cmd.Context(), "students")
		if err != nil {
			return err
		}

		students, err := api.ListStudents(cmd.Context())
		if err != nil {
			return client.ExplainError("list students", err)
		}

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(students)
		}
		if len(students) == 0 {
			fmt.Println("No students found")
			return nil
		}
		printStudents(students)
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print students as JSON")
}

func printStudents(students []sdk.Student) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCODE\tNAME\tCLASS\tMAJOR\tEMAIL")
	for _, s := range students {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.StudentCode, s.FullName, s.ClassName, s.Major, s.Email)
	}
	_ = w.Flush()
}
