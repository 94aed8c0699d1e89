package student

import (
	"fmt"

	"github.com/schoolops/campus/cmd/campusctl/internal/client"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one student",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		_, api, _, err := openScreen(cmd.Context(), "student-detail")
		if err != nil {
			return err
		}

		s, err := api.GetStudent(cmd.Context(), id)
		if err != nil {
			return client.ExplainError(fmt.Sprintf("get student %d", id), err)
		}

		fmt.Printf("ID:            %d\n", s.ID)
		fmt.Printf("Student code:  %s\n", s.StudentCode)
		fmt.Printf("Full name:     %s\n", s.FullName)
		fmt.Printf("Date of birth: %s\n", s.DateOfBirth)
		fmt.Printf("Email:         %s\n", s.Email)
		fmt.Printf("Phone:         %s\n", s.Phone)
		fmt.Printf("Address:       %s\n", s.Address)
		fmt.Printf("Major:         %s\n", s.Major)
		fmt.Printf("Class:         %s\n", s.ClassName)
		return nil
	},
}
