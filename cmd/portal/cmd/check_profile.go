package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ffland/portal/internal/domain"
	"github.com/ffland/portal/internal/profile"
)

var checkProfileCmd = &cobra.Command{
	Use:   "check-profile <file>",
	Short: "Report whether a calculator profile is complete",
	Long: `Read a calculatorStorage JSON document and report whether the user would
land on the home page or be sent back to the calculator.

Examples:
  portal check-profile ./data/users/abc123-storage.json

The command exits non-zero when the profile is incomplete.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		p, err := domain.DecodeProfile(raw)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if field, found := profile.FirstIncomplete(p); found {
			fmt.Fprintf(out, "❌ Profile incomplete: %q is empty\n", field)
			return fmt.Errorf("profile incomplete")
		}
		fmt.Fprintf(out, "✅ Profile complete (%d fields)\n", len(p))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkProfileCmd)
}
