package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"viral-script-agent/internal/bootstrap"
	"viral-script-agent/internal/domain"
)

// errDiagnosticsFailed makes diagnose exit non-zero on blocking failures.
var errDiagnosticsFailed = errors.New("diagnostics reported failures")

// fixable lists diagnostic items with an automatic remediation.
var fixable = map[string]bool{"model_path": true, "output_dir": true}

func newDiagnoseCommand(e *env) *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check external tools, model files and credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := bootstrap.NewService(bootstrap.ServiceOptions{
				SettingsPath: e.settingsPath,
				Credentials:  e.creds,
				Context:      cmd.Context(),
			})
			if err != nil {
				return err
			}

			report := service.Diagnostics()
			if fix {
				for _, item := range report.Items {
					if item.Status != domain.DiagnosticStatusFail || !fixable[item.ID] {
						continue
					}
					e.logger.Info().Str("item", item.ID).Msg("applying fix")
					fixed, err := service.Fix(cmd.Context(), item.ID)
					if err != nil {
						e.logger.Error().Err(err).Str("item", item.ID).Msg("fix failed")
					}
					if len(fixed.Items) > 0 {
						report = fixed
					}
				}
			}

			printReport(cmd.OutOrStdout(), report)
			if report.HasFailures {
				return errDiagnosticsFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Download the model tier and create the output directory when missing")
	return cmd
}

func printReport(w io.Writer, report domain.DiagnosticReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tCHECK\tDETAIL")
	for _, item := range report.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", item.Status, item.Name, item.Message)
		if item.Hint != "" && item.Status != domain.DiagnosticStatusPass {
			fmt.Fprintf(tw, "\t\t%s\n", item.Hint)
		}
	}
	_ = tw.Flush()
}
