package cli

import (
	"github.com/spf13/cobra"

	"viral-script-agent/internal/bootstrap"
)

func newDesktopCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "desktop",
		Short: "Open the desktop app",
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
			return bootstrap.New(service).Run()
		},
	}
}
