package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"viral-script-agent/internal/bootstrap"
	"viral-script-agent/internal/logging"
	"viral-script-agent/internal/server"
)

func newServeCommand(e *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and websocket event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The server logs JSON lines rather than console output.
			logger := logging.New(cmd.ErrOrStderr(), e.logLevel, false)
			ctx, stop := signal.NotifyContext(logger.WithContext(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			service, err := bootstrap.NewService(bootstrap.ServiceOptions{
				SettingsPath: e.settingsPath,
				Credentials:  e.creds,
				Context:      ctx,
			})
			if err != nil {
				return err
			}

			srv := server.New(service, logger)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Listen(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info().Msg("shutting down")
			if err := srv.Shutdown(); err != nil {
				return err
			}
			service.Wait()
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	return cmd
}
