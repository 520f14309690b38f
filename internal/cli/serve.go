package cli

import (
	"context"
	"fmt"
	"os"

	"rdcp/internal/capture"
	"rdcp/internal/config"
	"rdcp/internal/global"
	"rdcp/internal/inject"
	"rdcp/internal/logctx"
	"rdcp/internal/server"
)

// Builds and starts the streaming server from configuration. A password
// given on the command line overrides the stored one for this run.
func StartServer(ctx context.Context, cfg *config.Config, opts Options) (srv *server.Server, err error) {
	settings, err := cfg.ServerSettings()
	if err != nil {
		return
	}
	if opts.Password != "" {
		settings.Password = opts.Password
		settings.PasswordSalt = nil
	}
	settings.ServerName = global.Hostname

	srv = server.New(ctx, settings, func(fps int) (capture.Source, error) {
		return capture.NewSyntheticSource(int(settings.ScreenWidth), int(settings.ScreenHeight), fps)
	}, inject.Discard{})

	boundPort, err := srv.Start()
	if err != nil {
		srv = nil
		return
	}

	// A fallback bind sticks for the next run
	if boundPort != settings.Port {
		cfg.SetServerPort(boundPort)
		if saveErr := cfg.Save(); saveErr != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "bound port not persisted: %v", saveErr)
		}
	}

	fmt.Fprintf(os.Stdout, "Serving on port %d\n", boundPort)
	return
}
