package cli

import (
	"context"
	"fmt"
	"image"
	"os"

	"rdcp/internal/client"
	"rdcp/internal/config"
	"rdcp/internal/global"
	"rdcp/internal/network"
	"rdcp/internal/registry"
	"rdcp/pkg/protocol"
)

// Opens the outbound connection named by --connect through a session
// registry and returns the registry together with the connection id
func StartClient(ctx context.Context, cfg *config.Config, opts Options) (reg *registry.Registry, id string, err error) {
	host, port, err := network.ParseHostPort(opts.Connect)
	if err != nil {
		return
	}

	password := opts.Password
	if password == "" {
		password, err = PromptPassword(fmt.Sprintf("Password for %s: ", opts.Connect))
		if err != nil {
			return
		}
	}

	settings := client.Settings{
		Username:   global.Hostname,
		Password:   password,
		ViewWidth:  1280,
		ViewHeight: 720,
		Connection: cfg.ConnectionSettings(),
	}

	frameCount := 0
	reg = registry.New(ctx, settings, cfg, registry.Sinks{
		Frame: func(connID string, img image.Image) {
			frameCount++
			if frameCount == 1 {
				fmt.Fprintf(os.Stdout, "Receiving %dx%d stream from %s\n", img.Bounds().Dx(), img.Bounds().Dy(), opts.Connect)
			}
		},
		Status: func(connID string, rec protocol.StatusUpdate) {
			if global.Verbosity >= global.VerbosityProgress {
				fmt.Fprintf(os.Stdout, "Remote status: %d fps, %d B in, %d B out\n", rec.FPS, rec.BytesRx, rec.BytesTx)
			}
		},
		Error: func(connID string, surfacedErr error) {
			fmt.Fprintf(os.Stderr, "Connection %s: %v\n", connID, surfacedErr)
		},
	})

	id, err = reg.Connect(host, port)
	if err != nil {
		reg = nil
		return
	}
	return
}
