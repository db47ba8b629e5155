// Package main provides cripta, a small operator CLI that drives a running
// envelope-encryption service over HTTP for ad-hoc key management and
// encrypt/decrypt debugging.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "cripta",
		Usage: "operator CLI for the envelope encryption service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Value: "http://127.0.0.1:8080",
				Usage: "Base URL of the running service",
			},
			&cli.StringFlag{
				Name:  "tenant-id",
				Value: "global",
				Usage: "Value sent as the x-tenant-id header",
			},
			&cli.StringFlag{
				Name:  "credentials",
				Usage: "Custodian credentials as k1:k2, sent as Basic auth",
			},
		},
		Commands: getCommands(),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("cripta error", slog.Any("error", err))
		os.Exit(1)
	}
}
