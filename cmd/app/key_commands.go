package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/cripta/envelopesvc/cmd/app/commands"
	"github.com/cripta/envelopesvc/internal/app"
	"github.com/cripta/envelopesvc/internal/config"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-master-key",
			Usage: "Generate a new master key for the localmaster KeyManagement backend",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "id",
					Aliases: []string{"i"},
					Value:   "",
					Usage:   "Master key ID (e.g., prod-master-key-2026)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunCreateMasterKey(container.Logger(), commands.DefaultIO().Writer, cmd.String("id"))
			},
		},
		{
			Name:  "rotate-transit-key",
			Usage: "Trigger Vault-side rotation of a tenant's transit key",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "tenant-id",
					Value: "global",
					Usage: "Tenant whose transit key should be rotated",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				settings := cfg.Global
				if tenantID := cmd.String("tenant-id"); tenantID != "global" {
					tenants, err := cfg.LoadTenants()
					if err != nil {
						return err
					}
					found := false
					for _, t := range tenants {
						if t.TenantID == tenantID {
							settings = t
							found = true
							break
						}
					}
					if !found {
						return fmt.Errorf("unknown tenant: %s", tenantID)
					}
				}

				return commands.RunRotateTransitKey(ctx, container.Logger(), settings)
			},
		},
	}
}
