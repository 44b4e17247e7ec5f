package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/didregistry/cmd/app/commands"
	"github.com/allisson/didregistry/internal/app"
	"github.com/allisson/didregistry/internal/config"
	"github.com/allisson/didregistry/internal/keeper"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-audit-signing-key",
			Usage: "Generate a new audit log signing key",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "kms-key-uri",
					Value: "",
					Usage: "Encrypt the key with this KMS keeper (e.g., hashivault://, gcpkms://projects/.../cryptoKeys/...)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunCreateAuditSigningKey(
					ctx,
					keeper.NewLoader(nil),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("kms-key-uri"),
				)
			},
		},
	}
}
