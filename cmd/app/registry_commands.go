package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/allisson/didregistry/cmd/app/commands"
	"github.com/allisson/didregistry/internal/app"
	"github.com/allisson/didregistry/internal/config"
)

func getRegistryCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "bootstrap-platform",
			Usage: "Write the platform DID document served at /.well-known/did.json",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "force",
					Value: false,
					Usage: "Rewrite the document even if it already exists",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				if err := cfg.Validate(); err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				bootstrapper, err := container.PlatformBootstrapper(ctx)
				if err != nil {
					return err
				}

				return commands.RunBootstrapPlatform(
					ctx,
					bootstrapper,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Bool("force"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "create-organization",
			Usage: "Create an organization and its first ORG_ADMIN",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "slug",
					Aliases:  []string{"s"},
					Required: true,
					Usage:    "URL-safe organization slug used in DID paths",
				},
				&cli.StringFlag{
					Name:     "name",
					Aliases:  []string{"n"},
					Required: true,
					Usage:    "Organization display name",
				},
				&cli.StringFlag{
					Name:     "admin-id",
					Required: true,
					Usage:    "User ID (UUID) of the first administrator",
				},
				&cli.StringFlag{
					Name:     "admin-email",
					Required: true,
					Usage:    "Email of the first administrator",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				organizations, err := container.OrganizationUseCase(ctx)
				if err != nil {
					return err
				}

				return commands.RunCreateOrganization(
					ctx,
					organizations,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("slug"),
					cmd.String("name"),
					cmd.String("admin-id"),
					cmd.String("admin-email"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "add-member",
			Usage: "Grant a user a role in an organization",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "organization",
					Aliases:  []string{"o"},
					Required: true,
					Usage:    "Organization slug",
				},
				&cli.StringFlag{
					Name:     "user-id",
					Required: true,
					Usage:    "User ID (UUID)",
				},
				&cli.StringFlag{
					Name:     "email",
					Required: true,
					Usage:    "User email used for notifications and audit",
				},
				&cli.StringFlag{
					Name:  "role",
					Value: "ORG_MEMBER",
					Usage: "ORG_ADMIN, ORG_MEMBER or AUDITOR",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				organizations, err := container.OrganizationUseCase(ctx)
				if err != nil {
					return err
				}

				return commands.RunAddMember(
					ctx,
					organizations,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("organization"),
					cmd.String("user-id"),
					cmd.String("email"),
					cmd.String("role"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "expire-certificates",
			Usage: "Mark ACTIVE certificates past their validity window as EXPIRED",
			Flags: []cli.Flag{
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				certificates, err := container.CertificateUseCase(ctx)
				if err != nil {
					return err
				}

				return commands.RunExpireCertificates(
					ctx,
					certificates,
					container.Logger(),
					commands.DefaultIO().Writer,
					time.Now().UTC(),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "run-revocation-cascade",
			Usage: "Re-apply a certificate revocation to every document referencing it",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "certificate-id",
					Aliases:  []string{"c"},
					Required: true,
					Usage:    "Revoked certificate ID (UUID)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				cascade, err := container.CascadeUseCase(ctx)
				if err != nil {
					return err
				}

				return commands.RunRevocationCascade(
					ctx,
					cascade,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("certificate-id"),
					cmd.String("format"),
				)
			},
		},
	}
}
