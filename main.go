package main

import (
	"context"
	"fmt"
	"os"

	"github.com/paularlott/cli"
	"github.com/paularlott/cli/env"

	"github.com/martinsuchenak/vpcd/cmd/server"
	"github.com/martinsuchenak/vpcd/internal/ec2"
	"github.com/martinsuchenak/vpcd/internal/log"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists
	env.Load()

	// Initialize structured logging
	log.Configure("info", "text")

	rootCmd := &cli.Command{
		Name:        "vpcd",
		Version:     version,
		Usage:       "In-process virtual network emulator with an HTTP API and MCP server",
		Description: "Emulates the VPC resource graph (VPCs, subnets, routing, gateways, peering and more) for integration testing, without touching a cloud account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:         "log-level",
				Usage:        "Log level (debug, info, warn, error)",
				DefaultValue: "info",
				EnvVars:      []string{"VPCD_LOG_LEVEL"},
				Global:       true,
			},
			&cli.StringFlag{
				Name:         "log-format",
				Usage:        "Log format (text, json)",
				DefaultValue: "text",
				EnvVars:      []string{"VPCD_LOG_FORMAT"},
				Global:       true,
			},
		},
		PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			log.Configure(cmd.GetString("log-level"), cmd.GetString("log-format"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			server.Command(),
			{
				Name:        "regions",
				Usage:       "List the supported regions and their availability zones",
				Description: "Print the region and zone table the emulator serves",
				Run: func(ctx context.Context, cmd *cli.Command) error {
					for _, region := range ec2.Regions() {
						fmt.Println(region)
						zones, err := ec2.ZonesForRegion(region)
						if err != nil {
							return err
						}
						for _, zone := range zones {
							fmt.Printf("  %s (%s)\n", zone.Name, zone.ID)
						}
					}
					return nil
				},
			},
		},
	}

	if err := rootCmd.Execute(context.Background()); err != nil {
		log.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
