package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/vpcd/internal/api"
	"github.com/martinsuchenak/vpcd/internal/config"
	"github.com/martinsuchenak/vpcd/internal/ec2"
	"github.com/martinsuchenak/vpcd/internal/log"
	"github.com/martinsuchenak/vpcd/internal/mcp"
	"github.com/martinsuchenak/vpcd/internal/worker"
)

// ServerConfig holds configuration for running the server
type ServerConfig struct {
	Config     *config.Config
	Directory  *ec2.Directory
	Sweeper    *worker.Sweeper
	MCPServer  *mcp.Server
	APIHandler *api.Handler
}

// RunServer starts the vpcd server with the given configuration
func RunServer(cfg *ServerConfig) error {
	// Setup HTTP routes
	mux := http.NewServeMux()

	// API routes
	cfg.APIHandler.RegisterRoutes(mux)

	// MCP endpoint
	mux.HandleFunc("/mcp", cfg.MCPServer.GetHTTPHandler())

	// Apply middleware
	var handler http.Handler = mux
	handler = api.AuthMiddleware(cfg.Config.BearerToken, handler)
	handler = api.SecurityHeadersMiddleware(handler)

	// Start the lifecycle sweeper
	cfg.Sweeper.Start()
	defer cfg.Sweeper.Stop()

	// Start server
	server := &http.Server{
		Addr:    cfg.Config.ListenAddr,
		Handler: handler,
	}

	// Handle shutdown gracefully
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("Shutting down server...")
		server.Close()
	}()

	// Log startup info
	log.Info("Starting vpcd server", "addr", cfg.Config.ListenAddr)
	log.Info("API available", "url", "http://localhost"+cfg.Config.ListenAddr+"/api/")
	log.Info("MCP available", "url", "http://localhost"+cfg.Config.ListenAddr+"/mcp")
	if cfg.Config.IsMCPEnabled() {
		log.Info("Bearer token authentication enabled")
	}
	cfg.MCPServer.LogStartup()

	// Start serving
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("Server error", "error", err)
		return err
	}

	log.Info("Server stopped")
	return nil
}

func Command() *cli.Command {
	return &cli.Command{
		Name:        "server",
		Usage:       "Start the vpcd server",
		Description: "Start the HTTP server with the resource API and MCP endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Server listen address (e.g., :8080)",
				EnvVars: []string{"VPCD_LISTEN_ADDR"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token for API and MCP authentication",
				EnvVars: []string{"VPCD_BEARER_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "default-region",
				Usage:   "Region backends are created in when none is named",
				EnvVars: []string{"VPCD_DEFAULT_REGION"},
			},
			&cli.StringFlag{
				Name:    "sweep-interval",
				Usage:   "How often the lifecycle sweeper runs (e.g., 30s)",
				EnvVars: []string{"VPCD_SWEEP_INTERVAL"},
			},
			&cli.StringFlag{
				Name:    "nat-settle",
				Usage:   "How long NAT gateways stay pending (e.g., 5s)",
				EnvVars: []string{"VPCD_NAT_SETTLE"},
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			opts := &config.Config{
				ListenAddr:    cmd.GetString("addr"),
				BearerToken:   cmd.GetString("token"),
				DefaultRegion: cmd.GetString("default-region"),
			}
			if raw := cmd.GetString("sweep-interval"); raw != "" {
				if d, err := time.ParseDuration(raw); err == nil {
					opts.SweepInterval = d
				}
			}
			if raw := cmd.GetString("nat-settle"); raw != "" {
				if d, err := time.ParseDuration(raw); err == nil {
					opts.NatSettle = d
				}
			}
			cfg := config.Load(opts)

			log.Info("Configuration loaded", "source", cfg.String(),
				"listen_addr", cfg.ListenAddr, "default_region", cfg.DefaultRegion)

			// The directory owns every per-account, per-region backend.
			// Creating the default region up front makes it visible to
			// the sweeper immediately.
			dir := ec2.NewDirectory()
			if _, err := dir.Backend("", cfg.DefaultRegion); err != nil {
				log.Error("Failed to initialize default region", "error", err)
				return err
			}

			serverConfig := &ServerConfig{
				Config:     cfg,
				Directory:  dir,
				Sweeper:    worker.NewSweeper(dir, cfg.SweepInterval, cfg.NatSettle),
				MCPServer:  mcp.NewServer(dir, cfg.BearerToken),
				APIHandler: api.NewHandler(dir),
			}

			return RunServer(serverConfig)
		},
	}
}
