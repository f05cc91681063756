package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/WebIDE/backend/internal/build"
	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/server"
)

type serveFlags struct {
	config string
	host   string
	port   string
	root   string
	public string
	shell  string
	dev    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &serveFlags{}

	root := &cobra.Command{
		Use:          "server",
		Short:        "Web IDE backend: workspace files, static assets and browser terminals",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, flags)
		},
	}
	bindServeFlags(root, flags)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, flags)
		},
	}
	bindServeFlags(serve, flags)

	root.AddCommand(serve, newBuildCommand())
	return root
}

func bindServeFlags(cmd *cobra.Command, f *serveFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.config, "config", "", "YAML or TOML config file")
	fs.StringVar(&f.host, "host", "", "listen host")
	fs.StringVarP(&f.port, "port", "p", "", "listen port")
	fs.StringVar(&f.root, "root", "", "workspace root directory")
	fs.StringVar(&f.public, "public", "", "static asset directory (default <root>/public)")
	fs.StringVar(&f.shell, "shell", "", "terminal shell (default $SHELL)")
	fs.BoolVar(&f.dev, "dev", false, "development logging")
}

// loadConfig layers explicitly set flags over file and environment config.
func loadConfig(cmd *cobra.Command, f *serveFlags) (*config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("host") {
		cfg.Server.Host = f.host
	}
	if changed("port") {
		cfg.Server.Port = f.port
	}
	if changed("root") {
		cfg.Workspace.Root = f.root
	}
	if changed("public") {
		cfg.Workspace.PublicDir = f.public
	}
	if changed("shell") {
		cfg.Terminal.Shell = f.shell
	}
	if changed("dev") {
		cfg.Logging.Development = f.dev
	}
	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, f *serveFlags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Error("Failed to create server", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("Received shutdown signal")
	}()

	return srv.Run(ctx)
}

func newBuildCommand() *cobra.Command {
	var src, dest string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Copy the frontend into a distribution directory with gzip siblings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := build.Build(src, dest, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d files copied to %s, %d compressed\n%s",
				res.Files, dest, res.Compressed, res.Stamp)
			return nil
		},
	}
	cmd.Flags().StringVar(&src, "src", "public", "source directory")
	cmd.Flags().StringVar(&dest, "dest", "dist", "output directory")
	return cmd
}
