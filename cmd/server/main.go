// Package main runs the CAP awareness server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cap-cambodia/cap/internal/api"
	"github.com/cap-cambodia/cap/internal/catalog"
	"github.com/cap-cambodia/cap/internal/config"
	"github.com/cap-cambodia/cap/internal/detect"
	"github.com/cap-cambodia/cap/internal/metrics"
	"github.com/cap-cambodia/cap/internal/rng"
	"github.com/cap-cambodia/cap/internal/session"
	"github.com/cap-cambodia/cap/internal/ws"
)

const version = "v1.0.0-dev"

var (
	portFlag    string
	configFlag  string
	envFlag     string
	seedFlag    int64
	versionFlag bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cap-server",
		Short: "CAP - Check, Analyze, Practice",
		Long: `CAP teaches people to spot AI-generated media and fake news.

Environment Variables:
  PORT               Port to listen on (default: 8080)
  LOG_LEVEL          trace|debug|info|warn|error (default: info)
  LOG_FORMAT         console|json (default: console)
  CATALOG_PATH       TOML catalog replacing the built-in content
  SESSION_TTL        Idle session lifetime (default: 2h)
  MAX_SESSIONS       Session store bound (default: 10000)
  MEDIA_DELAY        Simulated media analysis time (default: 2s)
  TEXT_DELAY         Simulated text analysis time (default: 1.5s)
  MAX_UPLOAD_BYTES   Upload limit (default: 52428800)
  ADMIN_USER         Basic auth user for /api/admin/stats
  ADMIN_PASS         Basic auth password for /api/admin/stats
  RANDOM_SEED        Fixed random seed, 0 for clock seeded`,
		SilenceUsage: true,
		RunE:         runServer,
	}

	rootCmd.Flags().StringVar(&portFlag, "port", "", "port to listen on (overrides PORT)")
	rootCmd.Flags().StringVar(&configFlag, "config", "", "path to a TOML config file")
	rootCmd.Flags().StringVar(&envFlag, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.Flags().Int64Var(&seedFlag, "seed", 0, "random seed (overrides RANDOM_SEED)")
	rootCmd.Flags().BoolVarP(&versionFlag, "version", "v", false, "show version information")

	return rootCmd
}

func runServer(cmd *cobra.Command, _ []string) error {
	if versionFlag {
		fmt.Fprintf(cmd.OutOrStdout(), "CAP %s\n", version)
		return nil
	}

	if err := config.LoadDotenv(envFlag); err != nil {
		return err
	}
	cfg, err := config.Load(configFlag)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if portFlag != "" {
		cfg.Port = portFlag
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seedFlag
	}

	setupLogging(cfg)

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	var src rng.Source
	if cfg.Seed != 0 {
		src = rng.New(cfg.Seed)
	} else {
		src = rng.NewTimeSeeded()
	}

	detector := detect.NewSimulator(detect.Options{
		Catalog:        cat,
		Rand:           src,
		MediaDelay:     cfg.MediaDelay,
		TextDelay:      cfg.TextDelay,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	sessions := session.NewManager(session.Deps{
		Catalog:  cat,
		Detector: detector,
		Rand:     src,
	}, session.ManagerOptions{
		TTL:         cfg.SessionTTL,
		MaxSessions: cfg.MaxSessions,
	})
	m := metrics.New(sessions.Len)

	gin.SetMode(gin.ReleaseMode)
	r := api.NewEngine()
	// multipart bodies above this spill to disk
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	sock := ws.New(sessions, m)
	io := sock.Mount(r)
	defer io.Close()

	api.New(api.Options{
		Sessions:       sessions,
		Catalog:        cat,
		Metrics:        m,
		MaxUploadBytes: cfg.MaxUploadBytes,
		AdminUser:      cfg.AdminUser,
		AdminPass:      cfg.AdminPass,
		Version:        version,
	}).Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("version", version).Bool("admin", cfg.AdminEnabled()).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if strings.EqualFold(cfg.LogFormat, "json") {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(cw)
}
