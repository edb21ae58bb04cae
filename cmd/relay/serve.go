package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/skillsenselab/voicerelay/admission"
	"github.com/skillsenselab/voicerelay/config"
	"github.com/skillsenselab/voicerelay/logger"
	"github.com/skillsenselab/voicerelay/metrics"
	"github.com/skillsenselab/voicerelay/quota"
	"github.com/skillsenselab/voicerelay/relay"
	"github.com/skillsenselab/voicerelay/server"
	"github.com/skillsenselab/voicerelay/server/middleware"
	"github.com/skillsenselab/voicerelay/upstream"
	"github.com/skillsenselab/voicerelay/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var opts []config.LoaderOption
	if configPath != "" {
		opts = append(opts, config.WithConfigFile(configPath))
	}
	if envPath != "" {
		opts = append(opts, config.WithEnvFile(envPath))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger.Init(cfg.Logging)
	log := logger.GetGlobalLogger()

	log.Info("Starting voicerelay", map[string]interface{}{
		"version":     version.Short(),
		"environment": cfg.Environment,
	})

	store, err := quota.Open(cfg.Quota)
	if err != nil {
		return fmt.Errorf("open quota store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close quota store", logger.ErrorFields("store_close", err))
		}
	}()

	log.Info("Quota store ready", map[string]interface{}{
		"store": cfg.Quota.Store,
	})

	admitter := admission.NewController(cfg.Admission, store.Ledger(), store.Tracker())
	provider := upstream.NewHTTPClient(cfg.Upstream)

	metrics.Register(prometheus.DefaultRegisterer)

	srv := server.New(cfg.Server, log)
	engine := srv.GinEngine()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestLogger(log))
	engine.Use(middleware.CORS(cfg.Server.CORS))

	handler := relay.NewHandler(cfg.Relay, admitter, store.Ledger(), provider, log)
	handler.Register(engine)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/readyz", func(c *gin.Context) {
		if !provider.IsAvailable(c.Request.Context()) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "provider unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	engine.GET("/metrics", metrics.Handler())

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	log.Info("Shutdown signal received", map[string]interface{}{
		"signal": sig.String(),
	})

	if err := srv.Stop(ctx); err != nil {
		log.Error("Server shutdown failed", logger.ErrorFields("shutdown", err))
		return err
	}

	log.Info("voicerelay stopped")
	return nil
}
