// @title           docqa API
// @version         1.0
// @description     Question answering over a directory of PDF, text and markdown documents.
// @termsOfService  http://swagger.io/terms/

// @contact.name    API Support
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/docqa/internal/adapter/utils"
	"github.com/akolanti/docqa/internal/app"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/jobModel"
	"github.com/akolanti/docqa/internal/server"
	"github.com/akolanti/docqa/pkg/logger_i"
)

func main() {
	var (
		configPath string
		listenAddr string
		skipIndex  bool
	)
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.StringVar(&listenAddr, "listen-addr", "", "server listen address")
	flag.BoolVar(&skipIndex, "skip-index", false, "do not build a missing collection at startup")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger_i.NewLogger("main").Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	logger_i.Init(logger_i.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger := logger_i.NewLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, config.LoadCredentials())
	if err != nil {
		logger.Error("Could not start", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("Error closing services", "error", err)
		}
	}()

	if err := a.Users.CreateDefaultIdentity(); err != nil {
		logger.Error("Could not create the default user", "error", err)
	}

	if !skipIndex && !a.Store.IsAvailable(ctx) {
		go func() {
			logger.Info("No usable collection, indexing the documents directory")
			if _, err := a.Reindex(ctx, jobModel.TriggerStartup, utils.GetNewUUID(), ""); err != nil {
				logger.Error("Startup indexing failed", "error", err)
			}
		}()
	}

	if err := server.New(cfg.ListenAddr, a).Run(ctx); err != nil {
		logger.Error("Server stopped with error", "error", err)
		return
	}
	logger.Info("Server stopped")
}
