// Command docscand serves the document scanner over HTTP.
//
// Configuration comes from the YAML file named by DOCSCAN_CONFIG, with the
// listen address overridable through DOCSCAN_ADDR.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"docscan/internal/config"
	"docscan/internal/pipeline"
	"docscan/internal/server"
)

func main() {
	verbose := flag.Bool("verbose", false, "Log every pipeline transition")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	p, err := pipeline.New(cfg, pipeline.WithLogger(log))
	if err != nil {
		log.Fatal().Err(err).Msg("create pipeline")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("format", string(p.Format())).
		Dur("request_timeout", cfg.Server.RequestTimeout).
		Msg("document processing service starting")
	if err := server.New(p, cfg.Server, log).Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("run server")
	}
	log.Info().Msg("stopped")
}
