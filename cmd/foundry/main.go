// Command foundry runs the agent network service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	// Ensure API keys are loaded
	_ "github.com/joho/godotenv/autoload"

	"github.com/deanmachines/foundry/api"
	"github.com/deanmachines/foundry/catalog"
	"github.com/deanmachines/foundry/config"
	"github.com/deanmachines/foundry/memory"
	"github.com/deanmachines/foundry/memory/redisstore"
	"github.com/deanmachines/foundry/pkg/natsx"
	"github.com/deanmachines/foundry/provider"
	"github.com/deanmachines/foundry/provider/gemini"
	"github.com/deanmachines/foundry/provider/models"
	"github.com/deanmachines/foundry/provider/openai"
	"github.com/deanmachines/foundry/pubsub"
	"github.com/deanmachines/foundry/server"
	"github.com/deanmachines/foundry/tools"
	"github.com/deanmachines/foundry/trace"
	"github.com/openai/openai-go/option"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	googleopt "google.golang.org/api/option"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelWarn}),
	))
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func rootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "foundry",
		Short:         "foundry runs a network of specialist chat agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a yaml config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	root.AddCommand(serve)
	return root
}

func runServe(ctx context.Context, cfg *config.Config) error {
	applyLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" || cfg.TraceConsole {
		shutdown, err := trace.Init(ctx, trace.Config{
			ServiceName:  "foundry",
			OTLPEndpoint: cfg.OTLPEndpoint,
			Console:      cfg.TraceConsole,
		})
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				log.Warn().Err(err).Msg("trace flush failed")
			}
		}()
	}

	model, err := buildModel(cfg)
	if err != nil {
		return err
	}
	models.Add(model)

	net := catalog.Network(cfg.NetworkName, catalog.Config{
		Model:        model,
		WebSearchKey: cfg.WebSearchKey,
		Index:        tools.NewMemoryIndex(),
	})

	store, err := buildMemory(cfg)
	if err != nil {
		return err
	}

	broker, closeBroker, err := buildBroker(cfg)
	if err != nil {
		return err
	}
	defer closeBroker()

	srv := server.New(server.Options{
		Log:         log,
		Network:     net,
		Memory:      store,
		Broker:      broker,
		AuthTokens:  cfg.AuthTokens,
		CORSOrigins: cfg.CORSOrigins,
		MaxTurns:    cfg.MaxTurns,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("listen", cfg.Listen).Str("network", cfg.NetworkName).Msg("serving")
		errs <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func applyLogLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	log = log.Level(parsed)
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slogLevel(parsed)}),
	))
}

func slogLevel(level zerolog.Level) slog.Level {
	switch {
	case level <= zerolog.DebugLevel:
		return slog.LevelDebug
	case level == zerolog.InfoLevel:
		return slog.LevelInfo
	case level == zerolog.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// buildModel picks the configured default model. Gemini model names go
// to the Google provider, everything else to OpenAI.
func buildModel(cfg *config.Config) (api.Model, error) {
	name := cfg.DefaultModel
	if strings.HasPrefix(name, "gemini") {
		if cfg.GoogleAIKey == "" {
			return nil, fmt.Errorf("model %q needs FOUNDRY_GOOGLE_AI_API_KEY", name)
		}
		return tracedModel{Model: gemini.Model(name, googleopt.WithAPIKey(cfg.GoogleAIKey))}, nil
	}
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("model %q needs FOUNDRY_OPENAI_API_KEY", name)
	}
	return tracedModel{Model: openai.Model(name, option.WithAPIKey(cfg.OpenAIKey))}, nil
}

// tracedModel wraps a model so its completions run inside spans.
type tracedModel struct {
	api.Model
}

func (m tracedModel) Provider() provider.Provider {
	return trace.Provider(m.Model.Provider())
}

func buildMemory(cfg *config.Config) (memory.Store, error) {
	if cfg.RedisURL == "" {
		return memory.NewInMem(), nil
	}
	store, err := redisstore.Open(cfg.RedisURL, "", time.Duration(cfg.MemoryTTL)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("open redis memory: %w", err)
	}
	log.Info().Msg("session memory backed by redis")
	return store, nil
}

func buildBroker(cfg *config.Config) (pubsub.Broker[string], func(), error) {
	if cfg.NATSURL == "" {
		return pubsub.Local[string](), func() {}, nil
	}
	conn, err := natsx.Connect(cfg.NATSURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	log.Info().Msg("event fanout over nats")
	return pubsub.NATS[string](conn), func() { conn.Close() }, nil
}
