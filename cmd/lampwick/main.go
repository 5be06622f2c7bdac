package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/lampwick/pkg/chat"
	"github.com/go-go-golems/lampwick/pkg/inference"
	"github.com/go-go-golems/lampwick/pkg/search"
	"github.com/go-go-golems/lampwick/pkg/server"
	"github.com/go-go-golems/lampwick/pkg/store"
	"github.com/go-go-golems/lampwick/pkg/streams"
)

func setupLogging() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", viper.GetString("log-level"))
	}
	zerolog.SetGlobalLevel(level)
	if viper.GetBool("with-caller") {
		log.Logger = log.Logger.With().Caller().Logger()
	}
	return nil
}

func buildStore() (store.Store, error) {
	if path := viper.GetString("session-db"); path != "" {
		return store.NewSQLiteStore(path)
	}
	log.Debug().Msg("using in-memory session store")
	return store.NewMemoryStore(), nil
}

func buildSearchClient() (*search.Client, error) {
	settings := search.DefaultSettings()
	if path := viper.GetString("search-config"); path != "" {
		var err error
		settings, err = search.LoadSettings(path)
		if err != nil {
			return nil, err
		}
	}
	if u := viper.GetString("searxng-url"); u != "" {
		settings.SearxNGURL = u
	}
	return search.NewClient(settings), nil
}

func runServe(ctx context.Context) error {
	st, err := buildStore()
	if err != nil {
		return err
	}
	searchClient, err := buildSearchClient()
	if err != nil {
		return err
	}
	ollama, err := inference.NewOllama(viper.GetString("ollama-host"))
	if err != nil {
		return err
	}

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	ollama.Probe(probeCtx)
	cancel()

	broker, err := streams.NewBroker(streams.Settings{
		Enabled: viper.GetBool("redis-enabled"),
		Addr:    viper.GetString("redis-addr"),
		Group:   viper.GetString("redis-group"),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := broker.Close(); err != nil {
			log.Warn().Err(err).Msg("broker close")
		}
	}()

	srv := server.New(server.Config{
		Addr:     viper.GetString("addr"),
		Store:    st,
		Registry: ollama,
		Relay:    chat.NewRelay(st, ollama, searchClient, broker.Publisher()),
		Search:   searchClient,
		Broker:   broker,
	})
	return srv.Run(ctx)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "lampwick",
		Short: "HTTP relay between chat clients and a local Ollama instance",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfg := viper.GetString("config"); cfg != "" {
				viper.SetConfigFile(cfg)
				if err := viper.ReadInConfig(); err != nil {
					return errors.Wrap(err, "read config file")
				}
			}
			return setupLogging()
		},
	}
	rootCmd.PersistentFlags().String("config", "", "Path to a config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("with-caller", false, "Log caller information")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat relay server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	serveCmd.Flags().String("addr", ":8000", "HTTP listen address")
	serveCmd.Flags().String("ollama-host", "", "Ollama base URL (default: OLLAMA_HOST or http://localhost:11434)")
	serveCmd.Flags().String("searxng-url", "", "SearXNG base URL (overrides search config file)")
	serveCmd.Flags().String("search-config", "", "Path to a YAML search settings file")
	serveCmd.Flags().String("session-db", "", "SQLite path for persistent sessions (empty: in-memory)")
	serveCmd.Flags().Bool("redis-enabled", false, "Use Redis Streams as the fragment transport")
	serveCmd.Flags().String("redis-addr", "localhost:6379", "Redis address host:port")
	serveCmd.Flags().String("redis-group", "lampwick", "Redis consumer group")
	rootCmd.AddCommand(serveCmd)

	viper.SetEnvPrefix("LAMPWICK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	cobra.CheckErr(viper.BindPFlags(rootCmd.PersistentFlags()))
	cobra.CheckErr(viper.BindPFlags(serveCmd.Flags()))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
