package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/justestif/go-spotify-moodtunes/internal/config"
	"github.com/justestif/go-spotify-moodtunes/internal/lastfm"
	"github.com/justestif/go-spotify-moodtunes/internal/logging"
	"github.com/justestif/go-spotify-moodtunes/internal/web"
)

// execute runs the root command with the given context and arguments.
func execute(ctx context.Context, args []string) error {
	return rootCommand().Run(ctx, args)
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "moodtunes",
		Usage: "Spotify track lookup and mood-based recommendations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a TOML config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
			},
			&cli.DurationFlag{
				Name:  "spotify--timeout",
				Usage: "timeout for each Spotify request",
			},
			&cli.DurationFlag{
				Name:  "spotify--refresh-margin",
				Usage: "renew the access token this long before it expires",
			},
			&cli.BoolFlag{
				Name:  "spotify--retry",
				Usage: "retry rate-limited Spotify searches",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			lookupCommand(),
			recommendCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
			},
			&cli.DurationFlag{
				Name:  "shutdown--timeout",
				Usage: "graceful shutdown timeout",
			},
			&cli.StringFlag{
				Name:  "database--url",
				Usage: "PostgreSQL URL; enables chart caching and saved recommendations",
			},
			&cli.IntFlag{
				Name:  "lastfm--per-tag",
				Usage: "chart entries sampled per tag",
			},
			&cli.IntFlag{
				Name:  "recommend--concurrency",
				Usage: "concurrent Spotify lookups per recommendation",
			},
		},
		Action: serveAction,
	}
}

func lookupCommand() *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "look up the Spotify track ID of a song",
		ArgsUsage: "<title> <artist>",
		Action:    lookupAction,
	}
}

func recommendCommand() *cli.Command {
	return &cli.Command{
		Name:      "recommend",
		Usage:     "recommend songs for an emotion",
		ArgsUsage: "<emotion>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "lastfm--per-tag",
				Usage: "chart entries sampled per tag",
			},
			&cli.IntFlag{
				Name:  "recommend--concurrency",
				Usage: "concurrent Spotify lookups",
			},
		},
		Action: recommendAction,
	}
}

// setup loads configuration and installs the default logger.
func setup(cmd *cli.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"), extractAndTransformFlags(cmd), os.Environ)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.Setup(cfg.LogLevel, string(cfg.LogFormat))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	return cfg, logger, nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	serverCfg := web.ServerConfig{
		Addr:            cfg.Server.Addr(),
		Logger:          logger,
		Tracks:          a.resolver,
		ShutdownTimeout: cfg.Shutdown.Timeout,
	}
	if cfg.LastFM.Enabled() {
		serverCfg.Recommender = a.recommender
	}
	if a.database != nil {
		serverCfg.Saved = a.recommender
	}

	server, err := web.NewServer(serverCfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	logger.InfoContext(ctx, "ready",
		"recommendations", cfg.LastFM.Enabled(),
		"persistence", a.database != nil)

	return server.Run(ctx)
}

func lookupAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: %s lookup <title> <artist>", cmd.Root().Name)
	}

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	// Persistence is not needed for a single lookup.
	cfg.Database.URL = ""

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	match, err := a.resolver.Resolve(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
	if err != nil {
		return err
	}

	if !match.Found() {
		fmt.Fprintln(cmd.Root().Writer, "no match")
		return nil
	}

	fmt.Fprintf(cmd.Root().Writer, "%s\t%s - %s\t%s\n", match.ID, match.Name, match.Artist, match.URL)
	return nil
}

func recommendAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: %s recommend <emotion>", cmd.Root().Name)
	}

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	lastfmCfg := lastfm.Config{APIKey: cfg.LastFM.APIKey}
	if err := lastfmCfg.Validate(); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.recommender.Recommend(ctx, cmd.Args().Get(0))
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	if a.database != nil {
		fmt.Fprintf(out, "saved as %s\n", rec.ID)
	}
	for _, song := range rec.Songs {
		trackID := song.TrackID
		if trackID == "" {
			trackID = "-"
		}
		fmt.Fprintf(out, "%s\t%s - %s\n", trackID, song.Name, song.Artist)
	}
	if len(rec.Songs) == 0 {
		return errors.New("no songs found")
	}
	return nil
}

// extractAndTransformFlags transforms CLI flag names to match config structure.
// Includes parent flags. Examples: --server--host → server.host, --log-level → log_level
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	// FlagNames() includes flags from parent commands (via lineage)
	for _, name := range cmd.FlagNames() {
		if name == "config" {
			continue
		}

		// Skip unset flags to preserve precedence from earlier config sources
		if !cmd.IsSet(name) {
			continue
		}

		if value := cmd.Value(name); value != nil {
			values[flagKey(name)] = value
		}
	}

	return values
}

// flagKey maps a flag name to its config key.
func flagKey(name string) string {
	key := strings.ReplaceAll(name, "--", ".")
	return strings.ReplaceAll(key, "-", "_")
}
