package main

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/blankcards/internal/auth"
	"github.com/lox/blankcards/internal/deck"
	"github.com/lox/blankcards/internal/engine"
	"github.com/lox/blankcards/internal/fileutil"
	"github.com/lox/blankcards/internal/randutil"
	"github.com/lox/blankcards/internal/server"
)

// version is set by ldflags during build
var version = "dev"

var CLI struct {
	Version   kong.VersionFlag `short:"v" help:"Show version"`
	Config    string           `short:"c" long:"config" default:"blankcards-server.hcl" help:"Path to HCL configuration file"`
	Addr      string           `short:"a" long:"addr" help:"host:port to bind to (overrides config)"`
	LogLevel  string           `short:"l" long:"log-level" help:"Log level (overrides config)"`
	Decks     string           `short:"d" long:"decks" type:"existingdir" help:"Directory of card packs (defaults to the built-in packs)"`
	Seed      *int64           `help:"Deterministic RNG seed for shuffling (optional)"`
	StatsFile string           `long:"stats-file" help:"Write final server stats as JSON on shutdown"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("blankcards-server"),
		kong.Description("Fill-in-the-blank party card game server"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(run())
}

func run() error {
	cfg, err := server.LoadServerConfig(CLI.Config)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	// Apply command line overrides
	if CLI.Addr != "" {
		host, port, err := net.SplitHostPort(CLI.Addr)
		if err != nil {
			return fmt.Errorf("invalid --addr: %w", err)
		}
		cfg.Server.Address = host
		if cfg.Server.Port, err = strconv.Atoi(port); err != nil {
			return fmt.Errorf("invalid --addr port %q", port)
		}
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	if CLI.Decks != "" {
		cfg.Game.DecksDir = CLI.Decks
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := log.New(os.Stderr)
	level, _ := log.ParseLevel(cfg.Server.LogLevel)
	logger.SetLevel(level)
	logger.SetReportTimestamp(true)

	catalog, err := loadCatalog(cfg.DecksDir())
	if err != nil {
		return err
	}
	logger.Info("Loaded cards",
		"packs", catalog.Packs(),
		"prompts", catalog.Len(deck.Prompt),
		"responses", catalog.Len(deck.Response))

	secret := cfg.Server.JWTSecret
	if secret == "" {
		secret = crand.Text()
		logger.Warn("No jwt_secret configured, tokens will not survive a restart")
	}
	clock := quartz.NewReal()
	issuer, err := auth.NewIssuer(secret, auth.DefaultTTL, clock)
	if err != nil {
		return err
	}

	srv := server.NewServer(issuer, logger, clock)

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithClock(clock),
		engine.WithNotifier(srv),
		engine.WithDefaults(cfg.GameConfig()),
	}
	if CLI.Seed != nil {
		logger.Info("Using deterministic seed", "seed", *CLI.Seed)
		opts = append(opts, engine.WithRandSource(seededSources(*CLI.Seed)))
	}
	dispatcher := engine.New(engine.NewRegistry(), catalog, opts...)
	srv.SetDispatcher(dispatcher)

	for _, room := range cfg.Rooms {
		id, err := dispatcher.CreateRoom(room.Name, engine.WithRules(cfg.RoomRules(room)))
		if err != nil {
			return fmt.Errorf("failed to create room %q: %w", room.Name, err)
		}
		logger.Info("Created room", "id", id, "name", room.Name)
	}

	logger.Info("Starting blankcards server",
		"addr", cfg.Addr(),
		"version", version,
		"rooms", len(cfg.Rooms))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(cfg.Addr())
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		writeStats(logger, srv.Stats())
		dispatcher.Close()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func writeStats(logger *log.Logger, stats server.StatsResponse) {
	if CLI.StatsFile == "" {
		return
	}
	if err := fileutil.WriteJSON(CLI.StatsFile, stats); err != nil {
		logger.Error("Failed to write stats file", "file", CLI.StatsFile, "error", err)
		return
	}
	logger.Info("Stats written to file", "file", CLI.StatsFile)
}

func loadCatalog(dir string) (*deck.Catalog, error) {
	if dir == "" {
		return deck.Default()
	}
	catalog, err := deck.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load decks from %s: %w", dir, err)
	}
	return catalog, nil
}

// seededSources gives each new room its own reproducible shuffle.
func seededSources(seed int64) func() randutil.Source {
	var n atomic.Int64
	return func() randutil.Source {
		return randutil.NewLocked(seed + n.Add(1))
	}
}
