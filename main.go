package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	godaemon "github.com/sevlyar/go-daemon"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/amerry19/heic2jpg/internal/config"
	"github.com/amerry19/heic2jpg/internal/convert"
	"github.com/amerry19/heic2jpg/internal/daemon"
	"github.com/amerry19/heic2jpg/internal/recycle"
)

// Set at build time: go build -ldflags "-X main.version=1.2.3"
var version = "dev"

func main() {
	app := &cli.Command{
		Name:    "heic2jpg",
		Usage:   "watch a directory and convert HEIC images to JPEG",
		Version: version,
		Flags:   appFlags(),
		Action:  run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func appFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to config file",
			Sources: cli.EnvVars("HEIC2JPG_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "dir",
			Usage:   "directory to watch, recursively",
			Sources: cli.EnvVars("HEIC2JPG_DIR"),
		},
		&cli.BoolFlag{
			Name:    "autodelete",
			Usage:   "move sources to trash after conversion",
			Sources: cli.EnvVars("HEIC2JPG_AUTODELETE"),
		},
		&cli.BoolFlag{
			Name:  "reset",
			Usage: "discard saved settings and start from defaults",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "logging level: debug, info, warn, error",
			Sources: cli.EnvVars("HEIC2JPG_LOG_LEVEL"),
		},
		&cli.BoolFlag{
			Name:    "notify",
			Usage:   "send desktop notifications",
			Sources: cli.EnvVars("HEIC2JPG_NOTIFY"),
		},
		&cli.StringSliceFlag{
			Name:    "exclude",
			Usage:   "glob patterns to exclude (repeat or comma-separated)",
			Sources: cli.EnvVars("HEIC2JPG_EXCLUDE"),
		},
		&cli.DurationFlag{
			Name:    "delay",
			Usage:   "settle time before processing new files",
			Sources: cli.EnvVars("HEIC2JPG_DELAY"),
		},
		&cli.BoolFlag{
			Name:    "daemonize",
			Usage:   "run as daemon",
			Sources: cli.EnvVars("HEIC2JPG_DAEMONIZE"),
		},
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		configPath = p
	}
	store := config.NewStore(configPath)

	cfg, err := resolveConfig(cmd, store)
	if err != nil {
		return err
	}

	// Set log level from config
	switch cfg.LogLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}

	if cmd.Bool("daemonize") {
		daemonCtx := &godaemon.Context{
			PidFileName: "heic2jpg.pid",
			PidFilePerm: 0644,
			LogFileName: "heic2jpg.log",
			LogFilePerm: 0640,
			WorkDir:     "./",
			Umask:       027,
			Args:        []string{"[heic2jpg-daemon]"},
		}

		d, err := daemonCtx.Reborn()
		if err != nil {
			log.Fatalf("Unable to run: %s", err)
		}
		if d != nil {
			return nil // Parent process exits
		}
		defer daemonCtx.Release()
		log.Info("Daemon started")
	}

	return daemon.New(cfg, convert.NewJPEGConverter(), recycle.Wastebasket{}).Run(ctx)
}

// resolveConfig turns the flags into one Configuration and persists it, so
// the next run without flags reuses the same settings.
func resolveConfig(cmd *cli.Command, store *config.Store) (*config.Config, error) {
	// Reset takes precedence over the other flags: the user asked to start
	// clean.
	if cmd.Bool("reset") {
		cfg, err := store.Reset()
		if err != nil {
			return nil, fmt.Errorf("failed to reset config: %w", err)
		}
		return cfg, nil
	}

	cfg := store.Load()

	// Override config with flags if set
	if cmd.IsSet("dir") {
		cfg.WatchDirectory = cmd.String("dir")
	}
	if cmd.IsSet("autodelete") {
		cfg.AutoDelete = cmd.Bool("autodelete")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("notify") {
		cfg.Notifications = cmd.Bool("notify")
	}
	if cmd.IsSet("exclude") {
		var merged []string
		for _, e := range cmd.StringSlice("exclude") {
			merged = append(merged, strings.Split(e, ",")...)
		}
		cfg.Exclude = merged
	}
	if cmd.IsSet("delay") {
		cfg.Delay = cmd.Duration("delay")
	}

	if err := store.Save(cfg); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}
	return cfg, nil
}
