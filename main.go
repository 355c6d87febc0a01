package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pivolan/entropy_analyzer/analysis"
	"github.com/pivolan/entropy_analyzer/config"
	"github.com/pivolan/entropy_analyzer/store"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const (
	appConfigKey = "app-config"

	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"
)

var (
	version = "v0.1.0-default"
	commit  = ""

	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs",
	}

	storeFlag = &cli.StringFlag{
		Name:  "store",
		Usage: "Path to the results CSV file (overrides STORE_PATH)",
	}

	dsnFlag = &cli.StringFlag{
		Name:  "dsn",
		Usage: "Database DSN, mysql://... or sqlite://... (overrides DB_DSN)",
	}

	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml, table]",
		Value: formatTable,
	}

	envFlag = &cli.StringFlag{
		Name:  "env",
		Usage: "Env file to load instead of .env",
	}
)

func main() {
	initLogging(log.InfoLevel)

	app := newApp()
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Error("fatal error")
		os.Exit(1)
	}
}

type appConfig struct {
	Config   *config.Config
	Format   string
	Store    store.Store
	Analyzer *analysis.Analyzer
}

func getConfig(c *cli.Context) *appConfig {
	return c.App.Metadata[appConfigKey].(*appConfig)
}

func newApp() *cli.App {
	return &cli.App{
		Name:            "entropy_analyzer",
		Version:         fmt.Sprintf("%s (%s)", version, commit),
		Compiled:        time.Now(),
		HideHelpCommand: true,
		Usage:           "Entropy statistics for musical performance tables",
		Flags: []cli.Flag{
			debugFlag,
			storeFlag,
			dsnFlag,
			formatFlag,
			envFlag,
		},
		Commands: []*cli.Command{
			serveCmd,
			botCmd,
			analyzeCmd,
			listCmd,
			deleteCmd,
			resetCmd,
			migrateCmd,
			exportCmd,
			summaryCmd,
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c.String(envFlag.Name))
			if err != nil {
				return err
			}
			if v := c.String(storeFlag.Name); v != "" {
				cfg.StorePath = v
			}
			if v := c.String(dsnFlag.Name); v != "" {
				cfg.DbDsn = v
			}

			level, _ := log.ParseLevel(cfg.LogLevel)
			if c.Bool(debugFlag.Name) {
				level = log.DebugLevel
			}
			initLogging(level)

			format := strings.ToLower(c.String(formatFlag.Name))
			switch format {
			case "yml":
				format = formatYAML
			case formatJSON, formatYAML, formatTable:
			default:
				return errors.Errorf("unsupported output format %q", format)
			}

			s, err := store.Open(cfg.StorePath, cfg.DbDsn)
			if err != nil {
				return errors.Wrap(err, "opening result store")
			}
			log.WithFields(log.Fields{"path": cfg.StorePath, "dsn": cfg.DbDsn != ""}).Debug("store opened")

			c.App.Metadata[appConfigKey] = &appConfig{
				Config:   cfg,
				Format:   format,
				Store:    s,
				Analyzer: analysis.New(s, cfg.Attributes),
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if cfg, ok := c.App.Metadata[appConfigKey].(*appConfig); ok && cfg.Store != nil {
				return cfg.Store.Close()
			}
			return nil
		},
	}
}

func loadConfig(envFile string) (*config.Config, error) {
	if envFile == "" {
		// copy so flag overrides do not leak into the shared instance
		cfg := *config.GetConfig()
		return &cfg, nil
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, errors.Wrap(err, "loading configuration")
	}
	return cfg, nil
}

func initLogging(level log.Level) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
}

// encode writes v as JSON or YAML, or the pre-rendered text for table output.
func encode(w io.Writer, format string, v any, text string) error {
	switch format {
	case formatYAML:
		return yaml.NewEncoder(w).Encode(v)
	case formatJSON:
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

// storeError adds a hint to errors caused by a corrupted result store.
func storeError(err error) error {
	if store.IsCorrupted(err) {
		return errors.Wrap(err, "result store is unreadable, run `entropy_analyzer reset` to start over")
	}
	return err
}
