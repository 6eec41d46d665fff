// SPDX-License-Identifier: MIT

package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/twincitiesguy/pravega-music-demo/internal/config"
	xglog "github.com/twincitiesguy/pravega-music-demo/internal/log"
	"github.com/twincitiesguy/pravega-music-demo/internal/version"
)

// commonFlags are shared by the generating commands.
type commonFlags struct {
	configPath string
	verbose    bool
	debug      bool

	sinkType    string
	stream      string
	brokers     []string
	redisAddr   string
	postgresDSN string
	sqlitePath  string
	badgerDir   string
	catalogPath string

	seed        uint64
	runFor      time.Duration
	adminListen string
	reportPath  string
}

func (f *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "path to config file (YAML)")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log every written event")
	fs.BoolVarP(&f.debug, "debug", "d", false, "log raw payloads (implies --verbose)")

	fs.StringVar(&f.sinkType, "sink", "", "sink type: kafka, redis, postgres, sqlite, badger, stdout, discard")
	fs.StringVar(&f.stream, "stream", "", "destination stream/topic name")
	fs.StringSliceVar(&f.brokers, "brokers", nil, "kafka broker addresses")
	fs.StringVar(&f.redisAddr, "redis-addr", "", "redis address")
	fs.StringVar(&f.postgresDSN, "postgres-dsn", "", "postgres connection string")
	fs.StringVar(&f.sqlitePath, "sqlite-path", "", "sqlite database file")
	fs.StringVar(&f.badgerDir, "badger-dir", "", "badger data directory")
	fs.StringVar(&f.catalogPath, "catalog", "", "song list file (default: embedded list)")

	fs.Uint64Var(&f.seed, "seed", 0, "random seed (0 derives one from the clock)")
	fs.DurationVar(&f.runFor, "run-for", 0, "stop gracefully after this long (0 runs until signalled)")
	fs.StringVar(&f.adminListen, "admin-listen", "", "admin HTTP listen address (metrics, probes)")
	fs.StringVar(&f.reportPath, "report", "", "write a JSON run report to this path")
}

// overrides returns config overrides for the flags that were set explicitly.
func (f *commonFlags) overrides(fs *pflag.FlagSet) []config.Override {
	var out []config.Override
	set := func(name string, o config.Override) {
		if fs.Changed(name) {
			out = append(out, o)
		}
	}
	set("sink", func(c *config.Config) { c.Sink.Type = f.sinkType })
	set("stream", func(c *config.Config) { c.Sink.Stream = f.stream })
	set("brokers", func(c *config.Config) { c.Sink.Kafka.Brokers = append([]string(nil), f.brokers...) })
	set("redis-addr", func(c *config.Config) { c.Sink.Redis.Addr = f.redisAddr })
	set("postgres-dsn", func(c *config.Config) { c.Sink.Postgres.DSN = f.postgresDSN })
	set("sqlite-path", func(c *config.Config) { c.Sink.SQLite.Path = f.sqlitePath })
	set("badger-dir", func(c *config.Config) { c.Sink.Badger.Dir = f.badgerDir })
	set("catalog", func(c *config.Config) { c.Catalog.Path = f.catalogPath })
	set("seed", func(c *config.Config) { c.Generator.Seed = f.seed })
	set("run-for", func(c *config.Config) { c.Generator.RunFor = f.runFor })
	set("admin-listen", func(c *config.Config) { c.Admin.Listen = f.adminListen })
	set("report", func(c *config.Config) { c.Report.Path = f.reportPath })
	return out
}

// load resolves the configuration and reconfigures logging from it.
func (f *commonFlags) load(cmd *cobra.Command, extra ...config.Override) (*config.Holder, error) {
	overrides := append(f.overrides(cmd.Flags()), extra...)
	loader := config.NewLoader(f.configPath, version.Version, overrides...)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	xglog.Configure(xglog.Config{
		Level:   xglog.LevelFor(cfg.Log.Level, f.verbose, f.debug),
		Format:  cfg.Log.Format,
		Version: cfg.Version,
	})

	logger := xglog.WithComponent("cli")
	if f.configPath != "" {
		logger.Info().
			Str(xglog.FieldEvent, "config.loaded").
			Str(xglog.FieldSource, "file").
			Str(xglog.FieldPath, f.configPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str(xglog.FieldEvent, "config.loaded").
			Str(xglog.FieldSource, "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}
	return config.NewHolder(cfg, loader), nil
}
