package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pingcap-incubator/tinymvcc/log"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

type Config struct {
	Log    log.Config `toml:"log"`
	Engine Engine     `toml:"engine"` // Storage and transaction options.
	Status Status     `toml:"status"`
	Bench  Bench      `toml:"bench"` // Options of the bench command.

	logger *zap.Logger
}

type Engine struct {
	PageSlots   int `toml:"page-slots"`   // Rows per table page.
	LatchShards int `toml:"latch-shards"` // Number of row latch shards per table.
}

type Status struct {
	Addr string `toml:"addr"` // Address of the status server, which serves /metrics.
	// Expose prometheus metrics on the status server.
	Metrics bool `toml:"metrics"`
}

type Bench struct {
	Workers      int `toml:"workers"`        // Number of goroutines running transactions.
	Rows         int `toml:"rows"`           // Rows in the bench table.
	Txns         int `toml:"txns"`           // Transactions run by each worker.
	WritesPerTxn int `toml:"writes-per-txn"` // Rows each transaction updates.
}

var DefaultConf = Config{
	Log: log.Config{
		Level:  "info",
		Format: "text",
	},
	Engine: Engine{
		PageSlots:   64,
		LatchShards: 64,
	},
	Status: Status{
		Addr:    "127.0.0.1:9290",
		Metrics: false,
	},
	Bench: Bench{
		Workers:      8,
		Rows:         100,
		Txns:         1000,
		WritesPerTxn: 2,
	},
}

// NewDefaultConfig returns a copy of DefaultConf.
func NewDefaultConfig() *Config {
	conf := DefaultConf
	return &conf
}

// Load reads a TOML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	conf := NewDefaultConfig()
	if path == "" {
		return conf, nil
	}
	meta, err := toml.DecodeFile(path, conf)
	if err != nil {
		return nil, errors.Annotatef(err, "load config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("config %s has unknown items %v", path, undecoded)
	}
	return conf, nil
}

func (c *Config) Validate() error {
	if c.Engine.PageSlots <= 0 {
		return errors.New("page-slots must be greater than 0")
	}
	if c.Engine.LatchShards <= 0 {
		return errors.New("latch-shards must be greater than 0")
	}
	if c.Bench.Workers <= 0 {
		return errors.New("bench workers must be greater than 0")
	}
	if c.Bench.Rows <= 0 {
		return errors.New("bench rows must be greater than 0")
	}
	if c.Bench.WritesPerTxn <= 0 || c.Bench.WritesPerTxn > c.Bench.Rows {
		return errors.Errorf("writes-per-txn must be in [1, %d]", c.Bench.Rows)
	}
	if c.Status.Metrics && c.Status.Addr == "" {
		return errors.New("metrics need a status address")
	}
	return nil
}

// SetupLogger builds the logger from the [log] section and installs it globally.
func (c *Config) SetupLogger() error {
	lg, err := log.Setup(&c.Log)
	if err != nil {
		return err
	}
	c.logger = lg
	return nil
}

// GetZapLogger gets the logger created by SetupLogger.
func (c *Config) GetZapLogger() *zap.Logger {
	return c.logger
}
