package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	CAN        CANConfig        `toml:"can"`
	ClickHouse ClickHouseConfig `toml:"clickhouse"`
	InfluxDB   InfluxDBConfig   `toml:"influxdb"`

	// General
	BatchSize int `toml:"batch_size"`
	APIPort   int `toml:"api_port"`
}

// CANConfig selects the interface, catalog and frame filters
type CANConfig struct {
	Interface     string   `toml:"interface"`
	DBC           string   `toml:"dbc"`
	Filters       []string `toml:"filters"` // hex identifiers, "0x" prefix optional
	StatsInterval int      `toml:"stats_interval"`
	SkipUnknown   bool     `toml:"skip_unknown"`

	filterIDs []uint32
}

// FilterIDs returns the parsed filter identifiers.
func (c CANConfig) FilterIDs() []uint32 {
	return c.filterIDs
}

type ClickHouseConfig struct {
	Enabled    bool   `toml:"enabled"`
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	Database   string `toml:"database"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
	Table      string `toml:"table"`
	StatsTable string `toml:"stats_table"`
}

type InfluxDBConfig struct {
	Enabled  bool   `toml:"enabled"`
	URL      string `toml:"url"`
	Token    string `toml:"token"`
	Database string `toml:"database"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		CAN: CANConfig{
			Interface:     "vcan0",
			StatsInterval: 10,
		},
		ClickHouse: ClickHouseConfig{
			Host:       "localhost",
			Port:       9000,
			Database:   "default",
			Username:   "default",
			Table:      "can_signals",
			StatsTable: "can_frame_stats",
		},
		InfluxDB: InfluxDBConfig{
			URL:      "http://localhost:8181",
			Database: "can_signals",
		},
		BatchSize: 1000,
		APIPort:   8080,
	}
}

// LoadConfig loads configuration from a TOML file on top of the defaults.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		switch {
		case os.IsNotExist(err):
			log.Info().Str("path", path).Msg("no config file found, using defaults")
		case err != nil:
			return nil, errors.Wrapf(err, "config parse failed (%s)", path)
		default:
			for _, key := range md.Undecoded() {
				log.Warn().Str("path", path).Str("key", key.String()).Msg("unknown config key")
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and parses the hex filters.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CAN.Interface) == "" {
		return errors.New("config missing can.interface")
	}
	if c.CAN.StatsInterval <= 0 {
		return errors.Newf("can.stats_interval must be positive, got %d", c.CAN.StatsInterval)
	}
	if c.BatchSize <= 0 {
		return errors.Newf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return errors.Newf("api_port %d out of range", c.APIPort)
	}
	if c.ClickHouse.Enabled && (c.ClickHouse.Port <= 0 || c.ClickHouse.Port > 65535) {
		return errors.Newf("clickhouse.port %d out of range", c.ClickHouse.Port)
	}
	if c.InfluxDB.Enabled && strings.TrimSpace(c.InfluxDB.URL) == "" {
		return errors.New("influxdb.url is required when influxdb is enabled")
	}

	ids, err := parseFilters(c.CAN.Filters)
	if err != nil {
		return err
	}
	c.CAN.filterIDs = ids
	return nil
}

// parseFilters parses hex CAN IDs
func parseFilters(filters []string) ([]uint32, error) {
	ids := make([]uint32, 0, len(filters))
	for _, raw := range filters {
		part := strings.TrimSpace(raw)
		part = strings.TrimPrefix(strings.TrimPrefix(part, "0x"), "0X")
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 16, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid can filter %q", raw)
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}
