package clickhouse

import "fmt"

// Config holds ClickHouse connection configuration
type Config struct {
	Host       string
	Port       int
	Database   string
	Username   string
	Password   string
	Table      string
	StatsTable string
}

// Addr returns host:port for the native protocol.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
