package influxdb

// Config holds InfluxDB v3 connection configuration
type Config struct {
	URL      string
	Token    string
	Database string
}
