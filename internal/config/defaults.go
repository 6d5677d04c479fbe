package config

// Default configuration values.
const (
	DefaultOnRedefinition = "raise"
	DefaultServerAddr     = "127.0.0.1:8080"
	DefaultMetricsPath    = "/metrics"
)

// ApplyDefaults applies default values to a ProjectConfig.
func (c *ProjectConfig) ApplyDefaults() {
	if c.OnRedefinition == "" {
		c.OnRedefinition = DefaultOnRedefinition
	}
	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	ApplyServerDefaults(c.Server)
}

// ApplyServerDefaults applies default values to a ServerConfig.
func ApplyServerDefaults(s *ServerConfig) {
	if s == nil {
		return
	}
	if s.Addr == "" {
		s.Addr = DefaultServerAddr
	}
	if s.MetricsPath == "" {
		s.MetricsPath = DefaultMetricsPath
	}
}
