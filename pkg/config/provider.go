// Package config loads the node configuration from either a YAML file or a
// SQLite database, selected at startup.
package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Configuration management (for backend-specific operations)
	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete node configuration
type ConfigData struct {
	Device  DeviceData  `json:"device" yaml:"device"`
	Link    LinkData    `json:"link" yaml:"link"`
	HTTP    HTTPData    `json:"http,omitempty" yaml:"http,omitempty"`
	Sampler SamplerData `json:"sampler,omitempty" yaml:"sampler,omitempty"`
	Paths   PathsData   `json:"paths,omitempty" yaml:"paths,omitempty"`
	Logging LoggingData `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// DeviceData holds the node's identity on the command link
type DeviceData struct {
	Name string `json:"name" yaml:"name"`
}

// LinkData selects the command-link medium
type LinkData struct {
	SerialDevice string `json:"serial_device,omitempty" yaml:"serial-device,omitempty"`
	Baud         int    `json:"baud,omitempty" yaml:"baud,omitempty"`
	ListenAddr   string `json:"listen_addr,omitempty" yaml:"listen-addr,omitempty"`
}

// HTTPData configures the diagnostics HTTP server. An empty listen address
// disables it.
type HTTPData struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen-addr,omitempty"`
}

// SamplerData configures the acquisition loop
type SamplerData struct {
	IntervalSeconds int   `json:"interval_seconds,omitempty" yaml:"interval-seconds,omitempty"`
	Simulate        bool  `json:"simulate,omitempty" yaml:"simulate,omitempty"`
	SimulatorSeed   int64 `json:"simulator_seed,omitempty" yaml:"simulator-seed,omitempty"`
}

// PathsData names the files the node persists runtime state to
type PathsData struct {
	ProfileFile  string `json:"profile_file,omitempty" yaml:"profile-file,omitempty"`
	TimezoneFile string `json:"timezone_file,omitempty" yaml:"timezone-file,omitempty"`
	NetworkFile  string `json:"network_file,omitempty" yaml:"network-file,omitempty"`
}

// LoggingData configures log output
type LoggingData struct {
	Debug bool   `json:"debug,omitempty" yaml:"debug,omitempty"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}

// ApplyDefaults fills unset fields with their defaults.
func (c *ConfigData) ApplyDefaults() {
	if c.Device.Name == "" {
		c.Device.Name = "soilnode"
	}
	if c.Link.Baud == 0 {
		c.Link.Baud = 115200
	}
	if c.Sampler.IntervalSeconds == 0 {
		c.Sampler.IntervalSeconds = 60
	}
	if c.Paths.ProfileFile == "" {
		c.Paths.ProfileFile = "profile.yaml"
	}
	if c.Paths.TimezoneFile == "" {
		c.Paths.TimezoneFile = "timezone.yaml"
	}
	if c.Paths.NetworkFile == "" {
		c.Paths.NetworkFile = "network.yaml"
	}
}
