// Package config handles tool configuration loading and management.
package config

// Config holds all modelinfo settings.
type Config struct {
	Loader  LoaderConfig  `yaml:"loader"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoaderConfig holds model loading settings.
type LoaderConfig struct {
	// Root is the base directory model paths are resolved against.
	Root string `yaml:"root"`
	// Object restricts OBJ loading to one named object group.
	Object string `yaml:"object"`
}

// OutputConfig holds settings for the flatten command's JSON output.
type OutputConfig struct {
	Path   string `yaml:"path"` // empty writes to stdout
	Indent bool   `yaml:"indent"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Loader: LoaderConfig{
			Root: ".",
		},
		Output: OutputConfig{
			Indent: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
