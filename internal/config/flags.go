package config

import "flag"

var (
	flagConfig = flag.String("config", "", "Path to config file")
	flagDebug  = flag.Bool("debug", false, "Enable debug logging")
	flagRoot   = flag.String("root", "", "Base directory for model paths")
	flagObject = flag.String("object", "", "Load only the named OBJ object")
	flagOut    = flag.String("out", "", "Output path for the flatten command")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via -config.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagRoot != "" {
		cfg.Loader.Root = *flagRoot
	}
	if *flagObject != "" {
		cfg.Loader.Object = *flagObject
	}
	if *flagOut != "" {
		cfg.Output.Path = *flagOut
	}
}
