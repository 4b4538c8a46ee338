package config

const (
	defaultStagingDir     = "~/.local/share/specimport/staging"
	defaultLogDir         = "~/.local/share/specimport/logs"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultWorkerBinary   = "specimport-worker"
	defaultParseTimeoutMS = 180000
	defaultIdleTimeoutMS  = 60000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Parser: Parser{
			WorkerBinary: defaultWorkerBinary,
			ParseTimeout: defaultParseTimeoutMS,
			IdleTimeout:  defaultIdleTimeoutMS,
		},
	}
}
