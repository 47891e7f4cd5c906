package config

const (
	defaultDataDir             = "~/.local/share/templateflow"
	defaultAPIBind             = "127.0.0.1:7490"
	defaultReviewerRole        = "reviewer"
	defaultBusyRetries         = 5
	defaultSendBuffer          = 64
	defaultWriteTimeoutSeconds = 10
	defaultControlRate         = 20
	defaultControlBurst        = 40
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
		},
		Workflow: Workflow{
			ReviewerRole: defaultReviewerRole,
			BusyRetries:  defaultBusyRetries,
		},
		Realtime: Realtime{
			SendBuffer:          defaultSendBuffer,
			WriteTimeoutSeconds: defaultWriteTimeoutSeconds,
			ControlRate:         defaultControlRate,
			ControlBurst:        defaultControlBurst,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
