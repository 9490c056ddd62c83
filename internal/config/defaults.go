package config

const (
	defaultWorkDir          = "~/.local/share/subtide/work"
	defaultOutputDir        = "~/.local/share/subtide/output"
	defaultLogDir           = "~/.local/share/subtide/logs"
	defaultCredentialsFile  = "~/.config/subtide/credentials.json"
	defaultTranscribeCmd    = "faster-whisper"
	defaultTranscribeModel  = "base"
	defaultDevice           = "cpu"
	defaultComputeType      = "int8"
	defaultTranscribeTO     = 3600
	defaultProvider         = "gemini"
	defaultTargetLanguage   = "en"
	defaultRetryLimit       = 3
	defaultRetryBaseSeconds = 2
	defaultRetryMaxSeconds  = 30
	defaultRequestTimeout   = 60
	defaultMaxConcurrent    = 4
	defaultWorkers          = 2
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultOutputFormat     = "srt"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:         defaultWorkDir,
			OutputDir:       defaultOutputDir,
			LogDir:          defaultLogDir,
			CredentialsFile: defaultCredentialsFile,
		},
		Transcription: Transcription{
			Command:        defaultTranscribeCmd,
			Model:          defaultTranscribeModel,
			Device:         defaultDevice,
			ComputeType:    defaultComputeType,
			TimeoutSeconds: defaultTranscribeTO,
		},
		Translation: Translation{
			Provider:         defaultProvider,
			TargetLanguage:   defaultTargetLanguage,
			RetryLimit:       defaultRetryLimit,
			RetryBaseSeconds: defaultRetryBaseSeconds,
			RetryMaxSeconds:  defaultRetryMaxSeconds,
			RequestTimeout:   defaultRequestTimeout,
			MaxConcurrent:    defaultMaxConcurrent,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  15,
			HeartbeatTimeout:   120,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Transcription:  true,
			Translation:    true,
			Queue:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Output: Output{
			Format:        defaultOutputFormat,
			TxtTimestamps: true,
		},
	}
}
