package config

const (
	defaultDataDir                = "~/.local/share/scribe"
	defaultLogDir                 = "~/.local/share/scribe/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultTranscriberTimeout     = 600
	defaultStagingTimeout         = 60
	defaultStagingPollInterval    = 5
	defaultStagingReadyTimeout    = 900
	defaultQueuePollInterval      = 5
	defaultErrorRetryInterval     = 10
	defaultBatchSize              = 10
	defaultLeaseSeconds           = 300
	defaultMaxDeliveries          = 5
	defaultStaleProcessingTimeout = 3600
	defaultNotifyRequestTimeout   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Transcriber: Transcriber{
			RequestTimeout: defaultTranscriberTimeout,
		},
		Staging: Staging{
			RequestTimeout: defaultStagingTimeout,
			PollInterval:   defaultStagingPollInterval,
			ReadyTimeout:   defaultStagingReadyTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:      defaultQueuePollInterval,
			ErrorRetryInterval:     defaultErrorRetryInterval,
			BatchSize:              defaultBatchSize,
			LeaseSeconds:           defaultLeaseSeconds,
			MaxDeliveries:          defaultMaxDeliveries,
			StaleProcessingTimeout: defaultStaleProcessingTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completed:      true,
			Errors:         true,
			Queue:          true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
