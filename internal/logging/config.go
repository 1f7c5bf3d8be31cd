package logging

// Config defines the `log` section of the itemsync configuration.
type Config struct {
	// Level is the minimum log level to output (e.g., "debug", "info", "warn", "error").
	// Can be overridden by the ITEMSYNC_LOG_LEVEL environment variable.
	Level string `mapstructure:"level" yaml:"level"`

	// Format is "text" (default) or "json".
	Format string `mapstructure:"format" yaml:"format"`

	// File, when set, receives every log line with size based rotation.
	File string `mapstructure:"file" yaml:"file"`

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is how many rotated files are kept.
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`

	// Stderr controls when logs are sent to stderr.
	// Can be "auto" (default), "always", or "never".
	Stderr string `mapstructure:"stderr" yaml:"stderr"`
}
