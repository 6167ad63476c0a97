package log

// Appender types.
const (
	AppenderConsole = "console"
	AppenderStderr  = "stderr"
	AppenderFile    = "file"
)

type LoggerConfig struct {
	Level     string           `mapstructure:"level" yaml:"level"`
	Pattern   string           `mapstructure:"pattern" yaml:"pattern"`
	Time      string           `mapstructure:"time" yaml:"time"`
	Caller    bool             `mapstructure:"caller" yaml:"caller,omitempty"`
	Appenders []AppenderConfig `mapstructure:"appenders" yaml:"appenders"`
}

type AppenderConfig struct {
	Type    string                 `mapstructure:"type" yaml:"type"`
	Options map[string]interface{} `mapstructure:"options" yaml:"options,omitempty"`
}

// DefaultConfig logs info and above to stdout.
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:   "info",
		Pattern: "%time [%level] %msg %field\n",
		Time:    "2006-01-02 15:04:05.000",
		Appenders: []AppenderConfig{
			{Type: AppenderConsole},
		},
	}
}
