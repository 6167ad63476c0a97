package log

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/natefinch/lumberjack.v2"
)

type FileAppenderOpt struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AddFileAppender decodes raw appender options and adds a rotating file writer.
func (m *MultiWriter) AddFileAppender(raw map[string]interface{}) (*MultiWriter, error) {
	var options FileAppenderOpt
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &options,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return m, err
	}
	if err := decoder.Decode(raw); err != nil {
		return m, fmt.Errorf("file appender options: %w", err)
	}
	if options.Filename == "" {
		return m, fmt.Errorf("file appender requires 'filename'")
	}

	m.writers = append(m.writers, &lumberjack.Logger{
		Filename:   options.Filename,
		MaxSize:    options.MaxSize,    // megabytes
		MaxBackups: options.MaxBackups, // number of backups
		MaxAge:     options.MaxAge,     // days
		Compress:   options.Compress,
	})
	return m, nil
}
