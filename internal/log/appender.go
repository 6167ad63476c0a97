package log

import (
	"fmt"
	"io"
	"os"
)

type MultiWriter struct {
	writers []io.Writer
}

// Write hands p to every writer; the last failure is reported but does not
// stop the remaining writers.
func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		_, e := w.Write(p)
		if e != nil {
			err = e
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

func (m *MultiWriter) Len() int {
	return len(m.writers)
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}

// buildWriter turns appender configs into a single writer.
func buildWriter(appenders []AppenderConfig) (*MultiWriter, error) {
	mw := NewMultiWriter()
	for _, a := range appenders {
		switch a.Type {
		case AppenderConsole, "":
			mw.Add(os.Stdout)
		case AppenderStderr:
			mw.Add(os.Stderr)
		case AppenderFile:
			if _, err := mw.AddFileAppender(a.Options); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown appender type %q", a.Type)
		}
	}
	if mw.Len() == 0 {
		mw.Add(os.Stdout)
	}
	return mw, nil
}
