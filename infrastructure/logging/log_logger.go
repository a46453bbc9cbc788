package logging

import (
	"io"
	"log"

	"avb/application/logging"
)

// LogLogger writes through the standard library logger. A non-empty prefix
// names the side of the game (client or server) that produced the line.
type LogLogger struct {
	prefix string
	out    *log.Logger
}

func NewLogLogger() logging.Logger {
	return &LogLogger{}
}

func NewPrefixedLogLogger(prefix string) logging.Logger {
	return &LogLogger{prefix: prefix + ": "}
}

// NewWriterLogger logs to w instead of the process-wide logger.
func NewWriterLogger(w io.Writer, prefix string) logging.Logger {
	l := &LogLogger{out: log.New(w, "", log.LstdFlags)}
	if prefix != "" {
		l.prefix = prefix + ": "
	}
	return l
}

func (l LogLogger) Printf(format string, v ...any) {
	format = l.prefix + format
	if l.out != nil {
		l.out.Printf(format, v...)
		return
	}
	log.Printf(format, v...)
}
