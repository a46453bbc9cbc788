package logging

// Logger is the minimal logging surface components depend on.
type Logger interface {
	Printf(format string, v ...any)
}
