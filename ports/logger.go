package ports

// Logger is the leveled logging surface components write diagnostics to.
// internal.Logger satisfies it.
type Logger interface {
	Warn(format string, args ...interface{})
	Info(format string, args ...interface{})
	Debug(format string, args ...interface{})
}
