package logger

// Logger is the logging interface shared by every package. Any type
// implementing these methods can be plugged in, which keeps tests quiet
// and lets the binary choose where output goes.
type Logger interface {
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
	Fatal(format string, v ...interface{})
}
