package ulogger

// TestingT is the subset of *testing.T ErrorTestLogger needs, so it can be
// passed a *testing.T without importing the testing package into production
// build tags.
type TestingT interface {
	Errorf(format string, args ...interface{})
	FailNow()
}

// ErrorTestLogger is silent on Debugf/Infof/Warnf and fails the test on
// Errorf/Fatalf, for asserting that a codepath stays quiet on its happy
// path without drowning test output in routine log lines.
type ErrorTestLogger struct {
	t TestingT
}

func NewErrorTestLogger(t TestingT) *ErrorTestLogger {
	return &ErrorTestLogger{t: t}
}

func (l *ErrorTestLogger) LogLevel() int { return 0 }

func (l *ErrorTestLogger) SetLogLevel(level string) {}

func (l *ErrorTestLogger) New(service string, options ...Option) Logger { return l }

func (l *ErrorTestLogger) Duplicate(options ...Option) Logger { return l }

func (l *ErrorTestLogger) Debugf(format string, args ...interface{}) {}

func (l *ErrorTestLogger) Infof(format string, args ...interface{}) {}

func (l *ErrorTestLogger) Warnf(format string, args ...interface{}) {}

func (l *ErrorTestLogger) Errorf(format string, args ...interface{}) {
	l.t.Errorf(format, args...)
}

func (l *ErrorTestLogger) Fatalf(format string, args ...interface{}) {
	l.t.Errorf(format, args...)
	l.t.FailNow()
}
