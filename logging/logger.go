package logging

// Logger is the logging interface used by every package of the proximity alarm. Implementations
// must be safe for concurrent use.
type Logger interface {
	ZapCompatibleLogger

	Sublogger(subname string) Logger
	AddAppender(appender Appender)
	SetLevel(level Level)
	GetLevel() Level
	Sync() error
}

// ZapCompatibleLogger covers the subset of `*zap.SugaredLogger` methods used by this module.
// Code written against a sugared logger keeps working when handed a Logger.
type ZapCompatibleLogger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}
