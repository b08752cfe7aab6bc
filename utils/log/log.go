package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel : "debug", "info", "warn", "error" (알 수 없는 값이면 info 유지)
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("unknown log level %q, keeping %s", level, logger.GetLevel())
		return
	}
	logger.SetLevel(lvl)
}

// SetOutput is mostly for tests that want a quiet logger.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func WithField(key string, value any) *logrus.Entry {
	return logger.WithField(key, value)
}

func WithError(err error) *logrus.Entry {
	return logger.WithError(err)
}

func Debug(args ...any)                 { logger.Debug(args...) }
func Debugf(format string, args ...any) { logger.Debugf(format, args...) }
func Info(args ...any)                  { logger.Info(args...) }
func Infof(format string, args ...any)  { logger.Infof(format, args...) }
func Warn(args ...any)                  { logger.Warn(args...) }
func Warnf(format string, args ...any)  { logger.Warnf(format, args...) }
func Error(args ...any)                 { logger.Error(args...) }
func Errorf(format string, args ...any) { logger.Errorf(format, args...) }
func Fatal(args ...any)                 { logger.Fatal(args...) }
func Fatalf(format string, args ...any) { logger.Fatalf(format, args...) }

// Writer : 다른 라이브러리 로그(fiber logger 등)를 info 레벨로 받는 writer
func Writer() io.Writer {
	return logger.WriterLevel(logrus.InfoLevel)
}
