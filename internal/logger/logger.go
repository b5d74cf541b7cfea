package logger

import (
	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

// Init настраивает глобальный логгер: JSON в production, текст в остальных
// окружениях. Неизвестный уровень заменяется на info.
func Init(env, level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if env == "production" {
		Log.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// Component возвращает логгер с полем component, так в логах видно, какая часть
// сервиса пишет.
func Component(name string) logrus.FieldLogger {
	return Log.WithField("component", name)
}
