package configure

import (
	"io"

	"github.com/seventv/PipelineNotifier/src/logger"
	"github.com/sirupsen/logrus"
)

var redactor = logger.NewTextRedactor()

func initLogging(cfg *Config) {
	if cfg.LogFormat == "json" {
		redactor = logger.NewJsonRedactor()
	}
	logrus.SetFormatter(redactor)

	AddSecret(cfg.Webhook.URL)
	AddSecret(cfg.Aws.SecretKey)

	if cfg.NoLogs {
		logrus.SetOutput(io.Discard)
	}

	switch cfg.LogLevel {
	case "trace":
		logrus.SetLevel(logrus.TraceLevel)
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	case "fatal":
		logrus.SetLevel(logrus.FatalLevel)
	case "panic":
		logrus.SetLevel(logrus.PanicLevel)
	default:
		logrus.Warnf("unknown log level %q, using info", cfg.LogLevel)
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// AddSecret keeps s out of every log line written after the call.
func AddSecret(s string) {
	redactor.AddSecret(s)
}
