package logger

import (
	"bytes"
	"sync"

	"github.com/sirupsen/logrus"
)

var Redacted = []byte("[redacted]")

// Redactor wraps a logrus formatter and scrubs registered secrets from every
// serialized entry.
type Redactor struct {
	backend logrus.Formatter

	mtx     sync.RWMutex
	secrets [][]byte
}

func NewJsonRedactor() *Redactor {
	return &Redactor{
		backend: &logrus.JSONFormatter{},
	}
}

func NewTextRedactor() *Redactor {
	return &Redactor{
		backend: &logrus.TextFormatter{
			FullTimestamp: true,
		},
	}
}

func (r *Redactor) Format(entry *logrus.Entry) ([]byte, error) {
	serialized, err := r.backend.Format(entry)
	if err != nil {
		return serialized, err
	}

	r.mtx.RLock()
	defer r.mtx.RUnlock()

	for _, s := range r.secrets {
		serialized = bytes.ReplaceAll(serialized, s, Redacted)
	}

	return serialized, nil
}

// AddSecret registers a value that must never reach the log output. Empty
// values are ignored.
func (r *Redactor) AddSecret(secret string) {
	if secret == "" {
		return
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.secrets = append(r.secrets, []byte(secret))
}
