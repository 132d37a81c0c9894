package badgerstore

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// SlogLogger routes Badger's printf-style logs into l. Badger's Info
// output is logged at Debug.
func SlogLogger(l *slog.Logger) badger.Logger {
	return slogLogger{l: l}
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Errorf(format string, args ...any) {
	s.l.Error(s.msg(format, args), "component", "badger")
}

func (s slogLogger) Warningf(format string, args ...any) {
	s.l.Warn(s.msg(format, args), "component", "badger")
}

func (s slogLogger) Infof(format string, args ...any) {
	s.l.Debug(s.msg(format, args), "component", "badger")
}

func (s slogLogger) Debugf(format string, args ...any) {
	s.l.Debug(s.msg(format, args), "component", "badger")
}

func (slogLogger) msg(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
