package badgerstore

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	l := SlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	l.Infof("opened %d tables", 3)
	l.Debugf("compaction")
	if buf.Len() != 0 {
		t.Errorf("info and debug messages logged at info level: %s", buf.String())
	}

	l.Warningf("slow write of %s\n", "vlog")
	l.Errorf("cannot sync")
	out := buf.String()
	for _, want := range []string{"level=WARN", `msg="slow write of vlog"`, "level=ERROR", "component=badger"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
}
