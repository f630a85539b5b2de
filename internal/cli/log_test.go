package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/trustlane/pkg/pipeline"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{
			name:    "info at info level",
			level:   log.InfoLevel,
			logFunc: func(l *log.Logger) { l.Info("test") },
			wantLog: true,
		},
		{
			name:    "debug at info level",
			level:   log.InfoLevel,
			logFunc: func(l *log.Logger) { l.Debug("test") },
			wantLog: false,
		},
		{
			name:    "debug at debug level",
			level:   log.DebugLevel,
			logFunc: func(l *log.Logger) { l.Debug("test") },
			wantLog: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.level)
			tt.logFunc(logger)

			gotLog := buf.Len() > 0
			if gotLog != tt.wantLog {
				t.Errorf("got log output = %v, want %v", gotLog, tt.wantLog)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, log.InfoLevel))
	time.Sleep(10 * time.Millisecond)
	prog.done("test completed")

	if !strings.Contains(buf.String(), "test completed (") {
		t.Errorf("progress.done() output = %q", buf.String())
	}
}

func TestLogStats(t *testing.T) {
	var buf bytes.Buffer
	res := &pipeline.Result{Stats: pipeline.Stats{Zones: 5, Nodes: 25, Flows: 20}}
	res.CacheInfo.RenderHit = true

	logStats(newLogger(&buf, log.DebugLevel), res)

	out := buf.String()
	for _, want := range []string{"zones=5", "nodes=25", "render_cached=true"} {
		if !strings.Contains(out, want) {
			t.Errorf("logStats output missing %q: %s", want, out)
		}
	}
}
