package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/trustlane/pkg/pipeline"
)

// newLogger creates a logger with "HH:MM:SS.ms" timestamps writing to w.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs completion of an operation with its elapsed time.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, e.g. "Rendered diagram.drawio (12ms)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// logStats writes the per-stage timings of a run at debug level.
func logStats(l *log.Logger, res *pipeline.Result) {
	s := res.Stats
	l.Debug("pipeline",
		"zones", s.Zones,
		"nodes", s.Nodes,
		"flows", s.Flows,
		"validate", s.ValidateTime,
		"normalize", s.NormalizeTime,
		"layout", s.LayoutTime,
		"render", s.RenderTime,
		"prepare_cached", res.CacheInfo.PrepareHit,
		"render_cached", res.CacheInfo.RenderHit)
}
