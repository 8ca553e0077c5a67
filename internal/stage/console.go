package stage

import (
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/buildbot/internal/logfields"
	"git.home.luguber.info/inful/buildbot/internal/results"
)

func (s *Stage) begin(log *slog.Logger) {
	_, _ = fmt.Fprintf(s.deps.Console, "\n==> Stage %s\n", s.Name())
	log.Info("Stage started")
}

func (s *Stage) finish(log *slog.Logger, rec results.StageRecord) {
	_, _ = fmt.Fprintf(s.deps.Console, "<== Stage %s: %s (%s)\n", rec.Name, rec.Outcome, rec.Duration.Round(time.Millisecond))
	log.Info("Stage finished", logfields.Outcome(string(rec.Outcome)), logfields.Duration(rec.Duration))
	flush(s.deps.Console)
}

// flush pushes buffered console output through before Run returns.
func flush(w any) {
	switch f := w.(type) {
	case interface{ Flush() error }:
		_ = f.Flush()
	case interface{ Sync() error }:
		_ = f.Sync()
	}
}
