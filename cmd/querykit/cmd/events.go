package cmd

import (
	"context"

	"github.com/solatis/querykit/internal/log"
)

// eventLog writes service lifecycle records. Write failures are logged,
// never returned: losing an event must not stop the service.
type eventLog struct {
	w      log.Writer
	logger log.Logger
}

func newEventLog(w log.Writer, logger log.Logger) *eventLog {
	return &eventLog{w: w, logger: log.OrNop(logger)}
}

func (e *eventLog) record(ctx context.Context, level log.Level, msg string, props map[string]any) {
	if err := e.w.Write(ctx, log.NewRecord(level, "querykit", msg, props)); err != nil {
		e.logger.Warn("failed to write lifecycle record", "message", msg, "error", err)
	}
}
