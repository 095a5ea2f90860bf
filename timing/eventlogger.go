package timing

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/HaseebLUMS/tree-sim/hooking"
)

// EventLogger is an hook that logs every event before it is handled.
type EventLogger struct {
	logger *slog.Logger
	level  slog.Level
}

// NewEventLogger returns a new EventLogger which writes to the logger at debug
// level.
func NewEventLogger(logger *slog.Logger) *EventLogger {
	h := new(EventLogger)

	h.logger = logger
	h.level = slog.LevelDebug

	return h
}

type named interface {
	Name() string
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	handlerName := reflect.TypeOf(evt.Handler()).String()
	if n, ok := evt.Handler().(named); ok {
		handlerName = n.Name()
	}

	h.logger.Log(context.Background(), h.level, "event",
		"vtime", evt.Time(),
		"type", reflect.TypeOf(evt).String(),
		"handler", handlerName)
}
