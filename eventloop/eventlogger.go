package eventloop

import (
	"log"

	"github.com/sarchlab/stallscope/hooking"
)

// EventLogger is a hook that prints the lifecycle of every operation.
type EventLogger struct {
	logger *log.Logger
}

// NewEventLogger returns a new EventLogger which will write in to the logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := new(EventLogger)

	h.logger = logger

	return h
}

// Func writes the operation information into the logger.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	info, ok := ctx.Item.(OperationInfo)
	if !ok {
		return
	}

	h.logger.Printf("%s %s #%d <- #%d",
		ctx.Pos.Name, info.Type, info.ID, info.TriggerID)
}
