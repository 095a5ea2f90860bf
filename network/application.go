package network

import (
	"fmt"
	"reflect"

	"github.com/HaseebLUMS/tree-sim/timing"
)

// An Application runs on a node between a start and a stop time.
type Application interface {
	Start()
	Stop()
}

type applicationStartEvent struct {
	*timing.EventBase
}

type applicationStopEvent struct {
	*timing.EventBase
}

type launcher struct {
	app Application
}

func (l *launcher) Handle(e timing.Event) error {
	switch e.(type) {
	case applicationStartEvent:
		l.app.Start()
	case applicationStopEvent:
		l.app.Stop()
	default:
		panic("cannot handle event of type " + reflect.TypeOf(e).String())
	}

	return nil
}

// ScheduleApplication arranges for app to be started at start and stopped at
// stop.
func ScheduleApplication(
	engine timing.EventScheduler,
	app Application,
	start, stop timing.VTime,
) error {
	if stop < start {
		return fmt.Errorf("application stops at %s before it starts at %s",
			stop, start)
	}

	if start < engine.Now() {
		return fmt.Errorf("application start %s is in the past", start)
	}

	l := &launcher{app: app}
	engine.Schedule(applicationStartEvent{timing.NewEventBase(start, l)})
	engine.Schedule(applicationStopEvent{timing.NewEventBase(stop, l)})

	return nil
}
