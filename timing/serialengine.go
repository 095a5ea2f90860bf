package timing

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/HaseebLUMS/tree-sim/hooking"
)

// A SerialEngine is an Engine that always run events one after another.
type SerialEngine struct {
	*hooking.HookableBase

	logger *slog.Logger

	timeLock       sync.RWMutex
	time           VTime
	queue          EventQueue
	secondaryQueue EventQueue

	stopLock     sync.Mutex
	stopping     bool
	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex

	simulationEndHandlers []SimulationEndHandler
}

// NewSerialEngine creates a SerialEngine
func NewSerialEngine() *SerialEngine {
	e := new(SerialEngine)

	e.HookableBase = hooking.NewHookableBase()
	e.logger = slog.Default()
	e.queue = NewEventQueue()
	e.secondaryQueue = NewEventQueue()

	return e
}

// WithLogger sets the logger that receives handler errors.
func (e *SerialEngine) WithLogger(logger *slog.Logger) *SerialEngine {
	if logger != nil {
		e.logger = logger
	}

	return e
}

// Schedule register an event to be happen in the future
func (e *SerialEngine) Schedule(evt Event) {
	now := e.readNow()
	if evt.Time() < now {
		panic(fmt.Sprintf(
			"scheduling an event earlier than current time, evt %s @ %s, now %s",
			reflect.TypeOf(evt), evt.Time(), now,
		))
	}

	if evt.IsSecondary() {
		e.secondaryQueue.Push(evt)
		return
	}

	e.queue.Push(evt)
}

func (e *SerialEngine) readNow() VTime {
	e.timeLock.RLock()
	t := e.time
	e.timeLock.RUnlock()

	return t
}

func (e *SerialEngine) writeNow(t VTime) {
	e.timeLock.Lock()
	e.time = t
	e.timeLock.Unlock()
}

// Run processes all the events scheduled in the SerialEngine. It returns when
// no events are left or Stop is called.
func (e *SerialEngine) Run() error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	e.setStopping(false)

	for {
		if e.noMoreEvent() || e.isStopping() {
			return nil
		}

		e.pauseLock.Lock()

		evt := e.nextEvent()
		now := e.readNow()

		if evt.Time() < now {
			panic(fmt.Sprintf(
				"cannot run event in the past, evt %s @ %s, now %s",
				reflect.TypeOf(evt), evt.Time(), now,
			))
		}

		e.writeNow(evt.Time())

		hookCtx := hooking.HookCtx{
			Domain: e,
			Pos:    HookPosBeforeEvent,
			Item:   evt,
		}
		e.InvokeHook(hookCtx)

		handler := evt.Handler()
		if err := handler.Handle(evt); err != nil {
			e.logger.Error("event handler failed",
				"vtime", evt.Time(),
				"event", reflect.TypeOf(evt).String(),
				"err", err)
		}

		hookCtx.Pos = HookPosAfterEvent
		e.InvokeHook(hookCtx)

		e.pauseLock.Unlock()
	}
}

func (e *SerialEngine) noMoreEvent() bool {
	return e.queue.Len() == 0 && e.secondaryQueue.Len() == 0
}

func (e *SerialEngine) nextEvent() Event {
	if e.queue.Len() == 0 {
		return e.secondaryQueue.Pop()
	}

	if e.secondaryQueue.Len() == 0 {
		return e.queue.Pop()
	}

	primaryEvt := e.queue.Peek()
	secondaryEvt := e.secondaryQueue.Peek()

	if primaryEvt.Time() <= secondaryEvt.Time() {
		e.queue.Pop()
		return primaryEvt
	}

	e.secondaryQueue.Pop()

	return secondaryEvt
}

// Stop makes Run return once the event being handled completes.
func (e *SerialEngine) Stop() {
	e.setStopping(true)
}

func (e *SerialEngine) setStopping(v bool) {
	e.stopLock.Lock()
	e.stopping = v
	e.stopLock.Unlock()
}

func (e *SerialEngine) isStopping() bool {
	e.stopLock.Lock()
	defer e.stopLock.Unlock()

	return e.stopping
}

// Pause prevents the SerialEngine to trigger more events.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the SerialEngine to trigger more events.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// Now returns the current time at which the engine is at.
// Specifically, the run time of the current event.
func (e *SerialEngine) Now() VTime {
	return e.readNow()
}

// Pending returns the number of events that have not been handled yet.
func (e *SerialEngine) Pending() int {
	return e.queue.Len() + e.secondaryQueue.Len()
}

// RegisterSimulationEndHandler registers a handler to be invoked by Finished.
func (e *SerialEngine) RegisterSimulationEndHandler(
	handler SimulationEndHandler,
) {
	e.simulationEndHandlers = append(e.simulationEndHandlers, handler)
}

// Finished should be called after the simulation ends. This function calls
// all the registered SimulationEndHandler in registration order. All handlers
// run even if some fail; the first error is returned.
func (e *SerialEngine) Finished() error {
	now := e.readNow()

	var firstErr error

	for _, h := range e.simulationEndHandlers {
		err := h.Handle(now)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

var _ Engine = (*SerialEngine)(nil)
