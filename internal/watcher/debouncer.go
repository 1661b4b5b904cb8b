package watcher

import (
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// debouncer batches change events until no new event has arrived for
// delay, then hands the changed paths to the handler in one call.
type debouncer struct {
	delay    time.Duration
	logger   *zap.Logger
	events   map[string]FileChangeEvent
	timer    *time.Timer
	mutex    sync.Mutex
	stopped  bool
	stopChan chan struct{}
}

func newDebouncer(delay time.Duration, logger *zap.Logger) *debouncer {
	return &debouncer{
		delay:    delay,
		logger:   logger,
		events:   make(map[string]FileChangeEvent),
		stopChan: make(chan struct{}),
	}
}

func (d *debouncer) add(event FileChangeEvent, handler FileChangeHandler) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.stopped {
		return
	}
	d.events[event.Path] = event
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.flush(handler)
	})
}

func (d *debouncer) flush(handler FileChangeHandler) {
	d.mutex.Lock()
	if d.stopped || len(d.events) == 0 {
		d.mutex.Unlock()
		return
	}
	changedFiles := slices.Sorted(maps.Keys(d.events))
	d.events = make(map[string]FileChangeEvent)
	d.mutex.Unlock()

	// the handler runs unlocked so that events keep queueing meanwhile
	if err := handler(changedFiles); err != nil {
		d.logger.Error("change handler failed", zap.Strings("files", changedFiles), zap.Error(err))
	}
}

func (d *debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.stopChan)
}
