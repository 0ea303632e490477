package executor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"codemate/console"

	"github.com/dop251/goja"
)

const minTimerDelay = time.Millisecond

type timer struct {
	id       int64
	seq      int64
	due      time.Duration
	interval time.Duration
	repeat   bool
	fn       goja.Callable
	args     []goja.Value
}

// timerQueue runs on virtual time: the body returns at zero and every
// callback advances the clock to its due time.
type timerQueue struct {
	now    time.Duration
	nextID int64
	seq    int64
	timers map[int64]*timer
}

func newTimerQueue() *timerQueue {
	return &timerQueue{timers: make(map[int64]*timer)}
}

func (q *timerQueue) add(fn goja.Callable, delay time.Duration, args []goja.Value, repeat bool) int64 {
	if delay < minTimerDelay {
		delay = minTimerDelay
	}
	q.nextID++
	q.seq++
	q.timers[q.nextID] = &timer{
		id:       q.nextID,
		seq:      q.seq,
		due:      q.now + delay,
		interval: delay,
		repeat:   repeat,
		fn:       fn,
		args:     args,
	}
	return q.nextID
}

func (q *timerQueue) clear(id int64) {
	delete(q.timers, id)
}

// next pops the earliest timer due at or before limit. Ties fire in the
// order they were scheduled.
func (q *timerQueue) next(limit time.Duration) *timer {
	var best *timer
	for _, t := range q.timers {
		if t.due > limit {
			continue
		}
		if best == nil || t.due < best.due || (t.due == best.due && t.seq < best.seq) {
			best = t
		}
	}
	if best == nil {
		return nil
	}

	q.now = best.due
	if best.repeat {
		q.seq++
		best.seq = q.seq
		best.due += best.interval
	} else {
		delete(q.timers, best.id)
	}
	return best
}

func (q *timerQueue) pending() int {
	return len(q.timers)
}

// schedule builds setTimeout (repeat=false) or setInterval (repeat=true).
func (r *run) schedule(repeat bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(r.vm.NewTypeError("timer callback must be a function"))
		}
		ms := call.Argument(1).ToFloat()
		if math.IsNaN(ms) || ms < 0 {
			ms = 0
		}
		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = append(args, call.Arguments[2:]...)
		}
		id := r.timers.add(fn, time.Duration(ms*float64(time.Millisecond)), args, repeat)
		return r.vm.ToValue(id)
	}
}

func (r *run) cancelTimer(call goja.FunctionCall) goja.Value {
	if id := call.Argument(0); !goja.IsUndefined(id) && !goja.IsNull(id) {
		r.timers.clear(id.ToInteger())
	}
	return goja.Undefined()
}

// drainTimers fires everything due inside the capture window. Only an
// interrupt stops it early; callback errors are logged and draining goes on.
func (r *run) drainTimers() error {
	window := r.opts.TimerWindow
	if window > 0 {
		for t := r.timers.next(window); t != nil; t = r.timers.next(window) {
			if _, err := t.fn(goja.Undefined(), t.args...); err != nil {
				var interrupted *goja.InterruptedError
				if errors.As(err, &interrupted) {
					return err
				}
				msg, stack := describeError(err)
				r.capture.Record(console.KindError, msg)
				if stack != "" {
					r.capture.Record(console.KindStack, stack)
				}
			}
		}
	}

	if n := r.timers.pending(); n > 0 {
		r.capture.Record(console.KindWarn, fmt.Sprintf("%d pending timer(s) discarded after the %s capture window", n, window))
	}
	return nil
}
