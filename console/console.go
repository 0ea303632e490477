package console

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Kind tags a captured line.
type Kind string

const (
	KindLog     Kind = "LOG"
	KindError   Kind = "ERROR"
	KindWarn    Kind = "WARN"
	KindInfo    Kind = "INFO"
	KindResult  Kind = "RESULT"
	KindExports Kind = "EXPORTS"
	KindExport  Kind = "EXPORT"
	KindStack   Kind = "STACK"
)

var ErrAlreadyIntercepted = errors.New("console is already intercepted")

// Sink receives console output that is not being captured, and everything
// that is captured from the log family.
type Sink interface {
	Emit(kind Kind, message string)
}

// ZapSink forwards console output to a zap logger.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Emit(kind Kind, message string) {
	switch kind {
	case KindError:
		s.logger.Error(message, zap.String("kind", string(kind)))
	case KindWarn:
		s.logger.Warn(message, zap.String("kind", string(kind)))
	case KindInfo:
		s.logger.Info(message, zap.String("kind", string(kind)))
	default:
		s.logger.Debug(message, zap.String("kind", string(kind)))
	}
}

type nopSink struct{}

func (nopSink) Emit(Kind, string) {}

// Console is the output sink shared by every run of one executor. At most one
// Capture may be held on it at a time.
type Console struct {
	mu     sync.Mutex
	sink   Sink
	active *Capture
}

func New(sink Sink) *Console {
	if sink == nil {
		sink = nopSink{}
	}
	return &Console{sink: sink}
}

// Emit writes a log-family line. While a capture is held the line is also
// appended to it.
func (c *Console) Emit(kind Kind, message string) {
	c.mu.Lock()
	active := c.active
	sink := c.sink
	c.mu.Unlock()

	if active != nil {
		active.append(kind, message)
	}
	sink.Emit(kind, message)
}

// Intercept starts capturing. The returned Capture must be released, usually
// with defer, on every path.
func (c *Console) Intercept() (*Capture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, ErrAlreadyIntercepted
	}
	capture := &Capture{console: c}
	c.active = capture
	return capture, nil
}

// Intercepted reports whether a capture is currently held.
func (c *Console) Intercepted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Capture is an ordered buffer of tagged lines.
type Capture struct {
	console *Console
	mu      sync.Mutex
	lines   []string
	once    sync.Once
}

// Emit is shorthand for writing through the owning console.
func (c *Capture) Emit(kind Kind, message string) {
	c.console.Emit(kind, message)
}

// Record appends an engine-generated line without forwarding it to the sink.
func (c *Capture) Record(kind Kind, message string) {
	c.append(kind, message)
}

func (c *Capture) append(kind Kind, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, Format(kind, message))
}

// Lines returns a copy of everything captured so far.
func (c *Capture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// Release restores the console's original sink. It is safe to call more
// than once.
func (c *Capture) Release() {
	c.once.Do(func() {
		c.console.mu.Lock()
		if c.console.active == c {
			c.console.active = nil
		}
		c.console.mu.Unlock()
	})
}

// Format renders one captured line. Stack traces start on their own line.
func Format(kind Kind, message string) string {
	if kind == KindStack {
		return fmt.Sprintf("[%s]\n%s", kind, message)
	}
	return fmt.Sprintf("[%s] %s", kind, message)
}
