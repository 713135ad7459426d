package logging

import (
	"fmt"
)

// DefaultMaxErrors is the error limit used when none is configured.
const DefaultMaxErrors = 100

// Severity classifies a collected message.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "info"
}

// Message is one collected diagnostic.
type Message struct {
	Severity Severity
	Position string
	Text     string
}

func (m Message) String() string {
	if m.Position == "" {
		return fmt.Sprintf("%s: %s", m.Severity, m.Text)
	}
	return fmt.Sprintf("%s: %s: %s", m.Position, m.Severity, m.Text)
}

// Collector accumulates diagnostics during a load so several can be reported
// before stopping. It is not safe for concurrent use.
type Collector struct {
	maxErrors int
	messages  []Message
	errors    int
	infos     int
}

// NewCollector returns a Collector that reports MaxErrorsReached after
// maxErrors errors (0 = DefaultMaxErrors, negative = unlimited).
func NewCollector(maxErrors int) *Collector {
	if maxErrors == 0 {
		maxErrors = DefaultMaxErrors
	}
	return &Collector{maxErrors: maxErrors}
}

// AddError records an error. Errors beyond the limit are counted but not kept.
func (c *Collector) AddError(position, text string) {
	c.errors++
	if c.maxErrors < 0 || c.errors <= c.maxErrors {
		c.messages = append(c.messages, Message{Severity: SeverityError, Position: position, Text: text})
	}
}

// AddInfo records an informational message.
func (c *Collector) AddInfo(position, text string) {
	c.infos++
	c.messages = append(c.messages, Message{Severity: SeverityInfo, Position: position, Text: text})
}

// ErrorCount returns the number of errors recorded.
func (c *Collector) ErrorCount() int { return c.errors }

// InfoCount returns the number of informational messages recorded.
func (c *Collector) InfoCount() int { return c.infos }

// MaxErrorsReached reports whether the error limit was hit.
func (c *Collector) MaxErrorsReached() bool {
	return c.maxErrors >= 0 && c.errors >= c.maxErrors
}

// Messages returns the kept messages in recording order.
func (c *Collector) Messages() []Message {
	return append([]Message(nil), c.messages...)
}
