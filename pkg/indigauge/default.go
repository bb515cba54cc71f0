package indigauge

import (
	"fmt"
	"sync/atomic"

	"github.com/indigauge/indigauge-go/internal/crash"
	"github.com/indigauge/indigauge-go/internal/event"
)

var defaultClient atomic.Pointer[Client]

// SetDefault installs c as the package-level client. It can be set once;
// later calls return false and leave the first client in place.
func SetDefault(c *Client) bool {
	return defaultClient.CompareAndSwap(nil, c)
}

// Default returns the package-level client, or nil.
func Default() *Client {
	return defaultClient.Load()
}

// MustEventType panics if s is not a valid "namespace.event" type.
// Use it for package-level event type variables so mistakes fail at init.
func MustEventType(s string) string {
	if err := event.Check(s); err != nil {
		panic(fmt.Sprintf("indigauge: %v", err))
	}
	return s
}

// Emit queues an event on the default client. Without one it returns false.
func Emit(level Level, eventType string, metadata any) bool {
	if c := Default(); c != nil {
		return c.emit(level, eventType, metadata, 2)
	}
	return false
}

func Trace(eventType string, metadata any) bool {
	if c := Default(); c != nil {
		return c.emit(LevelTrace, eventType, metadata, 2)
	}
	return false
}

func Debug(eventType string, metadata any) bool {
	if c := Default(); c != nil {
		return c.emit(LevelDebug, eventType, metadata, 2)
	}
	return false
}

func Info(eventType string, metadata any) bool {
	if c := Default(); c != nil {
		return c.emit(LevelInfo, eventType, metadata, 2)
	}
	return false
}

func Warn(eventType string, metadata any) bool {
	if c := Default(); c != nil {
		return c.emit(LevelWarn, eventType, metadata, 2)
	}
	return false
}

func Error(eventType string, metadata any) bool {
	if c := Default(); c != nil {
		return c.emit(LevelError, eventType, metadata, 2)
	}
	return false
}

// RecoverAndReport reports a panic through the default client and re-panics.
func RecoverAndReport() {
	r := recover()
	if r == nil {
		return
	}
	if c := Default(); c != nil {
		c.reportCrash(r, crash.PanicLocation())
	}
	panic(r)
}
