package indigauge

type Level string

type Client struct{}

func (c *Client) Emit(level Level, eventType string, metadata any) bool { return true }
func (c *Client) Info(eventType string, metadata any) bool              { return true }
func (c *Client) Warn(eventType string, metadata any) bool              { return true }

func Emit(level Level, eventType string, metadata any) bool { return true }
func Info(eventType string, metadata any) bool              { return true }
func Error(eventType string, metadata any) bool             { return true }
func MustEventType(s string) string                         { return s }
