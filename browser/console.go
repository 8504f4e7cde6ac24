package browser

import (
	"context"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// maxConsoleMessages caps the buffer; older messages are dropped first.
const maxConsoleMessages = 1000

// consoleLog buffers console API calls of one page.
type consoleLog struct {
	mu       sync.Mutex
	messages []string
	cancel   context.CancelFunc
}

// captureConsole subscribes to Runtime.consoleAPICalled on page. The
// subscription (and the Runtime domain enable) is in place when this
// returns; events are consumed on a background goroutine until stop.
func captureConsole(page *rod.Page) *consoleLog {
	ctx, cancel := context.WithCancel(context.Background())
	c := &consoleLog{cancel: cancel}

	wait := page.Context(ctx).EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		c.add(formatConsole(e))
	})
	go wait()

	return c
}

func (c *consoleLog) add(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) >= maxConsoleMessages {
		c.messages = c.messages[1:]
	}
	c.messages = append(c.messages, msg)
}

// snapshot returns a copy of the buffered messages.
func (c *consoleLog) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *consoleLog) stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// formatConsole joins the call arguments with spaces, the way the DevTools
// console prints them: strings verbatim, primitives as JSON, and objects
// that were not serialised by value as their description.
func formatConsole(e *proto.RuntimeConsoleAPICalled) string {
	parts := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		parts = append(parts, formatArg(arg))
	}
	return strings.Join(parts, " ")
}

func formatArg(arg *proto.RuntimeRemoteObject) string {
	switch {
	case arg == nil:
		return ""
	case arg.Type == proto.RuntimeRemoteObjectTypeString:
		return arg.Value.Str()
	case !arg.Value.Nil():
		return arg.Value.JSON("", "")
	default:
		return arg.Description
	}
}
