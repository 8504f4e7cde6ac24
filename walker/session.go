package walker

import "context"

// Session is a live browser handle scoped to one walk. Blocking calls honour
// ctx; element waits fail with ELEMENT_NOT_FOUND once ctx expires.
type Session interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// PageInfo returns the current document title and URL.
	PageInfo(ctx context.Context) (title, url string, err error)

	// WaitVisible blocks until an element matching selector is visible.
	WaitVisible(ctx context.Context, selector string) error

	// Click waits for the element matching selector and clicks it.
	Click(ctx context.Context, selector string) error

	// ClickIfPresent clicks the element matching selector if it exists and is
	// visible right now. Absence is reported as (false, nil), never as an error.
	ClickIfPresent(ctx context.Context, selector string) (bool, error)

	// Text returns the visible text of the element matching selector.
	Text(ctx context.Context, selector string) (string, error)

	// OptionLabels returns the labels of all elements matching selector,
	// in document order. No match yields an empty slice.
	OptionLabels(ctx context.Context, selector string) ([]string, error)

	// ClickNth clicks the index-th element matching selector.
	ClickNth(ctx context.Context, selector string, index int) error

	// HasClass reports whether the element matching selector carries class.
	HasClass(ctx context.Context, selector, class string) (bool, error)

	// InnerHTML returns the inner HTML of the element matching selector.
	InnerHTML(ctx context.Context, selector string) (string, error)

	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// ConsoleMessages returns console output captured since the session
	// opened. It fails with UNSUPPORTED when capture is disabled.
	ConsoleMessages() ([]string, error)

	// Close releases the browser. It is safe to call more than once.
	Close() error
}

// Opener creates the Session for a walk.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Session, error)

// Open calls f(ctx).
func (f OpenerFunc) Open(ctx context.Context) (Session, error) { return f(ctx) }
