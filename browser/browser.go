// Package browser owns the single process-wide headless browser instance
// shared by the HTML-scrape adapters and the stream-URL resolver. It is a
// lazily-initialized, refcounted singleton: the browser process starts on
// first Acquire and is only closed when the process shuts down, never
// in between, matching spec.md §5's "single process-wide instance, lazily
// initialized and refcounted" requirement. Grounded on the teacher's
// pipeline.Coordinator pattern of wrapping one shared, expensive resource
// behind a struct that the rest of the codebase borrows from.
package browser

import (
	"context"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/streamwatch/streamwatch/log"
)

// Owner lazily starts a shared chromedp allocator/browser context and hands
// out scoped pages. Call Close once at process shutdown.
type Owner struct {
	mu      sync.Mutex
	allocCt context.Context
	allocCl context.CancelFunc
	browCt  context.Context
	browCl  context.CancelFunc
	refs    int
}

func New() *Owner {
	return &Owner{}
}

func (o *Owner) ensureStarted() {
	if o.browCt != nil {
		return
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	o.allocCt, o.allocCl = chromedp.NewExecAllocator(context.Background(), opts...)
	o.browCt, o.browCl = chromedp.NewContext(o.allocCt)
	log.LogNoRequestID("headless browser started")
}

// Page is a scoped acquisition: a fresh chromedp tab that is guaranteed to
// close on every exit path, including panic or cancellation, via Close.
type Page struct {
	Ctx    context.Context
	cancel context.CancelFunc
	owner  *Owner
}

// Acquire starts the shared browser if needed and returns a new page scoped
// to ctx's cancellation. Callers must defer page.Close().
func (o *Owner) Acquire(ctx context.Context) (*Page, error) {
	o.mu.Lock()
	o.ensureStarted()
	o.refs++
	browCt := o.browCt
	o.mu.Unlock()

	pageCt, cancel := chromedp.NewContext(browCt)
	pageCt, timeoutCancel := context.WithCancel(pageCt)
	go func() {
		<-ctx.Done()
		timeoutCancel()
	}()

	if err := chromedp.Run(pageCt); err != nil {
		o.release()
		cancel()
		return nil, err
	}

	return &Page{Ctx: pageCt, cancel: cancel, owner: o}, nil
}

// Close releases the page and decrements the owner's refcount. Safe to call
// multiple times.
func (p *Page) Close() {
	if p == nil || p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	p.owner.release()
}

func (o *Owner) release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.refs > 0 {
		o.refs--
	}
}

// Shutdown stops the shared browser. Called once during process shutdown
// (spec.md §5: "Process SIGTERM/SIGINT ... close the shared browser").
func (o *Owner) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.browCl != nil {
		o.browCl()
	}
	if o.allocCl != nil {
		o.allocCl()
	}
	o.browCt, o.allocCt = nil, nil
}
