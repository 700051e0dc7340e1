package sim

import (
	"fmt"
	"sync"
	"time"
)

// closeOnce wraps a channel with sync.Once so Close can run more than once.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// dispatchLoop delivers queued events one at a time, each after its delay.
// The handler may call back into the driver.
func (d *Driver) dispatchLoop() {
	defer d.wg.Done()

	for {
		p, ok := d.pop()
		if !ok {
			select {
			case <-d.done.Done():
				return
			case <-d.wake:
				continue
			}
		}

		if p.delay > 0 {
			t := time.NewTimer(p.delay)
			select {
			case <-d.done.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		d.deliver(p)
	}
}

// maxFlush bounds one Flush so a reconnect loop against a network that keeps
// refusing the station cannot spin forever.
const maxFlush = 1000

// Flush delivers queued events on the caller's goroutine until the queue is
// empty, including events queued by the handler, or maxFlush events were
// delivered. It returns the number of events delivered. A nested Flush from
// inside the handler returns 0.
func (d *Driver) Flush() int {
	d.mu.Lock()
	if d.flushing {
		d.mu.Unlock()
		return 0
	}
	d.flushing = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.flushing = false
		d.mu.Unlock()
	}()

	n := 0
	for n < maxFlush {
		p, ok := d.pop()
		if !ok {
			return n
		}
		if d.deliver(p) {
			n++
		}
	}
	return n
}

// Pending returns the number of undelivered events.
func (d *Driver) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *Driver) pop() (pending, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return pending{}, false
	}
	p := d.queue[0]
	d.queue = d.queue[1:]
	return p, true
}

// deliver hands p to the handler unless it belongs to a provisioning session
// that has since stopped. An event whose handler panicked still counts as
// delivered.
func (d *Driver) deliver(p pending) (delivered bool) {
	d.mu.Lock()
	if p.provGen != 0 && (p.provGen != d.provGen || !d.provisioning) {
		d.mu.Unlock()
		return false
	}
	h := d.handler
	logger := d.logger
	d.mu.Unlock()

	delivered = true
	defer func() {
		if r := recover(); r != nil {
			logger.Error("driver event handler panic", "event", p.ev.Kind.String(), "error", fmt.Errorf("%v", r))
		}
	}()
	h(p.ev)
	return delivered
}
