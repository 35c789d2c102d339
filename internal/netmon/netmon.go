// Package netmon observes reachability of the remote store and emits
// connectivity transition events.
//
// Listeners register through Subscribe and receive at most one event
// per actual transition - a probe that confirms the current state fires
// nothing. Every subscription returns an unsubscribe func the owner
// must call on teardown; there is no global listener whose lifetime is
// tied to package initialization.
package netmon

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Listener receives the new connectivity state after a transition.
type Listener func(connected bool)

// Monitor is the connectivity boundary consumed by the daemon and the
// client API.
type Monitor interface {
	// Connected reports the last observed state (point query).
	Connected() bool

	// Subscribe registers a listener for transitions and returns its
	// unsubscribe func. The listener fires only on state changes
	// observed after registration. No transition observed after
	// unsubscribe returns reaches the listener; a delivery already
	// dispatched when unsubscribe is called may still arrive.
	Subscribe(l Listener) (unsubscribe func())
}

// notifier carries the shared listener bookkeeping.
type notifier struct {
	mu        sync.Mutex
	connected bool
	nextID    int
	listeners map[int]Listener
}

func (n *notifier) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected
}

func (n *notifier) Subscribe(l Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = l
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

// set records a new observation and notifies listeners iff the state
// actually changed. Membership is re-checked per listener at call time,
// so an unsubscribe that lands mid-dispatch still suppresses the
// listener's delivery for this transition.
func (n *notifier) set(connected bool) {
	n.mu.Lock()
	if n.connected == connected {
		n.mu.Unlock()
		return
	}
	n.connected = connected
	ids := make([]int, 0, len(n.listeners))
	for id := range n.listeners {
		ids = append(ids, id)
	}
	n.mu.Unlock()
	sort.Ints(ids) // registration order

	for _, id := range ids {
		n.mu.Lock()
		l, ok := n.listeners[id]
		n.mu.Unlock()
		if !ok {
			continue
		}
		l(connected)
	}
}

// Prober checks reachability; a nil error means connected.
type Prober func(ctx context.Context) error

// Poller is a Monitor that probes the remote store on an interval.
type Poller struct {
	notifier
	probe    Prober
	interval time.Duration
	timeout  time.Duration

	runMu   sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewPoller creates a polling monitor. A typical probe is the remote
// store's Ping. interval <= 0 defaults to 15s.
func NewPoller(probe Prober, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Poller{
		notifier: notifier{listeners: make(map[int]Listener)},
		probe:    probe,
		interval: interval,
		timeout:  5 * time.Second,
	}
}

// Start probes once immediately to seed the state, then keeps polling
// until Stop is called.
func (p *Poller) Start() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.done = make(chan struct{})

	p.Check()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.done:
				return
			case <-ticker.C:
				p.Check()
			}
		}
	}()
}

// Stop ends polling and waits for the poll goroutine to exit.
// Listeners registered by callers remain theirs to release.
func (p *Poller) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.done)
	p.wg.Wait()
}

// Check runs one probe immediately and applies the observation.
func (p *Poller) Check() bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	connected := p.probe(ctx) == nil
	p.set(connected)
	return connected
}

// Manual is a Monitor whose state is set by hand. Tests and the CLI's
// one-shot commands use it in place of a background poller.
type Manual struct {
	notifier
}

// NewManual creates a manual monitor seeded with the given state.
func NewManual(connected bool) *Manual {
	m := &Manual{notifier: notifier{listeners: make(map[int]Listener)}}
	m.connected = connected
	return m
}

// Set records a state observation, firing listeners on transitions.
func (m *Manual) Set(connected bool) {
	m.set(connected)
}
