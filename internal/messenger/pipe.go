package messenger

import "sync"

// HandlerFunc consumes envelopes arriving at one end of a pipe.
type HandlerFunc func(Envelope)

// PipeTransport is an in-process Transport whose sends are delivered to the
// peer end's handler on a fresh goroutine, mimicking the asynchronous
// postMessage channel between the editor host and the preview frame.
type PipeTransport struct {
	mu      sync.Mutex
	peer    *PipeTransport
	handler HandlerFunc
	ready   bool
}

// Pipe returns two linked transport ends: one for the host messenger, one
// for the preview surface binding. Both start unready; call SetReady once
// the surface has loaded.
func Pipe() (host, preview *PipeTransport) {
	a := &PipeTransport{}
	b := &PipeTransport{}
	a.peer = b
	b.peer = a
	return a, b
}

// Bind registers the handler invoked for envelopes sent from the peer end
// and marks this end ready.
func (t *PipeTransport) Bind(h HandlerFunc) {
	t.mu.Lock()
	t.handler = h
	t.ready = true
	t.mu.Unlock()
}

// SetReady flips reachability without touching the handler.
func (t *PipeTransport) SetReady(ready bool) {
	t.mu.Lock()
	t.ready = ready
	t.mu.Unlock()
}

// Send delivers the envelope to the peer's handler asynchronously.
func (t *PipeTransport) Send(env Envelope) error {
	t.peer.mu.Lock()
	h := t.peer.handler
	t.peer.mu.Unlock()
	if h == nil {
		return nil
	}
	go h(env)
	return nil
}

// Ready reports whether the peer end has bound a handler and is reachable.
func (t *PipeTransport) Ready() bool {
	t.peer.mu.Lock()
	defer t.peer.mu.Unlock()
	return t.peer.ready && t.peer.handler != nil
}
