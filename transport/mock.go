package transport

import "sync"

// DuplexChannelTransport is an in-process Transport backed by Go channels,
// used by tests to simulate two peers talking without a real socket.
type DuplexChannelTransport struct {
	tx chan<- []byte
	mu sync.Mutex
	rx <-chan []byte
}

// NewDuplexPair returns two DuplexChannelTransports wired to each other:
// whatever is sent on a is received by b, and vice versa.
func NewDuplexPair() (a, b *DuplexChannelTransport) {
	abToBa := make(chan []byte, 64)
	baToAb := make(chan []byte, 64)
	a = &DuplexChannelTransport{tx: abToBa, rx: baToAb}
	b = &DuplexChannelTransport{tx: baToAb, rx: abToBa}
	return a, b
}

// Send delivers payload to the peer's Recv.
func (t *DuplexChannelTransport) Send(payload []byte) (err error) {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	defer func() {
		if recover() != nil {
			err = ConnectionLost()
		}
	}()
	t.tx <- cp
	return nil
}

// Recv blocks until a message arrives or the channel is closed, in which
// case it returns (nil, nil) for orderly end-of-stream.
func (t *DuplexChannelTransport) Recv() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := <-t.rx
	if !ok {
		return nil, nil
	}
	return m, nil
}

// Close closes the send side, causing the peer's next Recv to observe
// end-of-stream once its buffered messages are drained.
func (t *DuplexChannelTransport) Close() {
	defer func() { recover() }()
	close(t.tx)
}
