package gm8050

import (
	"sync"
	"time"
)

// fakePort is a scripted serial channel for tests. Inbound data is fed
// through a channel so arrival timing and chunk sizes are controlled by the
// test; outbound frames are recorded and optionally answered by a handler.
type fakePort struct {
	mu          sync.Mutex
	incoming    chan []byte
	leftover    []byte
	readTimeout time.Duration
	writes      [][]byte
	onWrite     func(frame []byte)
	closed      bool
}

func newFakePort() *fakePort {
	return &fakePort{
		incoming:    make(chan []byte, 64),
		readTimeout: pollInterval,
	}
}

func (p *fakePort) feed(b []byte) {
	p.incoming <- b
}

func (p *fakePort) feedAfter(d time.Duration, b []byte) {
	go func() {
		time.Sleep(d)
		p.incoming <- b
	}()
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	left := p.leftover
	p.leftover = nil
	timeout := p.readTimeout
	p.mu.Unlock()

	if len(left) == 0 {
		select {
		case data := <-p.incoming:
			left = data
		case <-time.After(timeout):
			return 0, nil
		}
	}
	n := copy(b, left)
	if n < len(left) {
		p.mu.Lock()
		p.leftover = left[n:]
		p.mu.Unlock()
	}
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	frame := append([]byte(nil), b...)
	p.mu.Lock()
	p.writes = append(p.writes, frame)
	handler := p.onWrite
	p.mu.Unlock()
	if handler != nil {
		handler(frame)
	}
	return len(b), nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	p.leftover = nil
	p.mu.Unlock()
	for {
		select {
		case <-p.incoming:
		default:
			return nil
		}
	}
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	p.readTimeout = t
	p.mu.Unlock()
	return nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePort) lastWrite() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.writes) == 0 {
		return nil
	}
	return p.writes[len(p.writes)-1]
}
