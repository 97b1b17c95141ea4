package server

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ironsheep/image-proxy/internal/imaging"
)

var errBadParam = errors.New("bad parameter")

// fakeFetcher returns canned bytes and counts calls.
type fakeFetcher struct {
	data  []byte
	err   error
	calls atomic.Int32
	urls  chan string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	if f.urls != nil {
		select {
		case f.urls <- url:
		default:
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

// fakeOp accepts only the parameter "ok" and echoes its input reversed.
type fakeOp struct {
	name      string
	applyErr  error
	format    string
	validates atomic.Int32
	applies   atomic.Int32
}

func (o *fakeOp) Name() string { return o.name }

func (o *fakeOp) Validate(p string) error {
	o.validates.Add(1)
	if p != "ok" {
		return errBadParam
	}
	return nil
}

func (o *fakeOp) Apply(p string, src []byte) ([]byte, string, error) {
	o.applies.Add(1)
	if err := o.Validate(p); err != nil {
		return nil, "", err
	}
	if o.applyErr != nil {
		return nil, "", o.applyErr
	}
	out := make([]byte, len(src))
	for i, b := range src {
		out[len(src)-1-i] = b
	}
	return out, o.format, nil
}

type fakeTable map[string]imaging.Operation

func (t fakeTable) Lookup(name string) (imaging.Operation, bool) {
	op, ok := t[name]
	return op, ok
}

// trackingPool records every header buffer handed out and returned.
type trackingPool struct {
	mu        sync.Mutex
	out       map[*bytes.Buffer]bool
	gets      int
	puts      int
	doublePut int
}

func newTrackingPool() *trackingPool {
	return &trackingPool{out: make(map[*bytes.Buffer]bool)}
}

func (p *trackingPool) Get() *bytes.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := new(bytes.Buffer)
	p.out[b] = true
	p.gets++
	return b
}

func (p *trackingPool) Put(b *bytes.Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.out[b] {
		p.doublePut++
		return
	}
	delete(p.out, b)
	p.puts++
}

func (p *trackingPool) snapshot() (gets, puts, outstanding, doublePut int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gets, p.puts, len(p.out), p.doublePut
}
