package server

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/ironsheep/image-proxy/internal/proxyerr"
)

type acceptedEvent struct {
	nc net.Conn
}

type readEvent struct {
	conn  *conn
	chunk []byte
	err   error
}

type dispatchedEvent struct {
	conn   *conn
	result *Result
	err    error
}

type writtenEvent struct {
	pw  *pendingWrite
	err error
}

// post delivers ev to the loop. It reports false once the loop has exited;
// the caller then still owns whatever ev carried.
func (s *Server) post(ev interface{}) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.quit:
		return false
	}
}

// loop is the only goroutine that touches connection state.
func (s *Server) loop(ctx context.Context) error {
	defer close(s.quit)
	for {
		select {
		case ev := <-s.events:
			s.handle(ev)
		case <-ctx.Done():
			s.shutdown()
			return nil
		}
	}
}

func (s *Server) handle(ev interface{}) {
	switch ev := ev.(type) {
	case acceptedEvent:
		s.onAccepted(ev.nc)
	case readEvent:
		s.onRead(ev.conn, ev.chunk, ev.err)
	case dispatchedEvent:
		s.onDispatched(ev.conn, ev.result, ev.err)
	case writtenEvent:
		s.onWritten(ev.pw, ev.err)
	default:
		s.log.Error("unknown event", "type", ev)
	}
}

// readLoop reads chunks and posts them, parking after each one until the
// loop says whether to continue.
func (s *Server) readLoop(c *conn) {
	defer s.wg.Done()

	for {
		if s.cfg.ReadTimeout > 0 {
			_ = c.nc.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		chunk := make([]byte, s.cfg.ReadChunkSize)
		n, err := c.nc.Read(chunk)
		if !s.post(readEvent{conn: c, chunk: chunk[:n], err: err}) {
			return
		}
		if err != nil {
			return
		}
		select {
		case more := <-c.resume:
			if !more {
				return
			}
		case <-s.quit:
			return
		}
	}
}

func (s *Server) onRead(c *conn, chunk []byte, err error) {
	if c.state != stateReading {
		c.signal(false)
		return
	}

	eof := errors.Is(err, io.EOF)
	if err != nil && !eof {
		s.report(c, proxyerr.New(proxyerr.Read, "read", err))
		return
	}
	if len(chunk) > 0 {
		if aerr := c.append(chunk); aerr != nil {
			s.report(c, aerr)
			return
		}
	}

	req, outcome, cerr := classify(c.buf)
	switch outcome {
	case Incomplete:
		if !eof {
			c.signal(true)
			return
		}
		if len(c.buf) == 0 {
			c.log.Debug("closed by peer before sending anything")
			c.stopReading()
			s.closeConn(c)
			return
		}
		s.report(c, proxyerr.Newf(proxyerr.MalformedRequest, "read", "end of stream after %d bytes", len(c.buf)))
	case Recognized:
		c.stopReading()
		c.log.Debug("request", "operation", req.Operation, "parameter", req.Parameter, "url", req.URL)
		s.startDispatch(c, req)
	default:
		c.log.Debug("request rejected", "outcome", outcome.String())
		s.report(c, cerr)
	}
}

// startDispatch runs the request inline when there is no worker pool, or
// hands it to a worker that reports back with a dispatched event.
func (s *Server) startDispatch(c *conn, req Request) {
	c.state = stateDispatching

	if s.sem == nil {
		res, err := s.dispatcher.Dispatch(s.ctx, req)
		s.onDispatched(c, res, err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			return
		}
		res, err := s.dispatcher.Dispatch(s.ctx, req)
		s.sem.Release(1)
		s.post(dispatchedEvent{conn: c, result: res, err: err})
	}()
}

func (s *Server) onDispatched(c *conn, res *Result, err error) {
	if c.state != stateDispatching {
		return
	}
	if err != nil {
		s.report(c, err)
		return
	}
	if werr := s.writeResponse(c, statusOK, res.ContentType, res.Body); werr != nil {
		s.report(c, werr)
		return
	}
	c.log.Debug("responding", "content_type", res.ContentType, "bytes", len(res.Body))
}

// onWritten finishes a response: buffers go back, the socket closes.
func (s *Server) onWritten(pw *pendingWrite, err error) {
	c := pw.conn
	if err != nil {
		s.stats.writeFailures.Add(1)
		c.log.Warn("response write failed", "code", int(proxyerr.Write), "error", err)
	}
	s.release(pw)
	c.pending = nil
	s.closeConn(c)
}

// closeConn closes c exactly once and forgets it.
func (s *Server) closeConn(c *conn) {
	if c.state == stateClosed {
		return
	}
	c.state = stateClosed
	c.signal(false)
	c.buf = nil
	delete(s.conns, c.id)
	if err := c.nc.Close(); err != nil {
		c.log.Debug("close failed", "error", err)
	}
	s.stats.closed.Add(1)
	c.log.Debug("closed")
}

// shutdown closes every live connection. A write still in flight keeps its
// buffers; its flush goroutine releases them when it cannot post back.
func (s *Server) shutdown() {
	for _, c := range s.conns {
		c.pending = nil
		s.closeConn(c)
	}
}
