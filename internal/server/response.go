package server

import (
	"bytes"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/ironsheep/image-proxy/internal/proxyerr"
)

const (
	statusOK    = 200
	statusError = 500
)

// BufferPool supplies response header buffers. Every buffer obtained with
// Get is handed back with Put exactly once.
type BufferPool interface {
	Get() *bytes.Buffer
	Put(*bytes.Buffer)
}

type syncPool struct {
	p sync.Pool
}

func newSyncPool() *syncPool {
	return &syncPool{p: sync.Pool{New: func() interface{} { return new(bytes.Buffer) }}}
}

func (s *syncPool) Get() *bytes.Buffer {
	b := s.p.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

func (s *syncPool) Put(b *bytes.Buffer) {
	s.p.Put(b)
}

// pendingWrite is one response in flight. It owns the pooled header and the
// body until release.
type pendingWrite struct {
	conn     *conn
	header   *bytes.Buffer
	body     []byte
	released bool
}

// buffers returns the vectored write: header first, then the body if any.
func (pw *pendingWrite) buffers() net.Buffers {
	if len(pw.body) == 0 {
		return net.Buffers{pw.header.Bytes()}
	}
	return net.Buffers{pw.header.Bytes(), pw.body}
}

// appendHeader serializes the three-line response header. contentLength is
// authoritative for Content-Length.
func appendHeader(b *bytes.Buffer, status int, contentType string, contentLength int) {
	b.WriteString("HTTP/1.1 ")
	b.WriteString(strconv.Itoa(status))
	b.WriteString("\r\nContent-Type: ")
	b.WriteString(contentType)
	b.WriteString("\r\nContent-Length: ")
	b.WriteString(strconv.Itoa(contentLength))
	b.WriteString("\r\n\r\n")
}

// writeResponse starts the asynchronous write of one response on c.
//
// On success the write owns body and the loop will close c once it
// completes. On error nothing was written, no buffer was taken from the
// pool, and the caller still owns both body and c.
func (s *Server) writeResponse(c *conn, status int, contentType string, body []byte) error {
	if c.state == stateClosed {
		return proxyerr.Newf(proxyerr.Write, "respond", "connection closed")
	}
	if c.pending != nil {
		return proxyerr.Newf(proxyerr.Parameter, "respond", "response already in flight")
	}
	if contentType == "" || strings.ContainsAny(contentType, "\r\n") {
		return proxyerr.Newf(proxyerr.Parameter, "respond", "invalid content type %q", truncate(contentType))
	}

	header := s.pool.Get()
	appendHeader(header, status, contentType, len(body))

	pw := &pendingWrite{conn: c, header: header, body: body}
	c.pending = pw
	c.state = stateWriting
	s.stats.writes.Add(1)

	s.wg.Add(1)
	go s.flush(pw)
	return nil
}

// flush performs the write off the loop. Ownership of pw goes back to the
// loop with the written event; if the loop is gone, flush releases pw itself.
func (s *Server) flush(pw *pendingWrite) {
	defer s.wg.Done()

	bufs := pw.buffers()
	_, err := bufs.WriteTo(pw.conn.nc)
	if !s.post(writtenEvent{pw: pw, err: err}) {
		s.release(pw)
	}
}

// release returns the header to the pool and drops the body. Calling it
// twice is a bug and is logged rather than double-freeing.
func (s *Server) release(pw *pendingWrite) {
	if pw.released {
		s.log.Error("pending write released twice", "conn", pw.conn.id.String())
		return
	}
	pw.released = true
	s.pool.Put(pw.header)
	pw.header = nil
	pw.body = nil
	s.stats.released.Add(1)
}
