package server

import (
	"log/slog"
	"net"

	"github.com/google/uuid"
)

type connState int

const (
	stateReading connState = iota
	stateDispatching
	stateWriting
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateReading:
		return "reading"
	case stateDispatching:
		return "dispatching"
	case stateWriting:
		return "writing"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// conn is the per-socket state. Every field except nc and resume is owned
// by the event loop.
type conn struct {
	id  uuid.UUID
	nc  net.Conn
	log *slog.Logger

	buf     []byte
	maxBuf  int
	state   connState
	pending *pendingWrite

	// resume answers a parked reader: true to read again, false to stop.
	resume chan bool
}

func newConn(id uuid.UUID, nc net.Conn, maxBuf int, log *slog.Logger) *conn {
	return &conn{
		id:     id,
		nc:     nc,
		log:    log.With("conn", id.String(), "remote", nc.RemoteAddr().String()),
		maxBuf: maxBuf,
		state:  stateReading,
		resume: make(chan bool, 1),
	}
}

// signal answers the reader without blocking. A reader that is not parked
// never reads the value; a stale value is harmless because it is only ever
// a stop.
func (c *conn) signal(more bool) {
	select {
	case c.resume <- more:
	default:
	}
}

// stopReading ends the read phase and drops the request buffer.
func (c *conn) stopReading() {
	c.signal(false)
	c.buf = nil
}
