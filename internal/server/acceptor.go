package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/image-proxy/internal/proxyerr"
)

const maxAcceptDelay = time.Second

// acceptLoop hands accepted sockets to the event loop. It returns nil when
// the listener is closed by Stop. Temporary accept errors back off the way
// net/http does.
func (s *Server) acceptLoop(ctx context.Context) error {
	var delay time.Duration
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if isTemporary(err) {
				if delay == 0 {
					delay = 5 * time.Millisecond
				} else {
					delay *= 2
				}
				if delay > maxAcceptDelay {
					delay = maxAcceptDelay
				}
				s.log.Warn("accept error; retrying", "error", err, "delay", delay)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil
				}
				continue
			}
			return proxyerr.New(proxyerr.Accept, "accept", err)
		}
		delay = 0

		if !s.post(acceptedEvent{nc: nc}) {
			nc.Close()
			return nil
		}
	}
}

// onAccepted allocates the connection and starts its reader. If the
// connection cannot be set up the socket is dropped without a response.
func (s *Server) onAccepted(nc net.Conn) {
	id, err := uuid.NewRandom()
	if err != nil {
		s.log.Warn("dropping connection", "remote", nc.RemoteAddr().String(),
			"code", int(proxyerr.Allocation), "error", err)
		nc.Close()
		return
	}

	c := newConn(id, nc, s.cfg.MaxRequestBytes, s.log)
	s.conns[id] = c
	s.stats.accepted.Add(1)
	c.log.Debug("accepted")

	s.wg.Add(1)
	go s.readLoop(c)
}

func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}
