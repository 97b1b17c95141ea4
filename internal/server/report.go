package server

import (
	"strconv"

	"github.com/ironsheep/image-proxy/internal/proxyerr"
)

const errorContentType = "text/html"

// errorBody renders the diagnostic body for code.
func errorBody(code proxyerr.Code) []byte {
	return strconv.AppendInt([]byte("Error No: "), int64(code), 10)
}

// report is the single place that decides between a diagnostic response
// and an immediate close. Fatal codes close without writing. Everything
// else gets a 500 carrying the numeric code; if even that cannot be issued
// the connection is closed.
func (s *Server) report(c *conn, err error) {
	code := proxyerr.CodeOf(err)
	s.stats.failures.Add(1)
	c.stopReading()

	log := c.log.With("code", int(code), "error", err)
	if code.Fatal() {
		log.Warn("closing connection without response")
		s.closeConn(c)
		return
	}

	log.Info("request failed")
	if werr := s.writeResponse(c, statusError, errorContentType, errorBody(code)); werr != nil {
		log.Warn("cannot write error response", "write_error", werr)
		s.closeConn(c)
	}
}
