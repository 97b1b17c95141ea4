package server

import (
	"github.com/ironsheep/image-proxy/internal/proxyerr"
)

// append adds chunk to the request buffer. Growth is exact: the buffer holds
// precisely the bytes received so far, whatever the chunk boundaries. Going
// past maxBuf is an Allocation failure and leaves buf untouched.
func (c *conn) append(chunk []byte) error {
	need := len(c.buf) + len(chunk)
	if need > c.maxBuf {
		return proxyerr.Newf(proxyerr.Allocation, "append", "request exceeds %d bytes", c.maxBuf)
	}
	if need > cap(c.buf) {
		size := 2 * cap(c.buf)
		if size < need {
			size = need
		}
		if size > c.maxBuf {
			size = c.maxBuf
		}
		grown := make([]byte, len(c.buf), size)
		copy(grown, c.buf)
		c.buf = grown
	}
	c.buf = append(c.buf, chunk...)
	return nil
}
