package server

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/ironsheep/image-proxy/internal/proxyerr"
)

// Outcome is the framer's verdict on the bytes buffered so far.
type Outcome int

const (
	// Incomplete means the header terminator has not arrived yet.
	Incomplete Outcome = iota
	// Unsupported means the method token matches no registered method.
	Unsupported
	// Malformed means the request line does not have the expected shape.
	Malformed
	// Recognized means a complete, well-formed request was parsed.
	Recognized
)

func (o Outcome) String() string {
	switch o {
	case Incomplete:
		return "incomplete"
	case Unsupported:
		return "unsupported"
	case Malformed:
		return "malformed"
	case Recognized:
		return "recognized"
	default:
		return "unknown"
	}
}

// Request is the parsed request line. All fields are copies and do not
// alias the connection buffer.
type Request struct {
	Method    string
	Version   string
	Operation string
	Parameter string
	URL       string
	// Proto is the optional token after the URL, e.g. "HTTP/1.1".
	Proto string
}

// methods lists the accepted request methods. Matching is exact.
var methods = []string{"GET"}

const urlMarker = "url:"

var (
	headerEnd = []byte("\r\n\r\n")
	lineEnd   = []byte("\r\n")
)

// classify inspects the accumulated request bytes. It is a pure function of
// buf, so the result does not depend on how the bytes were chunked.
// Unsupported and Malformed come with a *proxyerr.Error describing why.
func classify(buf []byte) (Request, Outcome, error) {
	end := bytes.Index(buf, headerEnd)
	if end < 0 {
		return Request{}, Incomplete, nil
	}
	line := buf[:end]
	if i := bytes.Index(line, lineEnd); i >= 0 {
		line = line[:i]
	}

	token, rest, hasRest := cutBlank(string(line))
	method, ok := lookupMethod(token)
	if !ok {
		return Request{}, Unsupported, proxyerr.Newf(proxyerr.UnsupportedMethod, "classify", "method %q", truncate(token))
	}
	if !hasRest {
		return Request{}, Malformed, proxyerr.Newf(proxyerr.MalformedRequest, "classify", "no query after %s", method)
	}

	req, err := parseQuery(strings.TrimLeft(rest, " \t"))
	if err != nil {
		return Request{}, Malformed, err
	}
	req.Method = method
	return req, Recognized, nil
}

// parseQuery splits "<version>/<operation>/<parameter> url:<url> [proto]".
func parseQuery(q string) (Request, error) {
	i := strings.Index(q, urlMarker)
	if i < 0 {
		return Request{}, proxyerr.Newf(proxyerr.MalformedRequest, "classify", "missing %q marker", urlMarker)
	}

	fields := strings.FieldsFunc(q[:i], func(r rune) bool {
		return r == '/' || r == ':' || r == ' ' || r == '\t'
	})
	if len(fields) != 3 {
		return Request{}, proxyerr.Newf(proxyerr.MalformedRequest, "classify",
			"want version/operation/parameter, got %d fields", len(fields))
	}

	url, proto, _ := cutBlank(q[i+len(urlMarker):])
	if url == "" {
		return Request{}, proxyerr.Newf(proxyerr.MalformedRequest, "classify", "empty url")
	}

	return Request{
		Version:   fields[0],
		Operation: fields[1],
		Parameter: fields[2],
		URL:       url,
		Proto:     firstField(proto),
	}, nil
}

func lookupMethod(token string) (string, bool) {
	for _, m := range methods {
		if token == m {
			return m, true
		}
	}
	return "", false
}

// cutBlank splits s around the first space or tab.
func cutBlank(s string) (before, after string, found bool) {
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

// firstField returns the first blank-delimited token of s, or "".
func firstField(s string) string {
	tok, _, _ := cutBlank(strings.TrimLeft(s, " \t"))
	return tok
}

// truncate keeps client-controlled text short enough to log. The cut backs
// up to a rune boundary so the result stays valid UTF-8.
func truncate(s string) string {
	const limit = 32
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
