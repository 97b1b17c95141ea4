package server

import (
	"context"

	"github.com/ironsheep/image-proxy/internal/fetch"
	"github.com/ironsheep/image-proxy/internal/imaging"
	"github.com/ironsheep/image-proxy/internal/proxyerr"
)

// SupportedVersion is the only accepted request version.
const SupportedVersion = "v1"

// OperationTable resolves an operation name to its transform.
type OperationTable interface {
	Lookup(name string) (imaging.Operation, bool)
}

// Result is a successful dispatch: the body to send and its content type.
type Result struct {
	ContentType string
	Body        []byte
}

// Dispatcher runs a recognized request against the operation table and the
// remote fetcher.
type Dispatcher struct {
	ops      OperationTable
	fetcher  fetch.Fetcher
	maxField int
}

// NewDispatcher returns a dispatcher. Request fields longer than maxField
// bytes are rejected before any other work.
func NewDispatcher(ops OperationTable, fetcher fetch.Fetcher, maxField int) *Dispatcher {
	return &Dispatcher{ops: ops, fetcher: fetcher, maxField: maxField}
}

// Dispatch validates req, fetches its URL and applies the operation.
//
// Parameters:
//   - ctx: Cancels the remote fetch, e.g. on server shutdown.
//   - req: A Recognized request from the framer.
//
// Returns:
//   - *Result: The transformed image and its "image/<format>" content type.
//   - error: A *proxyerr.Error whose code selects the diagnostic body.
//
// # Order of Checks
//
//  1. Field lengths against the configured maximum (IncorrectData).
//  2. Version must be SupportedVersion (IncorrectData).
//  3. Operation lookup, exact and case-sensitive (IncorrectData).
//  4. Parameter validation with the operation's own parser (IncorrectData).
//  5. Remote fetch (Fetch).
//  6. Decode, transform and encode (Transform). Images whose header exceeds
//     the pixel budget fail here without being decoded.
//
// Steps 1-4 never touch the network, so a bad request never costs a
// download.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	for _, f := range []struct{ name, value string }{
		{"version", req.Version},
		{"operation", req.Operation},
		{"parameter", req.Parameter},
		{"url", req.URL},
	} {
		if len(f.value) > d.maxField {
			return nil, proxyerr.Newf(proxyerr.IncorrectData, "dispatch", "%s longer than %d bytes", f.name, d.maxField)
		}
	}

	if req.Version != SupportedVersion {
		return nil, proxyerr.Newf(proxyerr.IncorrectData, "dispatch", "unsupported version %q", req.Version)
	}
	op, ok := d.ops.Lookup(req.Operation)
	if !ok {
		return nil, proxyerr.Newf(proxyerr.IncorrectData, "dispatch", "unknown operation %q", req.Operation)
	}
	if err := op.Validate(req.Parameter); err != nil {
		return nil, proxyerr.New(proxyerr.IncorrectData, req.Operation, err)
	}

	data, err := d.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return nil, proxyerr.New(proxyerr.Fetch, "fetch", err)
	}

	out, format, err := op.Apply(req.Parameter, data)
	if err != nil {
		return nil, proxyerr.New(proxyerr.Transform, req.Operation, err)
	}
	if format == "" {
		return nil, proxyerr.Newf(proxyerr.Transform, req.Operation, "no output format")
	}

	return &Result{ContentType: "image/" + format, Body: out}, nil
}
