// Package server implements the image proxy's connection handling.
//
// The server accepts raw TCP connections, accumulates request bytes until a
// blank line ends the header, classifies the request line, dispatches the
// named image operation and writes a minimal HTTP/1.1 response before closing
// the connection. One request is served per connection.
//
// # Wire Format
//
// Requests are a single line followed by an empty line:
//
//	GET v1/resize/100x100 url:http://example.com/a.jpg\r\n\r\n
//
// The text before "url:" is split on '/' and ':' into exactly three fields:
// version, operation and parameter. The URL runs from the marker to the next
// whitespace. Responses are:
//
//	HTTP/1.1 <status>\r\n
//	Content-Type: <type>\r\n
//	Content-Length: <n>\r\n
//	\r\n
//	<body>
//
// Success is 200 with an image/<format> body. Every failure that leaves the
// socket usable is a 500 text/html response whose body is "Error No: <code>"
// with a code from package proxyerr.
//
// # Event Loop
//
// All connection state is owned by a single event-loop goroutine. Reader,
// writer, acceptor and dispatch goroutines never touch a connection directly;
// they post events (accepted, read, dispatched, written) and the loop applies
// them one at a time. After each chunk a reader parks until the loop tells it
// to continue, so no read is processed once a request has been recognized.
//
// With Workers set to zero the fetch and transform run inline on the loop,
// serializing every connection behind them. With Workers > 0 they run on a
// bounded pool and report back with a dispatched event.
//
// # Buffer Ownership
//
// A connection exclusively owns its request buffer until reading stops. A
// response's header buffer comes from a BufferPool and, together with the
// body, belongs to the in-flight write until the write completes. The loop
// then returns the header to the pool exactly once and closes the socket,
// whether the write succeeded or not.
//
// # Usage
//
//	srv := server.New(cfg, dispatcher, logger)
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Stop(context.Background())
package server
