// Package cloud implements the event HTTP client that posts security
// events and pairing requests to the cloud functions endpoint.
//
// The client is deliberately primitive. Every call opens a fresh TLS
// connection and closes it after one exchange: the upstream has been seen
// delivering residual bytes roughly ten seconds after a reused connection
// closes, which corrupts the next read on a pooled connection. A single
// mutex allows only one exchange in flight system-wide.
//
// The request is assembled by hand into a fixed-size buffer (POST, Host,
// Content-Type, device key header, Content-Length, Connection: close) and
// the response is read in two phases with bounded retries: first until the
// header terminator is seen, then until Content-Length is satisfied.
// Chunked transfer encoding is decoded segment by segment; a malformed
// chunk header stops decoding at the last good point instead of failing
// the whole response.
//
// There is no retry here. A non-2xx status or transport failure is
// reported as "event not delivered" and the event dispatcher decides when
// to try again.
package cloud
