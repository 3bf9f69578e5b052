package cloud

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// headerTerminator separates the HTTP header block from the body.
var headerTerminator = []byte("\r\n\r\n")

// headerEnd returns the index of the first body byte, or -1 if the header
// block is not yet complete.
func headerEnd(buf []byte) int {
	i := bytes.Index(buf, headerTerminator)
	if i < 0 {
		return -1
	}
	return i + len(headerTerminator)
}

// parseStatusLine extracts the status code from "HTTP/1.<minor> <status>".
// The absence of a parseable status is a hard failure for the call.
func parseStatusLine(buf []byte) (int, error) {
	var minor, status int
	if n, err := fmt.Sscanf(string(buf), "HTTP/1.%d %d", &minor, &status); err != nil || n != 2 {
		return 0, ErrNoStatusLine
	}
	return status, nil
}

// headerValue finds a header's value in the raw header block,
// case-insensitively. Returns "" if absent.
func headerValue(headers []byte, name string) string {
	lower := strings.ToLower(string(headers))
	needle := strings.ToLower(name) + ":"

	idx := strings.Index(lower, "\r\n"+needle)
	if idx < 0 {
		return ""
	}
	start := idx + 2 + len(needle)

	rest := string(headers[start:])
	if end := strings.Index(rest, "\r\n"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// contentLength extracts the Content-Length header, if present.
func contentLength(headers []byte) (int, bool) {
	v := headerValue(headers, "Content-Length")
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// isChunked reports whether the response uses chunked transfer encoding.
func isChunked(headers []byte) bool {
	return strings.EqualFold(headerValue(headers, "Transfer-Encoding"), "chunked")
}

// decodeChunked reassembles a chunked body.
//
// Segments are "<hex-size>\r\n<data>\r\n" terminated by a zero-size chunk.
// Malformed chunk headers or truncated data stop decoding at the last good
// point; whatever was decoded so far is returned rather than failing the
// whole response.
func decodeChunked(body []byte) []byte {
	var out []byte

	for {
		lineEnd := bytes.Index(body, []byte("\r\n"))
		if lineEnd < 0 {
			return out
		}

		sizeField := string(body[:lineEnd])
		// Ignore chunk extensions after ';'.
		if semi := strings.IndexByte(sizeField, ';'); semi >= 0 {
			sizeField = sizeField[:semi]
		}

		size, err := strconv.ParseUint(strings.TrimSpace(sizeField), 16, 32)
		if err != nil {
			return out
		}
		if size == 0 {
			return out
		}

		dataStart := lineEnd + 2
		dataEnd := dataStart + int(size)
		if dataEnd > len(body) {
			// Truncated chunk: stop at the last complete one.
			return out
		}

		out = append(out, body[dataStart:dataEnd]...)

		// Skip the trailing CRLF after the chunk data if present.
		body = body[dataEnd:]
		if bytes.HasPrefix(body, []byte("\r\n")) {
			body = body[2:]
		}
	}
}
