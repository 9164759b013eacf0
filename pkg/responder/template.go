package responder

// Template is a complete canned HTTP/1.1 response, status line through body.
type Template string

const (
	// WellFormed carries one 5 byte chunk followed by the terminating zero-size chunk.
	WellFormed Template = "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/plain\r\n" +
		"transfer-encoding: chunked\r\n" +
		"\r\n" +
		"5\r\n" +
		"hello\r\n" +
		"0\r\n" +
		"\r\n"

	// Truncated declares a second 5 byte chunk but delivers a single byte of it
	// and never sends the zero-size chunk.
	Truncated Template = "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/plain\r\n" +
		"transfer-encoding: chunked\r\n" +
		"\r\n" +
		"5\r\n" +
		"hello\r\n" +
		"5\r\n" +
		"h"
)

// Bytes returns a fresh copy, callers may not mutate the template through it.
func (t Template) Bytes() []byte {
	return []byte(t)
}

func (t Template) Name() string {
	switch t {
	case WellFormed:
		return "well-formed"
	case Truncated:
		return "truncated"
	default:
		return "custom"
	}
}
