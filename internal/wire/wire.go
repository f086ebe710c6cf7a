// Package wire frames JSON messages over a byte stream.
//
// One message is one JSON value; message boundaries are discovered by the
// decoder, not by a length prefix or delimiter. Bytes read past the end of a
// value are retained for the next Receive, so back-to-back messages arriving
// in a single read are never merged and a message split across reads is never
// truncated.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// ErrConnectionLost reports that the peer went away before or while a
// message was being read or written.
var ErrConnectionLost = errors.New("connection lost")

// MalformedError reports a message the channel could not decode: either
// bytes that can never form a JSON value, or a value of the wrong shape.
// Raw holds the dropped bytes when the stream had to be resynchronized;
// it is empty for shape errors, which drop nothing.
type MalformedError struct {
	Raw   []byte
	cause error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed message: %s", e.cause)
}

func (e *MalformedError) Unwrap() error { return e.cause }

// Channel sends and receives framed JSON messages over a connection.
//
// Receive must only be called from a single goroutine. Send is safe for
// concurrent use: each call holds the channel's write lock for exactly one
// write, so a pushed notification and a response never interleave their
// bytes on the wire.
type Channel struct {
	conn net.Conn
	dec  *json.Decoder

	wmu sync.Mutex
}

// NewChannel wraps a connection into a message channel.
func NewChannel(conn net.Conn) *Channel {
	return &Channel{
		conn: conn,
		dec:  json.NewDecoder(conn),
	}
}

// Send serializes v and writes it to the connection as a single write.
func (c *Channel) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("%w: write: %v", ErrConnectionLost, err)
	}

	return nil
}

// Receive blocks until one complete message has been decoded into v.
//
// It returns an error wrapping [ErrConnectionLost] when the peer closed the
// connection, possibly mid-message, and a [*MalformedError] when the stream
// holds bytes that can never decode into a message. Unparseable bytes are
// dropped to resynchronize the stream; a well-formed value of the wrong
// shape is skipped without touching the bytes after it, so messages behind
// it are still delivered.
func (c *Channel) Receive(v any) error {
	err := c.dec.Decode(v)
	if err == nil {
		return nil
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &MalformedError{Raw: c.reset(), cause: err}
	}

	// A type mismatch is valid JSON the decoder has already consumed in
	// full; the stream position is still a message boundary, so later
	// messages in the buffer must survive.
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &MalformedError{cause: err}
	}

	// Anything else is a transport-level read failure.
	return fmt.Errorf("%w: %v", ErrConnectionLost, err)
}

// reset drains the decoder's buffer and starts a fresh decoder on the
// connection, returning the dropped bytes for diagnostics.
func (c *Channel) reset() []byte {
	raw, _ := io.ReadAll(c.dec.Buffered())
	c.dec = json.NewDecoder(c.conn)
	return raw
}

// Close closes the underlying connection. A blocked Receive returns
// [ErrConnectionLost].
func (c *Channel) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the peer's address.
func (c *Channel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
