// Package quicnet carries the lobby's framed-JSON protocol over QUIC. Each
// client connection maps to one QUIC connection whose first bidirectional
// stream is the message stream, exposed as a net.Conn.
package quicnet

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"github.com/quic-go/quic-go"
)

// ALPN is the application protocol negotiated for lobby connections.
const ALPN = "arcade-lobby"

// Listener accepts QUIC connections and yields their message streams. It
// implements net.Listener so the lobby server can serve TCP and QUIC alike.
type Listener struct {
	ql *quic.Listener
}

// Listen starts a QUIC listener on the address. The TLS config is cloned
// and pinned to the lobby ALPN.
func Listen(addr string, tlsConf *tls.Config) (*Listener, error) {
	tlsConf = tlsConf.Clone()
	tlsConf.NextProtos = []string{ALPN}

	ql, err := quic.ListenAddr(addr, tlsConf, nil)
	if err != nil {
		return nil, fmt.Errorf("listen quic: %w", err)
	}

	return &Listener{ql: ql}, nil
}

// Accept blocks until a client connects and opens its message stream.
func (l *Listener) Accept() (net.Conn, error) {
	for {
		conn, err := l.ql.Accept(context.Background())
		if err != nil {
			// Closed listeners report like any other closed net.Listener
			// so Server.Serve shuts down cleanly.
			if errors.Is(err, quic.ErrServerClosed) {
				return nil, net.ErrClosed
			}
			return nil, err
		}

		stream, err := conn.AcceptStream(context.Background())
		if err != nil {
			// The client connected but never opened its stream; drop it
			// and keep accepting.
			conn.CloseWithError(0, "no message stream")
			continue
		}

		return newStreamConn(conn, stream), nil
	}
}

func (l *Listener) Close() error {
	return l.ql.Close()
}

func (l *Listener) Addr() net.Addr {
	return l.ql.Addr()
}

// Dial connects to a lobby QUIC listener and opens the message stream.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config) (net.Conn, error) {
	tlsConf = tlsConf.Clone()
	tlsConf.NextProtos = []string{ALPN}

	conn, err := quic.DialAddr(ctx, addr, tlsConf, nil)
	if err != nil {
		return nil, fmt.Errorf("dial quic: %w", err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "open message stream")
		return nil, fmt.Errorf("open message stream: %w", err)
	}

	return newStreamConn(conn, stream), nil
}

// streamConn adapts a QUIC stream to the net.Conn interface. Closing the
// conn closes the whole QUIC connection, since the stream is its only
// payload.
type streamConn struct {
	*quic.Stream
	conn *quic.Conn
}

var _ net.Conn = (*streamConn)(nil)

func newStreamConn(conn *quic.Conn, stream *quic.Stream) *streamConn {
	return &streamConn{
		Stream: stream,
		conn:   conn,
	}
}

func (c *streamConn) Close() error {
	c.Stream.CancelRead(0)
	_ = c.Stream.Close()
	return c.conn.CloseWithError(0, "")
}

func (c *streamConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *streamConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
