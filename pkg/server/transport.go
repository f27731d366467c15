package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/aeolun/medius/pkg/protocol"
)

var errNotWritable = errors.New("transport not writable")

// transport is the byte side of a connection. Write never blocks: a
// transport that cannot take more data reports itself not writable and the
// connection defers its flush.
type transport interface {
	Write(frames []*protocol.Frame) error
	Writable() bool
	Close() error
	RemoteAddr() net.Addr
	Kind() string
}

// streamTransport writes to a net.Conn from its own goroutine. One batch
// may be in flight at a time.
type streamTransport struct {
	conn         net.Conn
	kind         string
	writeTimeout time.Duration
	out          chan []byte
	onError      func(error)

	mu     sync.Mutex
	closed bool
}

func newStreamTransport(conn net.Conn, kind string, writeTimeout time.Duration, onError func(error)) *streamTransport {
	t := &streamTransport{
		conn:         conn,
		kind:         kind,
		writeTimeout: writeTimeout,
		out:          make(chan []byte, 1),
		onError:      onError,
	}
	go t.writeLoop()
	return t
}

func (t *streamTransport) writeLoop() {
	failed := false
	for b := range t.out {
		if failed {
			continue
		}
		if t.writeTimeout > 0 {
			_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
		}
		if _, err := t.conn.Write(b); err != nil {
			failed = true
			t.onError(err)
		}
	}
	t.conn.Close()
}

func (t *streamTransport) Write(frames []*protocol.Frame) error {
	var buf []byte
	for _, f := range frames {
		var err error
		if buf, err = protocol.AppendFrame(buf, f); err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return net.ErrClosed
	}
	select {
	case t.out <- buf:
		return nil
	default:
		return errNotWritable
	}
}

func (t *streamTransport) Writable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && len(t.out) < cap(t.out)
}

// Close lets the writer drain what was handed to it, then closes the conn
func (t *streamTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.out)
	return nil
}

// abort closes the conn immediately so a blocked reader returns
func (t *streamTransport) abort() {
	t.Close()
	t.conn.Close()
}

func (t *streamTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }
func (t *streamTransport) Kind() string         { return t.kind }

// datagramTransport sends frames to one peer of a shared packet conn,
// packed into datagrams of at most maxLen bytes
type datagramTransport struct {
	pc      net.PacketConn
	addr    net.Addr
	maxLen  int
	onClose func()

	once sync.Once
}

func (t *datagramTransport) Write(frames []*protocol.Frame) error {
	datagrams, err := protocol.PackDatagrams(frames, t.maxLen)
	if err != nil {
		return err
	}
	for _, d := range datagrams {
		if _, err := t.pc.WriteTo(d, t.addr); err != nil {
			return err
		}
	}
	return nil
}

func (t *datagramTransport) Writable() bool { return true }

func (t *datagramTransport) Close() error {
	t.once.Do(func() {
		if t.onClose != nil {
			t.onClose()
		}
	})
	return nil
}

func (t *datagramTransport) RemoteAddr() net.Addr { return t.addr }
func (t *datagramTransport) Kind() string         { return "udp" }
