// Package remote wraps a single TCP connection into a duplex framed
// packet stream with independent read/write locking, so that a reader
// goroutine can block indefinitely on a read while unrelated senders
// remain free to write.
package remote

import (
	"net"
	"sync"
	"time"

	"go-othello/proto"
)

// Remote is a framed duplex connection over one TCP socket.
type Remote struct {
	conn *net.TCPConn

	readMu  sync.Mutex
	writeMu sync.Mutex
}

// New wraps conn. The caller retains ownership of conn only through
// Remote; Shutdown/Close should be used instead of closing conn
// directly so that both halves are torn down independently.
func New(conn *net.TCPConn) *Remote {
	return &Remote{conn: conn}
}

// RemoteAddr returns the address of the peer.
func (r *Remote) RemoteAddr() net.Addr {
	return r.conn.RemoteAddr()
}

// ReadPacket blocks the read half's mutex until a complete frame has
// been decoded, or a read error/timeout occurs. A closed connection
// is reported as proto.ErrConnectionClosed.
func (r *Remote) ReadPacket() (proto.Packet, error) {
	r.readMu.Lock()
	defer r.readMu.Unlock()

	return proto.ReadFrom(r.conn)
}

// WritePacket serializes and writes p, holding the write half's mutex
// for the duration. It returns true on success.
func (r *Remote) WritePacket(p proto.Packet) bool {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	return proto.WriteTo(r.conn, p) == nil
}

// SetReadTimeout arms a deadline on the read half so that a blocked
// reader goroutine wakes periodically to observe a shutdown request.
// A zero duration disables the deadline.
func (r *Remote) SetReadTimeout(d time.Duration) error {
	if d <= 0 {
		return r.conn.SetReadDeadline(time.Time{})
	}
	return r.conn.SetReadDeadline(time.Now().Add(d))
}

// SetWriteTimeout arms a deadline on the write half.
func (r *Remote) SetWriteTimeout(d time.Duration) error {
	if d <= 0 {
		return r.conn.SetWriteDeadline(time.Time{})
	}
	return r.conn.SetWriteDeadline(time.Now().Add(d))
}

// Shutdown closes the read half, then the write half, independently,
// so that a blocked reader unblocks with a closed-connection error.
// It does not wait for a write in progress, and it does not release
// the socket itself; Close does that.
func (r *Remote) Shutdown() error {
	_ = r.conn.CloseRead()
	return r.conn.CloseWrite()
}

// Close immediately closes the underlying connection.
func (r *Remote) Close() error {
	return r.conn.Close()
}
