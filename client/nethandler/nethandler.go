// Package nethandler is the client-side mirror of the server's
// Connection Manager and Login Registry: it dials the server, performs
// the Login handshake, runs a reader goroutine, and fans incoming
// packets out to local subscribers (the UI, or a test).
package nethandler

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go-othello/proto"
	"go-othello/remote"
)

// ErrLoginDenied is returned by Connect when the server rejects the
// requested login name. The reason string from the server is included
// in the error text.
var ErrLoginDenied = errors.New("nethandler: login denied")

// subscriptionCapacity bounds how far a subscriber may lag before it
// is dropped, mirroring server/connmgr's Mailbox policy.
const subscriptionCapacity = 64

// Subscription is a bounded FIFO of packets delivered to one listener.
type Subscription struct {
	ch     chan proto.Packet
	mu     sync.Mutex
	closed bool
}

func newSubscription() *Subscription {
	return &Subscription{ch: make(chan proto.Packet, subscriptionCapacity)}
}

// C returns the channel to range/select over.
func (s *Subscription) C() <-chan proto.Packet { return s.ch }

func (s *Subscription) try(p proto.Packet) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- p:
		return true
	default:
		s.closed = true
		close(s.ch)
		return false
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Closed reports whether this subscription was dropped, either
// because it overflowed or the connection went away.
func (s *Subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Handler owns one client connection to the server for the lifetime
// of a session.
type Handler struct {
	conn      *net.TCPConn
	remote    remoteWriter
	id        proto.ClientId
	loginName string

	mu        sync.Mutex
	subs      []*Subscription
	connected bool
}

// remoteWriter is satisfied by *remote.Remote; narrowed to an
// interface so Handler can be exercised against a fake in tests
// without opening a real socket.
type remoteWriter interface {
	WritePacket(p proto.Packet) bool
	ReadPacket() (proto.Packet, error)
	Close() error
}

// Connect dials address, performs the Login handshake with loginName,
// and starts the background reader. It returns ErrLoginDenied if the
// server rejects the name.
func Connect(address, loginName string, dialTimeout time.Duration) (*Handler, error) {
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("nethandler: dial %s: %w", address, err)
	}
	tcpConn := conn.(*net.TCPConn)

	h, err := newHandler(tcpConn, remote.New(tcpConn), loginName)
	if err != nil {
		tcpConn.Close()
		return nil, err
	}
	return h, nil
}

func newHandler(conn *net.TCPConn, rw remoteWriter, loginName string) (*Handler, error) {
	h := &Handler{conn: conn, remote: rw, loginName: loginName}

	hello, err := rw.ReadPacket()
	if err != nil {
		return nil, fmt.Errorf("nethandler: waiting for ConnectSuccess: %w", err)
	}
	if hello.Kind != proto.KindConnectSuccess {
		return nil, fmt.Errorf("nethandler: expected ConnectSuccess, got %s", hello.Kind)
	}
	h.id = hello.ClientId

	if !rw.WritePacket(proto.Login(loginName)) {
		return nil, errors.New("nethandler: failed to send Login")
	}

	reply, err := rw.ReadPacket()
	if err != nil {
		return nil, fmt.Errorf("nethandler: waiting for login reply: %w", err)
	}
	switch reply.Kind {
	case proto.KindLoginAccept:
	case proto.KindLoginDeny:
		return nil, fmt.Errorf("%w: %s", ErrLoginDenied, reply.Text)
	default:
		return nil, fmt.Errorf("nethandler: expected LoginAccept/LoginDeny, got %s", reply.Kind)
	}

	h.mu.Lock()
	h.connected = true
	h.mu.Unlock()

	go h.readLoop()
	return h, nil
}

func (h *Handler) readLoop() {
	for {
		p, err := h.remote.ReadPacket()
		if err != nil {
			h.mu.Lock()
			h.connected = false
			h.mu.Unlock()
			h.publish(proto.Disconnect())
			h.closeAll()
			return
		}
		h.publish(p)
	}
}

func (h *Handler) publish(p proto.Packet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	live := h.subs[:0]
	for _, s := range h.subs {
		if s.Closed() {
			continue
		}
		s.try(p)
		if !s.Closed() {
			live = append(live, s)
		}
	}
	h.subs = live
}

func (h *Handler) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		s.close()
	}
	h.subs = nil
}

// Id returns the ClientId the server assigned this connection.
func (h *Handler) Id() proto.ClientId { return h.id }

// LoginName returns the name this handler logged in with.
func (h *Handler) LoginName() string { return h.loginName }

// Connected reports whether the reader loop is still running, i.e.
// whether a Disconnect has not yet been observed on this connection.
func (h *Handler) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

// Send writes a packet to the server.
func (h *Handler) Send(p proto.Packet) bool {
	return h.remote.WritePacket(p)
}

// Subscribe registers a new listener for every packet (or the
// synthesized Disconnect) this handler receives from the server.
func (h *Handler) Subscribe() *Subscription {
	s := newSubscription()
	h.mu.Lock()
	h.subs = append(h.subs, s)
	h.mu.Unlock()
	return s
}

// Close shuts down the connection to the server.
func (h *Handler) Close() error {
	return h.remote.Close()
}
