// Package connmgr is the server's Connection Manager: it accepts TCP
// clients, allocates stable ClientIds, runs one reader goroutine per
// peer, and fans decoded packets out to subscribers.
//
// Subscribers are not held by strong reference indefinitely: each
// Mailbox tracks its own liveness (a bounded channel plus a closed
// flag) and a publisher that finds a mailbox full treats it as dead,
// marks it closed, and drops it from the subscriber list in that same
// publish. This reproduces the "weak reference, drop the
// subscriber on overflow, never block the reader" policy from the
// design without requiring true weak pointers: the Connection Manager
// is the only strong owner of a ClientRecord, and subscriptions never
// hold a reference back to the publisher.
package connmgr

import (
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"go-othello/proto"
	"go-othello/remote"
)

type ClientId = proto.ClientId

// Event is a packet tagged with the id of the client it came from (or,
// for a Disconnect, the id of the client that went away).
type Event struct {
	From   ClientId
	Packet proto.Packet
}

// mailboxCapacity bounds how far a subscriber may lag before it is
// treated as dead.
const mailboxCapacity = 64

// Mailbox is a bounded FIFO a subscriber drains from.
type Mailbox struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

func newMailbox() *Mailbox {
	return &Mailbox{ch: make(chan Event, mailboxCapacity)}
}

// C returns the channel to range/select over.
func (m *Mailbox) C() <-chan Event { return m.ch }

// Closed reports whether the publisher gave up on this mailbox.
func (m *Mailbox) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// try enqueues e without blocking. It returns false (and marks the
// mailbox closed) if the mailbox is full or already closed.
func (m *Mailbox) try(e Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	select {
	case m.ch <- e:
		return true
	default:
		m.closed = true
		close(m.ch)
		return false
	}
}

func (m *Mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
}

// ClientRecord is the Connection Manager's record of one live
// connection. It is owned exclusively by the Manager for the duration
// of the TCP session.
type ClientRecord struct {
	Id     ClientId
	Remote *remote.Remote

	mu   sync.RWMutex
	subs []*Mailbox
}

// Send targets a packet at this one client.
func (c *ClientRecord) Send(p proto.Packet) bool {
	return c.Remote.WritePacket(p)
}

func (c *ClientRecord) subscribe(mb *Mailbox) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, mb)
}

func (c *ClientRecord) publish(from ClientId, p proto.Packet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	live := c.subs[:0]
	for _, mb := range c.subs {
		if mb.Closed() {
			continue
		}
		mb.try(Event{From: from, Packet: p})
		if !mb.Closed() {
			live = append(live, mb)
		}
	}
	c.subs = live
}

// ErrServerFull is returned by Accept when no ClientId can be
// allocated (the live set spans the whole id space).
var ErrServerFull = errors.New("connmgr: no client ids available")

// Manager is the Connection Manager.
type Manager struct {
	maxClients  uint64
	readTimeout time.Duration

	mu         sync.Mutex
	clients    map[ClientId]*ClientRecord
	lastIssued ClientId

	globalMu sync.RWMutex
	global   []*Mailbox
}

// New creates a Manager. maxClients of 0 means unbounded; readTimeout
// is the per-read deadline reader goroutines arm (0 disables it). A
// reader that times out goes back to reading as long as its client is
// still registered; closing the listener does not stop the readers.
func New(maxClients uint64, readTimeout time.Duration) *Manager {
	return &Manager{
		maxClients:  maxClients,
		readTimeout: readTimeout,
		clients:     make(map[ClientId]*ClientRecord),
	}
}

// allocateId performs a linear search from lastIssued+1, wrapping
// through [1, MaxUint64), skipping ids already in use. Id 0 is
// reserved for the server and is never issued.
func (m *Manager) allocateId() (ClientId, bool) {
	if m.maxClients != 0 && uint64(len(m.clients)) >= m.maxClients {
		return 0, false
	}

	const maxId = ^ClientId(0) // exclusive upper bound of the id space

	start := m.lastIssued + 1
	if start == 0 || start == maxId {
		start = 1
	}

	id := start
	for {
		if _, taken := m.clients[id]; !taken {
			m.lastIssued = id
			return id, true
		}
		id++
		if id == maxId {
			id = 1
		}
		if id == start {
			return 0, false
		}
	}
}

// Accept takes ownership of conn, allocates a ClientId, sends
// ConnectSuccess, and spawns the reader goroutine. It returns the new
// client's id.
func (m *Manager) Accept(conn *net.TCPConn) (ClientId, error) {
	m.mu.Lock()
	id, ok := m.allocateId()
	if !ok {
		m.mu.Unlock()
		conn.Close()
		return 0, ErrServerFull
	}
	rec := &ClientRecord{Id: id, Remote: remote.New(conn)}
	m.clients[id] = rec
	m.mu.Unlock()

	if !rec.Send(proto.ConnectSuccess(id)) {
		m.removeClient(id)
		conn.Close()
		return 0, errors.New("connmgr: failed to send ConnectSuccess")
	}

	go m.readerLoop(rec)
	return id, nil
}

func (m *Manager) readerLoop(rec *ClientRecord) {
	for {
		if m.readTimeout > 0 {
			_ = rec.Remote.SetReadTimeout(m.readTimeout)
		}

		p, err := rec.Remote.ReadPacket()
		if err != nil {
			var ne interface{ Timeout() bool }
			if errors.As(err, &ne) && ne.Timeout() {
				if m.clientExists(rec.Id) {
					continue
				}
				return
			}

			m.handleDisconnect(rec)
			return
		}

		rec.publish(rec.Id, p)
		m.publishGlobal(rec.Id, p)
	}
}

func (m *Manager) clientExists(id ClientId) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.clients[id]
	return ok
}

// GetClient resolves id to its live ClientRecord. The record is only
// valid for as long as the client stays connected; callers must not
// retain it past a single use (treat it as a weak reference, not
// ownership) since the Manager alone decides when a record is
// removed, and only after that client's reader goroutine has exited.
func (m *Manager) GetClient(id ClientId) (*ClientRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.clients[id]
	return rec, ok
}

func (m *Manager) handleDisconnect(rec *ClientRecord) {
	disconnect := proto.Disconnect()
	rec.publish(rec.Id, disconnect)
	m.publishGlobal(rec.Id, disconnect)
	m.removeClient(rec.Id)
	rec.Remote.Close()
	log.Printf("connmgr: client %d disconnected", rec.Id)
}

func (m *Manager) removeClient(id ClientId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, id)
}

func (m *Manager) publishGlobal(from ClientId, p proto.Packet) {
	m.globalMu.Lock()
	defer m.globalMu.Unlock()
	live := m.global[:0]
	for _, mb := range m.global {
		if mb.Closed() {
			continue
		}
		mb.try(Event{From: from, Packet: p})
		if !mb.Closed() {
			live = append(live, mb)
		}
	}
	m.global = live
}

// Broadcast sends p to every currently live client.
func (m *Manager) Broadcast(p proto.Packet) {
	m.mu.Lock()
	recs := make([]*ClientRecord, 0, len(m.clients))
	for _, rec := range m.clients {
		recs = append(recs, rec)
	}
	m.mu.Unlock()

	for _, rec := range recs {
		rec.Send(p)
	}
}

// Send targets a packet at one client. It reports false if the client
// is not currently connected.
func (m *Manager) Send(id ClientId, p proto.Packet) bool {
	m.mu.Lock()
	rec, ok := m.clients[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return rec.Send(p)
}

// SubscribeAll registers a mailbox to receive every (id, packet) event
// published by any client.
func (m *Manager) SubscribeAll() *Mailbox {
	mb := newMailbox()
	m.globalMu.Lock()
	m.global = append(m.global, mb)
	m.globalMu.Unlock()
	return mb
}

// SubscribeTo registers a mailbox to receive packets from exactly one
// client. It reports false if that client is not currently connected.
func (m *Manager) SubscribeTo(id ClientId) (*Mailbox, bool) {
	m.mu.Lock()
	rec, ok := m.clients[id]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	mb := newMailbox()
	rec.subscribe(mb)
	return mb, true
}

// Unsubscribe stops delivery to mb (idempotent).
func (m *Manager) Unsubscribe(mb *Mailbox) {
	mb.close()
}

// ClientCount reports how many clients are currently connected.
func (m *Manager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}
