// Package registry implements the server's Login Registry (Master):
// it enforces globally unique login names, answers client-list
// requests, and relays chat messages between logged-in clients.
package registry

import (
	"log"
	"sort"
	"strings"
	"sync"

	"go-othello/proto"
	"go-othello/server/connmgr"
)

// Sender is the subset of connmgr.Manager the registry needs. It is
// narrowed to an interface so tests can substitute a fake.
type Sender interface {
	Send(id connmgr.ClientId, p proto.Packet) bool
	Broadcast(p proto.Packet)
}

// Registry owns the name -> client mapping. Zero value is not usable;
// construct with New.
type Registry struct {
	sender Sender

	mu    sync.Mutex
	names map[connmgr.ClientId]string
}

// New creates a Registry that sends replies and broadcasts through
// sender.
func New(sender Sender) *Registry {
	return &Registry{
		sender: sender,
		names:  make(map[connmgr.ClientId]string),
	}
}

// IsLoggedIn reports whether id has successfully completed Login. Game
// related handlers (Match-Maker, Game Relay) consult this to silently
// drop game packets from a client that has not logged in yet.
func (r *Registry) IsLoggedIn(id connmgr.ClientId) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.names[id]
	return ok
}

// Name returns id's login name, or "" if it is not currently logged
// in.
func (r *Registry) Name(id connmgr.ClientId) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.names[id]
}

// Run drains mb for as long as it stays open, dispatching each event
// to the relevant handler. It is meant to be run in its own goroutine
// for the lifetime of the server.
func (r *Registry) Run(mb *connmgr.Mailbox) {
	for ev := range mb.C() {
		r.Handle(ev.From, ev.Packet)
	}
}

// Handle processes a single (from, packet) event. It is exported so
// that it can be exercised directly in tests without a live Mailbox.
func (r *Registry) Handle(from connmgr.ClientId, p proto.Packet) {
	switch p.Kind {
	case proto.KindLogin:
		r.handleLogin(from, p.Text)
	case proto.KindDisconnect:
		r.handleDisconnect(from)
	case proto.KindMessage:
		r.handleMessage(from, p.ClientId, p.Text)
	case proto.KindRequestClientList:
		r.sendClientList(from)
	}
}

func (r *Registry) handleLogin(from connmgr.ClientId, name string) {
	name = strings.TrimSpace(name)

	r.mu.Lock()
	if _, already := r.names[from]; already {
		r.mu.Unlock()
		log.Printf("registry: client %d sent a duplicate Login, ignoring", from)
		return
	}

	if name == "" {
		r.mu.Unlock()
		r.sender.Send(from, proto.LoginDeny("Name must not be empty."))
		return
	}

	for _, taken := range r.names {
		if taken == name {
			r.mu.Unlock()
			r.sender.Send(from, proto.LoginDeny("Name already in use."))
			return
		}
	}

	r.names[from] = name
	r.mu.Unlock()

	r.sender.Send(from, proto.LoginAccept())
	r.broadcastClientList()
}

func (r *Registry) handleDisconnect(from connmgr.ClientId) {
	r.mu.Lock()
	_, known := r.names[from]
	delete(r.names, from)
	r.mu.Unlock()

	if known {
		r.broadcastClientList()
	}
}

func (r *Registry) handleMessage(from, to connmgr.ClientId, text string) {
	if !r.IsLoggedIn(from) {
		log.Printf("registry: dropping Message from unauthenticated client %d", from)
		return
	}
	r.sender.Send(to, proto.Message(from, text))
}

func (r *Registry) sendClientList(to connmgr.ClientId) {
	r.sender.Send(to, proto.ClientList(r.snapshot()))
}

func (r *Registry) broadcastClientList() {
	r.sender.Broadcast(proto.ClientList(r.snapshot()))
}

func (r *Registry) snapshot() []proto.ClientEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]proto.ClientEntry, 0, len(r.names))
	for id, name := range r.names {
		entries = append(entries, proto.ClientEntry{Id: id, Name: name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Id < entries[j].Id })
	return entries
}
