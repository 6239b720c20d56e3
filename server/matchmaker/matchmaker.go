// Package matchmaker implements the server's Match-Maker: it tracks
// outstanding game challenges between logged-in clients and, once two
// clients have challenged each other, hands the pair off to start a
// game.
package matchmaker

import (
	"log"
	"sync"

	"go-othello/board"
	"go-othello/proto"
	"go-othello/server/connmgr"
)

// Sender is the subset of connmgr.Manager the Match-Maker needs to
// reply to and notify clients.
type Sender interface {
	Send(id connmgr.ClientId, p proto.Packet) bool
}

// LoginChecker reports whether a client has completed Login, and
// resolves its display name. Game packets from a client that has not
// logged in are silently dropped.
type LoginChecker interface {
	IsLoggedIn(id connmgr.ClientId) bool
	Name(id connmgr.ClientId) string
}

// Starter is notified when two clients have mutually agreed to play.
// black is the original requester, per the deterministic color
// assignment rule.
type Starter interface {
	StartGame(black, white connmgr.ClientId, blackName, whiteName string)
}

// pair identifies an outstanding challenge: from requested a game
// against to.
type pair struct {
	From, To connmgr.ClientId
}

// MatchMaker owns the set of outstanding challenges.
type MatchMaker struct {
	sender  Sender
	logins  LoginChecker
	starter Starter

	mu      sync.Mutex
	pending map[pair]struct{}
}

// New creates a MatchMaker. starter may be nil and set later with
// SetStarter; while it is nil, a mutual challenge still sends
// StartGame to both clients but starts no match.
func New(sender Sender, logins LoginChecker, starter Starter) *MatchMaker {
	return &MatchMaker{
		sender:  sender,
		logins:  logins,
		starter: starter,
		pending: make(map[pair]struct{}),
	}
}

// SetStarter wires the component that begins a game once a mutual
// challenge is detected.
func (mm *MatchMaker) SetStarter(starter Starter) {
	mm.starter = starter
}

// Run drains mb for as long as it stays open, dispatching each event
// to Handle.
func (mm *MatchMaker) Run(mb *connmgr.Mailbox) {
	for ev := range mb.C() {
		mm.Handle(ev.From, ev.Packet)
	}
}

// Handle processes a single (from, packet) event.
func (mm *MatchMaker) Handle(from connmgr.ClientId, p proto.Packet) {
	switch p.Kind {
	case proto.KindRequestGame:
		mm.handleRequest(from, p.ClientId)
	case proto.KindDenyGame:
		mm.handleDeny(from, p.ClientId)
	case proto.KindDisconnect:
		mm.handleDisconnect(from)
	}
}

func (mm *MatchMaker) handleRequest(from, to connmgr.ClientId) {
	if from == to {
		log.Printf("matchmaker: client %d challenged itself, ignoring", from)
		return
	}
	if !mm.logins.IsLoggedIn(from) || !mm.logins.IsLoggedIn(to) {
		log.Printf("matchmaker: dropping RequestGame from %d to %d, not logged in", from, to)
		return
	}

	mm.mu.Lock()

	reverse := pair{From: to, To: from}
	if _, mutual := mm.pending[reverse]; mutual {
		delete(mm.pending, reverse)
		delete(mm.pending, pair{From: from, To: to})
		mm.mu.Unlock()

		// to issued the original challenge, so it takes Black.
		mm.startGame(to, from)
		return
	}

	forward := pair{From: from, To: to}
	if _, already := mm.pending[forward]; already {
		mm.mu.Unlock()
		return
	}
	mm.pending[forward] = struct{}{}
	mm.mu.Unlock()

	mm.sender.Send(to, proto.RequestGame(from))
}

func (mm *MatchMaker) startGame(black, white connmgr.ClientId) {
	mm.sender.Send(black, proto.StartGame(white, board.Black))
	mm.sender.Send(white, proto.StartGame(black, board.White))
	if mm.starter != nil {
		mm.starter.StartGame(black, white, mm.logins.Name(black), mm.logins.Name(white))
	}
}

func (mm *MatchMaker) handleDeny(from, to connmgr.ClientId) {
	mm.mu.Lock()
	_, hadForward := mm.pending[pair{From: to, To: from}]
	delete(mm.pending, pair{From: to, To: from})
	delete(mm.pending, pair{From: from, To: to})
	mm.mu.Unlock()

	if hadForward {
		mm.sender.Send(to, proto.DenyGame(from))
	}
}

// handleDisconnect removes every pending challenge mentioning from and
// notifies the other endpoint of each one that from had initiated or
// received.
func (mm *MatchMaker) handleDisconnect(from connmgr.ClientId) {
	mm.mu.Lock()
	var notify []connmgr.ClientId
	for p := range mm.pending {
		switch from {
		case p.From:
			notify = append(notify, p.To)
			delete(mm.pending, p)
		case p.To:
			notify = append(notify, p.From)
			delete(mm.pending, p)
		}
	}
	mm.mu.Unlock()

	for _, id := range notify {
		mm.sender.Send(id, proto.DenyGame(from))
	}
}
