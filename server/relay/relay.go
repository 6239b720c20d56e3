// Package relay implements the server's Game Relay: for each started
// match it owns the authoritative board, validates each move against
// the rules, forwards legal moves to the opponent, and tears the match
// down on abandon, disconnect, or a decided winner.
package relay

import (
	"log"
	"time"

	"go-othello/board"
	"go-othello/proto"
	"go-othello/server/connmgr"
)

// Sender is the subset of connmgr.Manager the relay needs to forward
// packets to either participant.
type Sender interface {
	Send(id connmgr.ClientId, p proto.Packet) bool
}

// Subscriber lets the relay listen to one participant's packets for
// the lifetime of a match.
type Subscriber interface {
	SubscribeTo(id connmgr.ClientId) (*connmgr.Mailbox, bool)
	Unsubscribe(mb *connmgr.Mailbox)
}

// Recorder is notified once a match concludes with a decided winner.
// A nil Recorder disables history recording.
type Recorder interface {
	Append(rec Record)
}

// Record mirrors history.Record without importing the history
// package directly, keeping the Game Relay ignorant of how (or
// whether) matches are persisted.
type Record struct {
	BlackId, WhiteId     connmgr.ClientId
	BlackName, WhiteName string
	Winner               board.Piece
	WhiteScore           int
	BlackScore           int
	MoveCount            int
	FinishedAt           time.Time
}

// Relay owns every in-progress match.
type Relay struct {
	sender     Sender
	subscriber Subscriber
	recorder   Recorder
}

// New creates a Relay. recorder may be nil to disable history
// recording.
func New(sender Sender, subscriber Subscriber, recorder Recorder) *Relay {
	return &Relay{sender: sender, subscriber: subscriber, recorder: recorder}
}

// StartGame begins a match between black and white in its own
// goroutine. It implements matchmaker.Starter.
func (r *Relay) StartGame(black, white connmgr.ClientId, blackName, whiteName string) {
	go r.run(black, white, blackName, whiteName)
}

// participant pairs a client id with the mailbox draining its events
// and the piece it plays.
type participant struct {
	id    connmgr.ClientId
	piece board.Piece
	mb    *connmgr.Mailbox
}

func (r *Relay) run(black, white connmgr.ClientId, blackName, whiteName string) {
	blackMb, ok := r.subscriber.SubscribeTo(black)
	if !ok {
		r.sender.Send(white, proto.AbandonGame(black))
		return
	}
	whiteMb, ok := r.subscriber.SubscribeTo(white)
	if !ok {
		r.subscriber.Unsubscribe(blackMb)
		r.sender.Send(black, proto.AbandonGame(white))
		return
	}
	defer r.subscriber.Unsubscribe(blackMb)
	defer r.subscriber.Unsubscribe(whiteMb)

	players := map[connmgr.ClientId]*participant{
		black: {id: black, piece: board.Black, mb: blackMb},
		white: {id: white, piece: board.White, mb: whiteMb},
	}
	opponentOf := func(id connmgr.ClientId) *participant {
		if id == black {
			return players[white]
		}
		return players[black]
	}

	b := board.New()
	moveCount := 0

	for {
		var ev connmgr.Event
		select {
		case ev = <-blackMb.C():
		case ev = <-whiteMb.C():
		}

		me, known := players[ev.From]
		if !known {
			continue
		}
		opp := opponentOf(ev.From)

		switch ev.Packet.Kind {
		case proto.KindPlacePiece:
			if ev.Packet.ClientId != opp.id {
				log.Printf("relay: client %d named opponent %d, want %d, ignoring", ev.From, ev.Packet.ClientId, opp.id)
				continue
			}
			if b.Turn() != me.piece {
				log.Printf("relay: client %d played out of turn", ev.From)
				continue
			}
			pos := board.Pos{X: int(ev.Packet.X), Y: int(ev.Packet.Y)}
			if !b.Place(pos, me.piece) {
				log.Printf("relay: client %d attempted an illegal move at %v", ev.From, pos)
				continue
			}
			moveCount++
			r.sender.Send(opp.id, proto.PlacePiece(me.id, ev.Packet.X, ev.Packet.Y))
			if b.Decided() {
				r.finish(b, black, white, blackName, whiteName, moveCount)
				return
			}

		case proto.KindPass:
			if ev.Packet.ClientId != opp.id {
				log.Printf("relay: client %d named opponent %d, want %d, ignoring", ev.From, ev.Packet.ClientId, opp.id)
				continue
			}
			if b.Turn() != me.piece {
				log.Printf("relay: client %d passed out of turn", ev.From)
				continue
			}
			b.Pass()
			moveCount++
			r.sender.Send(opp.id, proto.Pass(me.id))
			if b.Decided() {
				r.finish(b, black, white, blackName, whiteName, moveCount)
				return
			}

		case proto.KindAbandonGame:
			r.sender.Send(opp.id, proto.AbandonGame(me.id))
			return

		case proto.KindDisconnect:
			r.sender.Send(opp.id, proto.AbandonGame(me.id))
			return
		}
	}
}

func (r *Relay) finish(b *board.Board, black, white connmgr.ClientId, blackName, whiteName string, moveCount int) {
	winner, _ := b.Winner()
	whiteScore, blackScore := b.Score()
	log.Printf("relay: match between %d and %d decided, winner %s", black, white, winner)

	if r.recorder == nil {
		return
	}
	r.recorder.Append(Record{
		BlackId:    black,
		WhiteId:    white,
		BlackName:  blackName,
		WhiteName:  whiteName,
		Winner:     winner,
		WhiteScore: whiteScore,
		BlackScore: blackScore,
		MoveCount:  moveCount,
		FinishedAt: time.Now(),
	})
}
