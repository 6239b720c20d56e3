package relay

import (
	"net"
	"sync"
	"testing"
	"time"

	"go-othello/board"
	"go-othello/proto"
	"go-othello/server/connmgr"
)

// fakeRecorder captures the single Record a finished match produces.
type fakeRecorder struct {
	mu  sync.Mutex
	got []Record
}

func (f *fakeRecorder) Append(rec Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, rec)
}

func (f *fakeRecorder) records() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Record, len(f.got))
	copy(out, f.got)
	return out
}

// greedyGame plays out a full game by always taking the
// lexicographically first legal move (passing when none is
// available), and returns the resulting sequence of (piece, pos)
// moves and passes in order. It is used purely to produce a
// deterministic, legally-terminating move sequence to drive the relay
// over the wire.
func greedyGame() []struct {
	piece board.Piece
	pass  bool
	pos   board.Pos
} {
	b := board.New()
	var moves []struct {
		piece board.Piece
		pass  bool
		pos   board.Pos
	}
	for !b.Decided() {
		turn := b.Turn()
		opts := b.Opportunities(turn)
		if len(opts) == 0 {
			b.Pass()
			moves = append(moves, struct {
				piece board.Piece
				pass  bool
				pos   board.Pos
			}{piece: turn, pass: true})
			continue
		}
		pos := opts[0]
		b.Place(pos, turn)
		moves = append(moves, struct {
			piece board.Piece
			pass  bool
			pos   board.Pos
		}{piece: turn, pos: pos})
	}
	return moves
}

func dialPair(t *testing.T) (*net.TCPConn, *net.TCPConn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		accepted <- conn
	}()

	dialed, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	server := <-accepted
	return server.(*net.TCPConn), dialed.(*net.TCPConn)
}

// harness wires up a connmgr.Manager with two accepted clients,
// draining each one's ConnectSuccess packet so the test can start
// with a clean slate.
type harness struct {
	mgr          *connmgr.Manager
	black, white connmgr.ClientId
	blackConn    *net.TCPConn
	whiteConn    *net.TCPConn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mgr := connmgr.New(0, 0)

	blackServer, blackClient := dialPair(t)
	black, err := mgr.Accept(blackServer)
	if err != nil {
		t.Fatalf("Accept black: %v", err)
	}
	blackClient.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := proto.ReadFrom(blackClient); err != nil {
		t.Fatalf("drain black ConnectSuccess: %v", err)
	}

	whiteServer, whiteClient := dialPair(t)
	white, err := mgr.Accept(whiteServer)
	if err != nil {
		t.Fatalf("Accept white: %v", err)
	}
	whiteClient.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := proto.ReadFrom(whiteClient); err != nil {
		t.Fatalf("drain white ConnectSuccess: %v", err)
	}

	return &harness{mgr: mgr, black: black, white: white, blackConn: blackClient, whiteConn: whiteClient}
}

func (h *harness) expect(t *testing.T, conn *net.TCPConn, kind proto.Kind) proto.Packet {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	p, err := proto.ReadFrom(conn)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if p.Kind != kind {
		t.Fatalf("got %+v, want kind %v", p, kind)
	}
	return p
}

func TestRelayForwardsLegalMove(t *testing.T) {
	h := newHarness(t)
	r := New(h.mgr, h.mgr, nil)
	r.StartGame(h.black, h.white, "black-player", "white-player")

	// Give the relay goroutine a moment to subscribe before the move is
	// sent, so delivery is deterministic.
	time.Sleep(20 * time.Millisecond)

	if err := proto.WriteTo(h.blackConn, proto.PlacePiece(h.white, 2, 3)); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got := h.expect(t, h.whiteConn, proto.KindPlacePiece)
	if got.ClientId != h.black || got.X != 2 || got.Y != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestRelayDropsOutOfTurnMove(t *testing.T) {
	h := newHarness(t)
	r := New(h.mgr, h.mgr, nil)
	r.StartGame(h.black, h.white, "black-player", "white-player")

	time.Sleep(20 * time.Millisecond)

	// White moves first even though Black is to move; must be dropped
	// silently, and the later legal Black move must still go through.
	if err := proto.WriteTo(h.whiteConn, proto.PlacePiece(h.black, 2, 2)); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if err := proto.WriteTo(h.blackConn, proto.PlacePiece(h.white, 2, 3)); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got := h.expect(t, h.whiteConn, proto.KindPlacePiece)
	if got.X != 2 || got.Y != 3 {
		t.Fatalf("expected the legal black move to be the only one forwarded, got %+v", got)
	}
}

func TestRelayDropsMismatchedOpponentId(t *testing.T) {
	h := newHarness(t)
	r := New(h.mgr, h.mgr, nil)
	r.StartGame(h.black, h.white, "black-player", "white-player")

	time.Sleep(20 * time.Millisecond)

	// Black names some id other than its actual opponent (white); must
	// be dropped, and the later correctly-addressed move must still go
	// through.
	if err := proto.WriteTo(h.blackConn, proto.PlacePiece(h.white+1, 2, 3)); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if err := proto.WriteTo(h.blackConn, proto.PlacePiece(h.white, 2, 3)); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got := h.expect(t, h.whiteConn, proto.KindPlacePiece)
	if got.X != 2 || got.Y != 3 {
		t.Fatalf("expected only the correctly-addressed move to be forwarded, got %+v", got)
	}
}

func TestRelayForwardsAbandon(t *testing.T) {
	h := newHarness(t)
	r := New(h.mgr, h.mgr, nil)
	r.StartGame(h.black, h.white, "black-player", "white-player")

	time.Sleep(20 * time.Millisecond)

	if err := proto.WriteTo(h.blackConn, proto.AbandonGame(0)); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got := h.expect(t, h.whiteConn, proto.KindAbandonGame)
	if got.ClientId != h.black {
		t.Fatalf("got %+v", got)
	}
}

func TestRelayRecordsHistoryOnDecidedGame(t *testing.T) {
	moves := greedyGame()

	h := newHarness(t)
	rec := &fakeRecorder{}
	r := New(h.mgr, h.mgr, rec)
	r.StartGame(h.black, h.white, "black-player", "white-player")
	time.Sleep(20 * time.Millisecond)

	for _, m := range moves {
		conn := h.blackConn
		opp := h.white
		if m.piece == board.White {
			conn = h.whiteConn
			opp = h.black
		}
		var p proto.Packet
		if m.pass {
			p = proto.Pass(opp)
		} else {
			p = proto.PlacePiece(opp, uint8(m.pos.X), uint8(m.pos.Y))
		}
		if err := proto.WriteTo(conn, p); err != nil {
			t.Fatalf("WriteTo: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.records()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	got := rec.records()
	if len(got) != 1 {
		t.Fatalf("expected exactly one recorded match, got %d", len(got))
	}
	r0 := got[0]
	if r0.BlackId != h.black || r0.WhiteId != h.white {
		t.Fatalf("got %+v", r0)
	}
	if r0.BlackName != "black-player" || r0.WhiteName != "white-player" {
		t.Fatalf("got %+v", r0)
	}
	if r0.MoveCount != len(moves) {
		t.Fatalf("expected move count %d, got %d", len(moves), r0.MoveCount)
	}
}
