package registry

import (
	"reflect"
	"testing"

	"go-othello/proto"
	"go-othello/server/connmgr"
)

type fakeSender struct {
	sent      map[connmgr.ClientId][]proto.Packet
	broadcast []proto.Packet
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[connmgr.ClientId][]proto.Packet)}
}

func (f *fakeSender) Send(id connmgr.ClientId, p proto.Packet) bool {
	f.sent[id] = append(f.sent[id], p)
	return true
}

func (f *fakeSender) Broadcast(p proto.Packet) {
	f.broadcast = append(f.broadcast, p)
}

func TestHappyLogin(t *testing.T) {
	s := newFakeSender()
	r := New(s)

	r.Handle(1, proto.Login("alice"))

	if got := s.sent[1]; len(got) != 1 || got[0].Kind != proto.KindLoginAccept {
		t.Fatalf("expected LoginAccept, got %v", got)
	}
	if len(s.broadcast) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(s.broadcast))
	}
	want := proto.ClientList([]proto.ClientEntry{{Id: 1, Name: "alice"}})
	if !reflect.DeepEqual(s.broadcast[0], want) {
		t.Fatalf("got %+v, want %+v", s.broadcast[0], want)
	}
}

func TestDuplicateNameIsDenied(t *testing.T) {
	s := newFakeSender()
	r := New(s)

	r.Handle(1, proto.Login("alice"))
	s.broadcast = nil
	r.Handle(2, proto.Login("alice"))

	got := s.sent[2]
	if len(got) != 1 || got[0].Kind != proto.KindLoginDeny || got[0].Text != "Name already in use." {
		t.Fatalf("got %+v", got)
	}
	if len(s.broadcast) != 0 {
		t.Fatal("expected no broadcast on denied login")
	}
	if !r.IsLoggedIn(1) || r.IsLoggedIn(2) {
		t.Fatal("registry state corrupted by denied login")
	}
}

func TestEmptyNameIsDenied(t *testing.T) {
	s := newFakeSender()
	r := New(s)

	r.Handle(1, proto.Login("   "))

	got := s.sent[1]
	if len(got) != 1 || got[0].Kind != proto.KindLoginDeny {
		t.Fatalf("got %+v", got)
	}
}

func TestDisconnectRemovesClientAndBroadcasts(t *testing.T) {
	s := newFakeSender()
	r := New(s)

	r.Handle(1, proto.Login("alice"))
	r.Handle(2, proto.Login("bob"))
	s.broadcast = nil

	r.Handle(1, proto.Disconnect())

	if r.IsLoggedIn(1) {
		t.Fatal("expected client 1 to be removed")
	}
	if len(s.broadcast) != 1 {
		t.Fatalf("expected one broadcast after disconnect, got %d", len(s.broadcast))
	}
	want := proto.ClientList([]proto.ClientEntry{{Id: 2, Name: "bob"}})
	if !reflect.DeepEqual(s.broadcast[0], want) {
		t.Fatalf("got %+v, want %+v", s.broadcast[0], want)
	}
}

func TestMessageForwardsWithOriginatorId(t *testing.T) {
	s := newFakeSender()
	r := New(s)

	r.Handle(1, proto.Login("alice"))
	r.Handle(2, proto.Login("bob"))
	s.sent[2] = nil

	r.Handle(1, proto.Message(2, "hi bob"))

	got := s.sent[2]
	if len(got) != 1 || got[0].Kind != proto.KindMessage || got[0].ClientId != 1 || got[0].Text != "hi bob" {
		t.Fatalf("got %+v", got)
	}
}

func TestRequestClientListReplies(t *testing.T) {
	s := newFakeSender()
	r := New(s)

	r.Handle(1, proto.Login("alice"))
	s.sent[1] = nil

	r.Handle(1, proto.RequestClientList())

	got := s.sent[1]
	if len(got) != 1 || got[0].Kind != proto.KindClientList {
		t.Fatalf("got %+v", got)
	}
}
