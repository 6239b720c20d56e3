package proto

import (
	"bytes"
	"reflect"
	"testing"

	"go-othello/board"
)

func roundTripAll() []Packet {
	return []Packet{
		ConnectSuccess(1),
		Login("alice"),
		LoginAccept(),
		LoginDeny("Name already in use."),
		RequestClientList(),
		ClientList([]ClientEntry{{Id: 1, Name: "alice"}, {Id: 2, Name: "bob"}}),
		RequestGame(2),
		DenyGame(2),
		AbandonGame(2),
		StartGame(2, board.Black),
		StartGame(2, board.White),
		PlacePiece(2, 2, 3),
		Pass(2),
		Message(2, "gg"),
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	for _, p := range roundTripAll() {
		frame, err := Encode(p)
		if err != nil {
			t.Fatalf("Encode(%v): %v", p, err)
		}

		decoded, err := ReadFrom(bytes.NewReader(frame))
		if err != nil {
			t.Fatalf("ReadFrom after Encode(%v): %v", p, err)
		}

		if !reflect.DeepEqual(decoded, p) {
			t.Fatalf("decode(encode(%v)) = %v, want original", p, decoded)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, p := range roundTripAll() {
		frame, err := Encode(p)
		if err != nil {
			t.Fatalf("Encode(%v): %v", p, err)
		}

		var buf bytes.Buffer
		if err := WriteTo(&buf, p); err != nil {
			t.Fatalf("WriteTo(%v): %v", p, err)
		}
		if !bytes.Equal(buf.Bytes(), frame) {
			t.Fatalf("WriteTo produced different bytes than Encode for %v", p)
		}

		decoded, err := ReadFrom(bytes.NewReader(frame))
		if err != nil {
			t.Fatalf("ReadFrom(%x): %v", frame, err)
		}
		reencoded, err := Encode(decoded)
		if err != nil {
			t.Fatalf("Encode(%v): %v", decoded, err)
		}
		if !bytes.Equal(reencoded, frame) {
			t.Fatalf("encode(decode(%x)) = %x, want original bytes", frame, reencoded)
		}
	}
}

func TestEncodeRejectsDisconnect(t *testing.T) {
	if _, err := Encode(Disconnect()); err != ErrDisconnectNotEncodable {
		t.Fatalf("expected ErrDisconnectNotEncodable, got %v", err)
	}
}

func TestEncodeRejectsOversizedMessage(t *testing.T) {
	huge := make([]byte, 1000)
	for i := range huge {
		huge[i] = 'x'
	}
	_, err := Encode(Message(1, string(huge)))
	if err != ErrTooLarge {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestReadFromReportsConnectionClosedOnEOF(t *testing.T) {
	_, err := ReadFrom(bytes.NewReader(nil))
	if err != ErrConnectionClosed {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestReadFromReportsDecodeErrorOnGarbage(t *testing.T) {
	// A well-formed length header claiming one byte of payload, whose
	// tag byte does not correspond to any known Kind.
	frame := []byte{0x00, 0x01, 0xFF}
	_, err := ReadFrom(bytes.NewReader(frame))
	if _, ok := err.(*DecodeError); !ok {
		t.Fatalf("expected *DecodeError, got %v (%T)", err, err)
	}
}

func TestReadFromReportsTooLargeOnAnnouncedOversizedFrame(t *testing.T) {
	var header [2]byte
	header[0] = 0xFF
	header[1] = 0xFF
	_, err := ReadFrom(bytes.NewReader(header[:]))
	if err != ErrTooLarge {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}
