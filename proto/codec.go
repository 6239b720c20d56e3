package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"go-othello/board"
)

// MaxPacketSize is the single maximum frame size on the wire,
// including the 2-byte length header.
const MaxPacketSize = 512

const headerSize = 2
const maxPayloadSize = MaxPacketSize - headerSize
const maxStringLen = 255

var (
	// ErrConnectionClosed is returned when a zero-byte read indicates
	// the peer has closed its side of the connection.
	ErrConnectionClosed = errors.New("proto: connection closed")
	// ErrTooLarge is returned when encoding a packet would exceed
	// MaxPacketSize, or a peer announces a frame larger than that.
	ErrTooLarge = errors.New("proto: packet exceeds maximum size")
	// ErrDisconnectNotEncodable is returned when attempting to encode
	// the local-only Disconnect packet.
	ErrDisconnectNotEncodable = errors.New("proto: Disconnect is local-only and cannot be encoded")
)

// DecodeError wraps a malformed-frame failure.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("proto: decode error: %s", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// IOError wraps a socket-level failure distinct from a clean close.
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("proto: io error: %s", e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

func decodeErr(format string, args ...interface{}) error {
	return &DecodeError{Err: fmt.Errorf(format, args...)}
}

// Encode serializes p into a wire frame: a 2-byte big-endian length
// header followed by the payload. It fails if p is the local-only
// Disconnect packet or if the encoded frame would exceed
// MaxPacketSize.
func Encode(p Packet) ([]byte, error) {
	if p.Kind == KindDisconnect {
		return nil, ErrDisconnectNotEncodable
	}

	var buf []byte
	buf = append(buf, byte(p.Kind))

	switch p.Kind {
	case KindConnectSuccess, KindRequestGame, KindDenyGame, KindAbandonGame, KindPass:
		buf = appendClientId(buf, p.ClientId)
	case KindLogin:
		var err error
		buf, err = appendString(buf, p.Text)
		if err != nil {
			return nil, err
		}
	case KindLoginAccept, KindRequestClientList:
		// no payload
	case KindLoginDeny:
		var err error
		buf, err = appendString(buf, p.Text)
		if err != nil {
			return nil, err
		}
	case KindClientList:
		if len(p.Clients) > 0xFFFF {
			return nil, ErrTooLarge
		}
		buf = appendUint16(buf, uint16(len(p.Clients)))
		for _, ce := range p.Clients {
			buf = appendClientId(buf, ce.Id)
			var err error
			buf, err = appendString(buf, ce.Name)
			if err != nil {
				return nil, err
			}
		}
	case KindStartGame:
		buf = appendClientId(buf, p.ClientId)
		buf = append(buf, pieceByte(p.Piece))
	case KindPlacePiece:
		buf = appendClientId(buf, p.ClientId)
		buf = append(buf, p.X, p.Y)
	case KindMessage:
		buf = appendClientId(buf, p.ClientId)
		var err error
		buf, err = appendString(buf, p.Text)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("proto: unknown packet kind %d", p.Kind)
	}

	if headerSize+len(buf) > MaxPacketSize {
		return nil, ErrTooLarge
	}

	frame := make([]byte, 0, headerSize+len(buf))
	frame = appendUint16(frame, uint16(len(buf)))
	frame = append(frame, buf...)
	return frame, nil
}

// Decode parses a single packet payload (the frame without its length
// header, as delimited by ReadFrom).
func Decode(payload []byte) (Packet, error) {
	if len(payload) < 1 {
		return Packet{}, decodeErr("empty payload")
	}
	kind := Kind(payload[0])
	rest := payload[1:]

	switch kind {
	case KindConnectSuccess, KindRequestGame, KindDenyGame, KindAbandonGame, KindPass:
		id, _, err := readClientId(rest)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Kind: kind, ClientId: id}, nil
	case KindLogin:
		s, _, err := readString(rest)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Kind: kind, Text: s}, nil
	case KindLoginAccept, KindRequestClientList:
		return Packet{Kind: kind}, nil
	case KindLoginDeny:
		s, _, err := readString(rest)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Kind: kind, Text: s}, nil
	case KindClientList:
		if len(rest) < 2 {
			return Packet{}, decodeErr("truncated ClientList count")
		}
		count := binary.BigEndian.Uint16(rest)
		rest = rest[2:]
		entries := make([]ClientEntry, 0, count)
		for i := uint16(0); i < count; i++ {
			id, n, err := readClientId(rest)
			if err != nil {
				return Packet{}, err
			}
			rest = rest[n:]
			name, n2, err := readString(rest)
			if err != nil {
				return Packet{}, err
			}
			rest = rest[n2:]
			entries = append(entries, ClientEntry{Id: id, Name: name})
		}
		return Packet{Kind: kind, Clients: entries}, nil
	case KindStartGame:
		id, n, err := readClientId(rest)
		if err != nil {
			return Packet{}, err
		}
		rest = rest[n:]
		if len(rest) < 1 {
			return Packet{}, decodeErr("truncated StartGame piece")
		}
		piece, err := pieceFromByte(rest[0])
		if err != nil {
			return Packet{}, err
		}
		return Packet{Kind: kind, ClientId: id, Piece: piece}, nil
	case KindPlacePiece:
		id, n, err := readClientId(rest)
		if err != nil {
			return Packet{}, err
		}
		rest = rest[n:]
		if len(rest) < 2 {
			return Packet{}, decodeErr("truncated PlacePiece coordinates")
		}
		return Packet{Kind: kind, ClientId: id, X: rest[0], Y: rest[1]}, nil
	case KindMessage:
		id, n, err := readClientId(rest)
		if err != nil {
			return Packet{}, err
		}
		rest = rest[n:]
		s, _, err := readString(rest)
		if err != nil {
			return Packet{}, err
		}
		return Packet{Kind: kind, ClientId: id, Text: s}, nil
	default:
		return Packet{}, decodeErr("unknown packet tag %d", kind)
	}
}

// WriteTo encodes p and writes the full frame to w in one call.
func WriteTo(w io.Writer, p Packet) error {
	frame, err := Encode(p)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return &IOError{Err: err}
	}
	return nil
}

// ReadFrom reads exactly one frame from r: a 2-byte length header
// followed by that many payload bytes, reserved into a buffer no
// larger than MaxPacketSize. A zero-byte read on the header, or an
// end of stream part-way through the payload, is reported as
// ErrConnectionClosed; a short read of the header or any other socket
// failure is wrapped in IOError; a malformed payload is wrapped in
// DecodeError.
func ReadFrom(r io.Reader) (Packet, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Packet{}, ErrConnectionClosed
		}
		return Packet{}, &IOError{Err: err}
	}

	length := binary.BigEndian.Uint16(header[:])
	if int(length) > maxPayloadSize {
		return Packet{}, ErrTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Packet{}, ErrConnectionClosed
		}
		return Packet{}, &IOError{Err: err}
	}

	return Decode(payload)
}

func appendUint16(buf []byte, v uint16) []byte {
	return append(buf, byte(v>>8), byte(v))
}

func appendClientId(buf []byte, id ClientId) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return append(buf, b[:]...)
}

func readClientId(b []byte) (ClientId, int, error) {
	if len(b) < 8 {
		return 0, 0, decodeErr("truncated ClientId")
	}
	return ClientId(binary.BigEndian.Uint64(b)), 8, nil
}

func appendString(buf []byte, s string) ([]byte, error) {
	if len(s) > maxStringLen {
		return nil, ErrTooLarge
	}
	buf = append(buf, byte(len(s)))
	return append(buf, s...), nil
}

func readString(b []byte) (string, int, error) {
	if len(b) < 1 {
		return "", 0, decodeErr("truncated string length")
	}
	n := int(b[0])
	if len(b) < 1+n {
		return "", 0, decodeErr("truncated string body")
	}
	return string(b[1 : 1+n]), 1 + n, nil
}

func pieceByte(p board.Piece) byte {
	if p == board.White {
		return 1
	}
	return 0
}

func pieceFromByte(b byte) (board.Piece, error) {
	switch b {
	case 0:
		return board.Black, nil
	case 1:
		return board.White, nil
	default:
		return board.Black, decodeErr("invalid piece byte %d", b)
	}
}
