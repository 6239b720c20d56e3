// Package proto implements the wire protocol: a closed, tagged union
// of packets exchanged between client and server, and a length-bounded
// binary codec for it.
//
// The vocabulary and the meaning of the ClientId field on each variant
// follow the protocol table: on the wire going out from the server the
// id is always the sender; on the wire going into the server it is
// always the intended target. Disconnect is never encoded — it is
// synthesized locally by the reader that observed a closed connection.
package proto

import "go-othello/board"

// Kind discriminates a Packet's variant.
type Kind uint8

const (
	KindConnectSuccess Kind = iota
	KindLogin
	KindLoginAccept
	KindLoginDeny
	KindRequestClientList
	KindClientList
	KindRequestGame
	KindDenyGame
	KindAbandonGame
	KindStartGame
	KindPlacePiece
	KindPass
	KindMessage
	KindDisconnect // local only, never encoded; see Encode
)

func (k Kind) String() string {
	switch k {
	case KindConnectSuccess:
		return "ConnectSuccess"
	case KindLogin:
		return "Login"
	case KindLoginAccept:
		return "LoginAccept"
	case KindLoginDeny:
		return "LoginDeny"
	case KindRequestClientList:
		return "RequestClientList"
	case KindClientList:
		return "ClientList"
	case KindRequestGame:
		return "RequestGame"
	case KindDenyGame:
		return "DenyGame"
	case KindAbandonGame:
		return "AbandonGame"
	case KindStartGame:
		return "StartGame"
	case KindPlacePiece:
		return "PlacePiece"
	case KindPass:
		return "Pass"
	case KindMessage:
		return "Message"
	case KindDisconnect:
		return "Disconnect"
	default:
		return "Unknown"
	}
}

// ClientId identifies a connection. 0 is reserved for the server and
// is never issued to a client.
type ClientId uint64

// ClientEntry is one row of a ClientList packet.
type ClientEntry struct {
	Id   ClientId
	Name string
}

// Packet is the single closed union of messages this protocol knows.
// Only the fields relevant to Kind are meaningful; see the per-variant
// constructors below.
type Packet struct {
	Kind     Kind
	ClientId ClientId      // see package doc for direction semantics
	Text     string        // Login name / LoginDeny reason / Message body
	Piece    board.Piece   // StartGame
	X, Y     uint8         // PlacePiece
	Clients  []ClientEntry // ClientList
}

func ConnectSuccess(id ClientId) Packet { return Packet{Kind: KindConnectSuccess, ClientId: id} }
func Login(name string) Packet          { return Packet{Kind: KindLogin, Text: name} }
func LoginAccept() Packet               { return Packet{Kind: KindLoginAccept} }
func LoginDeny(reason string) Packet    { return Packet{Kind: KindLoginDeny, Text: reason} }
func RequestClientList() Packet         { return Packet{Kind: KindRequestClientList} }
func ClientList(entries []ClientEntry) Packet {
	return Packet{Kind: KindClientList, Clients: entries}
}
func RequestGame(id ClientId) Packet  { return Packet{Kind: KindRequestGame, ClientId: id} }
func DenyGame(id ClientId) Packet     { return Packet{Kind: KindDenyGame, ClientId: id} }
func AbandonGame(id ClientId) Packet  { return Packet{Kind: KindAbandonGame, ClientId: id} }
func StartGame(id ClientId, piece board.Piece) Packet {
	return Packet{Kind: KindStartGame, ClientId: id, Piece: piece}
}
func PlacePiece(id ClientId, x, y uint8) Packet {
	return Packet{Kind: KindPlacePiece, ClientId: id, X: x, Y: y}
}
func Pass(id ClientId) Packet { return Packet{Kind: KindPass, ClientId: id} }
func Message(id ClientId, text string) Packet {
	return Packet{Kind: KindMessage, ClientId: id, Text: text}
}

// Disconnect is synthesized locally by a reader when its connection
// closes. It is never produced by Decode and Encode refuses it.
func Disconnect() Packet { return Packet{Kind: KindDisconnect} }
