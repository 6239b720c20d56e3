// Entry point for the Othello terminal client: a small line-oriented
// console that connects to a server, logs in, and lets the user issue
// and answer challenges. It prints the moves the opponent plays but has
// no command to place a piece or pass.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go-othello/client/nethandler"
	"go-othello/config"
	"go-othello/proto"
)

const defaultClientConfName = "client.toml"

// session holds everything the console commands need to act on.
type session struct {
	handler *nethandler.Handler
	clients []proto.ClientEntry
	conf    config.ClientConf
}

func main() {
	confFile := flag.String("conf", defaultClientConfName, "Name of configuration file")
	flag.Parse()

	conf := config.DefaultClientConfig()
	if loaded, err := config.LoadClient(*confFile); err == nil {
		conf = *loaded
	} else if !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", *confFile, err)
	}

	s := &session{conf: conf}
	printHelp()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if s.dispatch(line) {
			break
		}
	}

	if s.handler != nil {
		s.handler.Close()
	}
}

func printHelp() {
	fmt.Println("help -- show this message")
	fmt.Println("start -- start a local game (not supported by this client)")
	fmt.Println("connect <address> (<login_name>) -- connect to the specified server")
	fmt.Println("challenge <name|id> -- challenge the named client, or accept its pending challenge")
	fmt.Println("deny <name|id> -- deny a pending challenge from the named client")
	fmt.Println("exit -- end the program")
}

// dispatch runs one console command. It returns true when the
// program should exit.
func (s *session) dispatch(line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch strings.ToLower(cmd) {
	case "help":
		printHelp()
	case "start":
		fmt.Println("local games are not supported; use connect instead")
	case "connect":
		s.cmdConnect(args)
	case "challenge":
		s.cmdChallenge(args)
	case "deny":
		s.cmdDeny(args)
	case "exit":
		return true
	default:
		fmt.Printf("unknown command %q; type help for a list\n", cmd)
	}
	return false
}

func (s *session) cmdConnect(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: connect <address> (<login_name>)")
		return
	}
	addr := args[0]

	name := s.conf.LoginName
	if len(args) >= 2 {
		name = args[1]
	}
	if name == "" {
		fmt.Println("no login name given and none configured; usage: connect <address> <login_name>")
		return
	}

	if s.handler != nil {
		s.handler.Close()
	}

	h, err := nethandler.Connect(addr, name, s.conf.DialTimeout())
	if err != nil {
		fmt.Printf("connect failed: %v\n", err)
		return
	}
	s.handler = h
	fmt.Printf("connected as %q (id %d)\n", name, h.Id())

	sub := h.Subscribe()
	go s.listen(sub)

	h.Send(proto.RequestClientList())
}

func (s *session) listen(sub *nethandler.Subscription) {
	for p := range sub.C() {
		switch p.Kind {
		case proto.KindClientList:
			s.clients = p.Clients
			fmt.Printf("\nclients online: %s\n> ", formatClients(p.Clients))
		case proto.KindRequestGame:
			fmt.Printf("\n%s has challenged you; type 'challenge %s' to accept or 'deny %s' to decline\n> ",
				s.nameOf(p.ClientId), s.nameOf(p.ClientId), s.nameOf(p.ClientId))
		case proto.KindDenyGame:
			fmt.Printf("\n%s declined the challenge\n> ", s.nameOf(p.ClientId))
		case proto.KindStartGame:
			fmt.Printf("\ngame started against %s, you are %s\n> ", s.nameOf(p.ClientId), p.Piece)
		case proto.KindPlacePiece:
			fmt.Printf("\n%s played (%d,%d)\n> ", s.nameOf(p.ClientId), p.X, p.Y)
		case proto.KindPass:
			fmt.Printf("\n%s passed\n> ", s.nameOf(p.ClientId))
		case proto.KindAbandonGame:
			fmt.Printf("\n%s left the game\n> ", s.nameOf(p.ClientId))
		case proto.KindMessage:
			fmt.Printf("\n%s: %s\n> ", s.nameOf(p.ClientId), p.Text)
		case proto.KindDisconnect:
			fmt.Print("\ndisconnected from server\n> ")
			return
		}
	}
}

func (s *session) nameOf(id proto.ClientId) string {
	for _, c := range s.clients {
		if c.Id == id {
			return c.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}

func formatClients(entries []proto.ClientEntry) string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = fmt.Sprintf("%s(#%d)", e.Name, e.Id)
	}
	return strings.Join(names, ", ")
}

func (s *session) resolve(arg string) (proto.ClientId, bool) {
	for _, c := range s.clients {
		if strings.EqualFold(c.Name, arg) {
			return c.Id, true
		}
	}
	if id, err := strconv.ParseUint(arg, 10, 64); err == nil {
		for _, c := range s.clients {
			if uint64(c.Id) == id {
				return c.Id, true
			}
		}
	}
	return 0, false
}

func (s *session) cmdChallenge(args []string) {
	if s.handler == nil {
		fmt.Println("not connected; use connect first")
		return
	}
	if len(args) != 1 {
		fmt.Println("usage: challenge <name|id>")
		return
	}
	id, ok := s.resolve(args[0])
	if !ok {
		fmt.Printf("no known client matches %q\n", args[0])
		return
	}
	s.handler.Send(proto.RequestGame(id))
}

func (s *session) cmdDeny(args []string) {
	if s.handler == nil {
		fmt.Println("not connected; use connect first")
		return
	}
	if len(args) != 1 {
		fmt.Println("usage: deny <name|id>")
		return
	}
	id, ok := s.resolve(args[0])
	if !ok {
		fmt.Printf("no known client matches %q\n", args[0])
		return
	}
	s.handler.Send(proto.DenyGame(id))
}
