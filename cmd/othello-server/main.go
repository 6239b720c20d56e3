// Entry point for the Othello relay server.
package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"golang.org/x/sync/errgroup"

	"go-othello/config"
	"go-othello/history"
	"go-othello/server/connmgr"
	"go-othello/server/matchmaker"
	"go-othello/server/registry"
	"go-othello/server/relay"
)

// historyRecorder adapts a *history.Log to relay.Recorder, translating
// between the relay's transport-agnostic Record and the on-disk
// history.Record.
type historyRecorder struct {
	log *history.Log
}

func (h historyRecorder) Append(rec relay.Record) {
	h.log.Append(history.Record{
		BlackId:    rec.BlackId,
		WhiteId:    rec.WhiteId,
		BlackName:  rec.BlackName,
		WhiteName:  rec.WhiteName,
		Winner:     rec.Winner,
		WhiteScore: rec.WhiteScore,
		BlackScore: rec.BlackScore,
		MoveCount:  rec.MoveCount,
		FinishedAt: rec.FinishedAt,
	})
}

const defaultConfName = "server.toml"

func main() {
	confFile := flag.String("conf", defaultConfName, "Name of configuration file")
	dumpConf := flag.Bool("dump-config", false, "Dump default configuration")
	flag.Parse()
	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(1)
	}

	if *dumpConf {
		enc := toml.NewEncoder(os.Stdout)
		if err := enc.Encode(config.DefaultConfig()); err != nil {
			log.Fatal("failed to encode default configuration: ", err)
		}
		return
	}

	conf, err := config.Load(*confFile)
	if err != nil {
		if os.IsNotExist(err) && *confFile == defaultConfName {
			d := config.DefaultConfig()
			conf = &d
		} else {
			log.Fatal(err)
		}
	}

	if err := run(conf); err != nil {
		log.Fatal(err)
	}
}

func run(conf *config.Conf) error {
	hist, err := history.Open(conf.History.File)
	if err != nil {
		return err
	}
	defer hist.Close()

	mgr := connmgr.New(uint64(conf.MaxClients), conf.ReadTimeout())

	reg := registry.New(mgr)
	rel := relay.New(mgr, mgr, historyRecorder{log: hist})
	mm := matchmaker.New(mgr, reg, rel)

	ln, err := net.Listen("tcp", conf.Addr())
	if err != nil {
		return err
	}
	defer ln.Close()
	log.Printf("listening on %s", conf.Addr())

	var g errgroup.Group

	registryFeed := mgr.SubscribeAll()
	g.Go(func() error {
		reg.Run(registryFeed)
		return nil
	})

	matchFeed := mgr.SubscribeAll()
	g.Go(func() error {
		mm.Run(matchFeed)
		return nil
	})

	g.Go(func() error {
		return acceptLoop(ln, mgr)
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Print("shutting down")
	ln.Close()
	mgr.Unsubscribe(registryFeed)
	mgr.Unsubscribe(matchFeed)

	return g.Wait()
}

func acceptLoop(ln net.Listener, mgr *connmgr.Manager) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && !ne.Timeout() {
				return nil
			}
			continue
		}

		tcpConn, ok := conn.(*net.TCPConn)
		if !ok {
			conn.Close()
			continue
		}

		id, err := mgr.Accept(tcpConn)
		if err != nil {
			log.Printf("failed to accept %s: %v", conn.RemoteAddr(), err)
			continue
		}
		log.Printf("accepted client %d from %s", id, conn.RemoteAddr())
	}
}
