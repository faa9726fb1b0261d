// Command acceptor runs one acceptor role instance.
package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/nbro/multi-paxos/internal/acceptor"
	"github.com/nbro/multi-paxos/internal/ballot"
	"github.com/nbro/multi-paxos/internal/config"
	"github.com/nbro/multi-paxos/internal/transport"
)

func main() {
	if len(os.Args) != 3 {
		log.Fatalln("usage: acceptor <role_uid> <config_path>")
	}
	uid, err := strconv.ParseUint(os.Args[1], 10, 32)
	if err != nil {
		log.Fatalf("invalid role_uid %q: %v", os.Args[1], err)
	}
	id := ballot.RoleID(uid)

	cfg, err := config.Load(os.Args[2])
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := log.New(os.Stderr, "[acceptor "+os.Args[1]+"] ", log.Lshortfile)

	t, err := transport.Join(cfg.Acceptors)
	if err != nil {
		log.Fatalf("joining acceptor group: %v", err)
	}
	defer t.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		<-sigCh
		os.Exit(0)
	}()

	a := acceptor.New(id, logger)
	for {
		m, err := t.Recv()
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			log.Fatalf("receiving: %v", err)
		}
		reply, ok := a.Handle(m)
		if !ok {
			continue
		}
		if err := t.Send(reply, cfg.Proposers); err != nil {
			logger.Printf("send failed: %v", err)
		}
	}
}
