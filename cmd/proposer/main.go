// Command proposer runs one proposer role instance.
package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nbro/multi-paxos/internal/ballot"
	"github.com/nbro/multi-paxos/internal/config"
	"github.com/nbro/multi-paxos/internal/proposer"
	"github.com/nbro/multi-paxos/internal/transport"
	"github.com/nbro/multi-paxos/internal/wire"
)

func main() {
	if len(os.Args) != 3 {
		log.Fatalln("usage: proposer <role_uid> <config_path>")
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

	logger := log.New(os.Stderr, "[proposer "+os.Args[1]+"] ", log.Lshortfile)

	t, err := transport.Join(cfg.Proposers)
	if err != nil {
		log.Fatalf("joining proposer group: %v", err)
	}
	defer t.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		<-sigCh
		os.Exit(0)
	}()

	p := proposer.New(id, cfg.Majority(), proposer.DefaultWindow, proposer.DefaultRetryInterval, logger)

	dispatch := func(msgs []wire.Message) {
		for _, m := range msgs {
			var dest = cfg.Acceptors
			if m.Tag == wire.Decision {
				dest = cfg.Learners
			}
			if err := t.Send(m, dest); err != nil {
				logger.Printf("send failed: %v", err)
			}
		}
	}

	for {
		if fireAt, ok := p.NextFireAt(); ok {
			t.SetReadDeadline(fireAt)
		} else {
			t.SetReadDeadline(time.Time{})
		}

		m, err := t.Recv()
		if err != nil {
			if transport.IsTimeout(err) {
				dispatch(p.Tick(time.Now()))
				continue
			}
			log.Fatalf("receiving: %v", err)
		}
		dispatch(p.Handle(m, time.Now()))
	}
}
