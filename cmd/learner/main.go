// Command learner runs one learner role instance. It writes each decided
// value to standard output, one per line, with no other content; all
// diagnostics go to standard error instead.
package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/nbro/multi-paxos/internal/ballot"
	"github.com/nbro/multi-paxos/internal/config"
	"github.com/nbro/multi-paxos/internal/learner"
	"github.com/nbro/multi-paxos/internal/transport"
)

func main() {
	if len(os.Args) != 3 {
		log.Fatalln("usage: learner <role_uid> <config_path>")
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

	logger := log.New(os.Stderr, "[learner "+os.Args[1]+"] ", log.Lshortfile)

	t, err := transport.Join(cfg.Learners)
	if err != nil {
		log.Fatalf("joining learner group: %v", err)
	}
	defer t.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		<-sigCh
		os.Exit(0)
	}()

	l := learner.New(id, os.Stdout, logger)

	if err := t.Send(l.StartupRequest(), cfg.Learners); err != nil {
		logger.Printf("send failed: %v", err)
	}

	for {
		m, err := t.Recv()
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			log.Fatalf("receiving: %v", err)
		}
		for _, resp := range l.Handle(m) {
			if err := t.Send(resp, cfg.Learners); err != nil {
				logger.Printf("send failed: %v", err)
			}
		}
	}
}
