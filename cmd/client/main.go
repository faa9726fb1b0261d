// Command client reads integer values from standard input, one per
// line, and submits each to the proposer group.
package main

import (
	"bufio"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nbro/multi-paxos/internal/ballot"
	"github.com/nbro/multi-paxos/internal/client"
	"github.com/nbro/multi-paxos/internal/config"
	"github.com/nbro/multi-paxos/internal/transport"
	"github.com/nbro/multi-paxos/internal/wire"
)

// tickInterval is how often the retransmission backoff is checked; it is
// unrelated to the per-submission backoff itself (client.RetryInterval
// and friends), only how finely it is polled.
const tickInterval = 250 * time.Millisecond

func main() {
	if len(os.Args) != 3 {
		log.Fatalln("usage: client <role_uid> <config_path>")
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

	logger := log.New(os.Stderr, "[client "+os.Args[1]+"] ", log.Lshortfile)

	// The client has no incoming multicast group of its own (nothing
	// addresses one to it); it joins the learner group instead, purely
	// to observe DECISION traffic and know when to stop retransmitting.
	t, err := transport.Join(cfg.Learners)
	if err != nil {
		log.Fatalf("joining learner group to observe decisions: %v", err)
	}
	defer t.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)

	recvCh := make(chan wire.Message)
	go func() {
		for {
			m, err := t.Recv()
			if err != nil {
				return
			}
			recvCh <- m
		}
	}()

	linesCh := make(chan int64)
	go func() {
		defer close(linesCh)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			v, err := strconv.ParseInt(line, 10, 64)
			if err != nil {
				logger.Printf("skipping invalid input line %q: %v", line, err)
				continue
			}
			linesCh <- v
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	c := client.New(id, logger)
	stdinOpen := true
	for stdinOpen {
		select {
		case v, ok := <-linesCh:
			if !ok {
				stdinOpen = false
				continue
			}
			m := c.Submit(v, time.Now())
			if err := t.Send(m, cfg.Proposers); err != nil {
				logger.Printf("send failed: %v", err)
			}
		case m := <-recvCh:
			c.HandleDecision(m)
		case <-ticker.C:
			for _, m := range c.Tick(time.Now()) {
				if err := t.Send(m, cfg.Proposers); err != nil {
					logger.Printf("send failed: %v", err)
				}
			}
		case <-sigCh:
			os.Exit(0)
		}
	}
}
