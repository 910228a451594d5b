package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// stopper is one component that must be stopped on exit.
type stopper struct {
	name string
	fn   func(context.Context) error
}

// waitDrain holds the process for d so load balancers see the failing
// readiness probe. A second interrupt cuts the wait short.
func waitDrain(L log.Logger, d time.Duration) {
	ctx := context.Background()
	L.Info(ctx, "draining", "drain_seconds", d.Seconds())

	force := make(chan os.Signal, 1)
	signal.Notify(force, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(force)

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		L.Info(ctx, "drain period complete")
	case <-force:
		L.Warn(ctx, "second signal received, skipping drain")
	}
}

// stopAll stops components in order. Each gets an equal slice of budget and
// a failure does not prevent the rest from stopping.
func stopAll(L log.Logger, budget time.Duration, stoppers []stopper) int {
	if len(stoppers) == 0 {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	slice := budget / time.Duration(len(stoppers))

	failed := 0
	for _, s := range stoppers {
		cctx, ccancel := context.WithTimeout(ctx, slice)
		if err := s.fn(cctx); err != nil {
			failed++
			L.Error(ctx, err, "component shutdown failed", "component", s.name)
		}
		ccancel()
	}
	return failed
}
