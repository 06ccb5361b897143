package app

import (
	"context"
	"sync"

	logpkg "github.com/ipcluster/controller/pkg/log"
)

// listener is the shape both RPC servers share.
type listener interface {
	ListenAndServe(ctx context.Context, addr string) error
	Close()
}

// backendService is the lifecycle surface the group needs from the
// backend.
type backendService interface {
	Start(ctx context.Context) error
	Close() error
}

type groupMember struct {
	name string
	srv  listener
	addr string
}

// ServiceGroup composes the backend with the listener services. The
// backend starts strictly before any socket opens; shutdown runs in
// reverse order.
type ServiceGroup struct {
	backend   backendService
	listeners []groupMember
	logger    logpkg.Logger
}

// Run starts everything and blocks until ctx is cancelled, then shuts
// down gracefully. A listener failing to bind does not abort the others;
// it is logged, matching the run-until-signaled model.
func (g *ServiceGroup) Run(ctx context.Context) error {
	if err := g.backend.Start(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, m := range g.listeners {
		m := m
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.srv.ListenAndServe(ctx, m.addr); err != nil && ctx.Err() == nil {
				g.logger.Error("listener failed",
					logpkg.Str("service", m.name), logpkg.Err(err))
			}
		}()
	}

	<-ctx.Done()

	// Listeners close before the backend so no request races the store.
	for i := len(g.listeners) - 1; i >= 0; i-- {
		g.listeners[i].srv.Close()
	}
	wg.Wait()
	return g.backend.Close()
}
