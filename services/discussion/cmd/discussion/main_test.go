package main

import (
	"context"
	"errors"
	"testing"

	"github.com/example/experience-platform/services/discussion/internal/store"
)

type pingingStore struct {
	*store.InMemoryStore
	err   error
	calls int
}

func (p *pingingStore) Ping(context.Context) error {
	p.calls++
	return p.err
}

func TestReadyFunc(t *testing.T) {
	if readyFunc(store.NewInMemoryStore()) != nil {
		t.Fatal("in-memory store should not install a readiness check")
	}

	st := &pingingStore{InMemoryStore: store.NewInMemoryStore()}
	ready := readyFunc(st)
	if ready == nil {
		t.Fatal("expected a readiness check for a pinging store")
	}
	if err := ready(); err != nil {
		t.Fatalf("expected ready, got %v", err)
	}

	st.err = errors.New("connection refused")
	if err := ready(); err == nil {
		t.Fatal("expected not ready when ping fails")
	}
	if st.calls != 2 {
		t.Fatalf("expected the store to be pinged on every check, got %d", st.calls)
	}
}
