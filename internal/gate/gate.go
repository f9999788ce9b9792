// Package gate is the single-slot rendezvous between a mission that wants
// to run a side-effecting tool and the operator who approves it.
package gate

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrRequestOutstanding = errors.New("an authorization request is already outstanding")
	ErrNoPendingRequest   = errors.New("no authorization request is pending")
)

type Decision int

const (
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// Request describes the action awaiting approval.
type Request struct {
	MissionID string    `json:"missionId"`
	Agent     string    `json:"agent"`
	Tool      string    `json:"tool,omitempty"`
	Task      string    `json:"task"`
	CreatedAt time.Time `json:"createdAt"`
}

type pending struct {
	req    Request
	answer chan Decision
}

// Gate holds at most one outstanding request.
type Gate struct {
	mu        sync.Mutex
	current   *pending
	observers []func(Request)
}

func New() *Gate {
	return &Gate{}
}

// OnRequest registers fn to be called (on the requesting goroutine) each time
// a request is published.
func (g *Gate) OnRequest(fn func(Request)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, fn)
}

// Await publishes req and blocks until the operator answers. There is no
// timeout; ctx only ends the wait on shutdown, and counts as a denial.
func (g *Gate) Await(ctx context.Context, req Request) (Decision, error) {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	p := &pending{req: req, answer: make(chan Decision, 1)}

	g.mu.Lock()
	if g.current != nil {
		g.mu.Unlock()
		return Denied, ErrRequestOutstanding
	}
	g.current = p
	observers := append([]func(Request){}, g.observers...)
	g.mu.Unlock()

	for _, fn := range observers {
		fn(req)
	}

	select {
	case d := <-p.answer:
		return d, nil
	case <-ctx.Done():
		g.mu.Lock()
		if g.current == p {
			g.current = nil
		}
		g.mu.Unlock()
		return Denied, ctx.Err()
	}
}

// Pending returns the outstanding request, if any.
func (g *Gate) Pending() (Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return Request{}, false
	}
	return g.current.req, true
}

func (g *Gate) Allow() error {
	_, err := g.Resolve(Allowed)
	return err
}

func (g *Gate) Deny() error {
	_, err := g.Resolve(Denied)
	return err
}

// Resolve answers the outstanding request with d and returns the request it
// answered.
func (g *Gate) Resolve(d Decision) (Request, error) {
	g.mu.Lock()
	p := g.current
	g.current = nil
	g.mu.Unlock()

	if p == nil {
		return Request{}, ErrNoPendingRequest
	}
	p.answer <- d
	return p.req, nil
}
