package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/PabloGalante/singlechat/internal/domain"
	"github.com/PabloGalante/singlechat/internal/observability"
)

// ErrClosed is returned for events submitted after Close.
var ErrClosed = errors.New("conversation closed")

// event runs against the owned state and returns the state to keep.
type event struct {
	ctx   context.Context
	apply func(ctx context.Context, state domain.State) domain.State
	done  chan struct{}
}

// Conversation owns the single conversation state. One goroutine handles
// submitted events to completion, one at a time, and persists the head
// whenever an event advances it.
type Conversation struct {
	svc   *Service
	heads domain.HeadStore

	events    chan event
	quit      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once

	// state is only touched by the run goroutine.
	state domain.State
}

// Start loads the persisted head and starts the owner goroutine.
func Start(ctx context.Context, svc *Service, heads domain.HeadStore) (*Conversation, error) {
	head, err := heads.LoadHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("load conversation head: %w", err)
	}

	c := &Conversation{
		svc:    svc,
		heads:  heads,
		events: make(chan event),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
		state:  domain.State{Head: head},
	}

	observability.LoggerFromContext(ctx).Info("conversation loaded", "head", c.state.HeadString())

	go c.run()
	return c, nil
}

func (c *Conversation) run() {
	defer close(c.exited)

	for {
		select {
		case <-c.quit:
			return
		case ev := <-c.events:
			next := ev.apply(ev.ctx, c.state)
			if next.Version != c.state.Version {
				c.persistHead(ev.ctx, next)
			}
			c.state = next
			close(ev.done)
		}
	}
}

// persistHead failures are logged only. The messages are already stored and
// the in-memory head stays correct, so only a restart would lose the advance.
func (c *Conversation) persistHead(ctx context.Context, next domain.State) {
	log := observability.LoggerFromContext(ctx).With("head", next.HeadString(), "version", next.Version)

	if err := c.heads.SaveHead(context.WithoutCancel(ctx), next.Head); err != nil {
		log.Error("failed to persist conversation head", "error", err)
		return
	}
	log.Debug("conversation head persisted")
}

// submit hands apply to the owner and waits for it to finish. If ctx ends
// while waiting, submit returns early but an accepted event still runs.
func (c *Conversation) submit(ctx context.Context, apply func(context.Context, domain.State) domain.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev := event{ctx: ctx, apply: apply, done: make(chan struct{})}

	select {
	case c.events <- ev:
	case <-c.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ev.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendMessage runs one user turn against the current state.
func (c *Conversation) SendMessage(ctx context.Context, content string) (Turn, error) {
	var (
		turn    Turn
		turnErr error
	)
	err := c.submit(ctx, func(ctx context.Context, state domain.State) domain.State {
		var next domain.State
		next, turn, turnErr = c.svc.HandleUserTurn(ctx, content, state)
		return next
	})
	if err != nil {
		return Turn{}, err
	}
	return turn, turnErr
}

// History returns the whole conversation, oldest first.
func (c *Conversation) History(ctx context.Context) ([]domain.Message, error) {
	var (
		msgs    []domain.Message
		histErr error
	)
	err := c.submit(ctx, func(ctx context.Context, state domain.State) domain.State {
		msgs, histErr = c.svc.GetHistory(ctx, state)
		return state
	})
	if err != nil {
		return nil, err
	}
	return msgs, histErr
}

// State returns a snapshot of the owned state.
func (c *Conversation) State(ctx context.Context) (domain.State, error) {
	var snapshot domain.State
	err := c.submit(ctx, func(_ context.Context, state domain.State) domain.State {
		snapshot = state
		return state
	})
	return snapshot, err
}

// Close stops the owner goroutine after the event in progress, if any.
func (c *Conversation) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
	<-c.exited
}
