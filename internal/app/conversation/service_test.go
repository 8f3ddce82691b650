package conversation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/singlechat/internal/adapters/storage/kv"
	"github.com/PabloGalante/singlechat/internal/adapters/storage/kvserver"
	"github.com/PabloGalante/singlechat/internal/adapters/storage/memory"
	"github.com/PabloGalante/singlechat/internal/app/conversation"
	"github.com/PabloGalante/singlechat/internal/app/history"
	"github.com/PabloGalante/singlechat/internal/domain"
)

// faultyStore wraps a real store and fails selected calls.
type faultyStore struct {
	domain.MessageStore
	failPutAt int // 1-based; 0 never fails
	getErr    error
	puts      int
	gets      int
}

func (s *faultyStore) Put(ctx context.Context, msg domain.Message) (domain.PutResult, error) {
	s.puts++
	if s.puts == s.failPutAt {
		return domain.PutResult{}, domain.NewStoreError("put", "", domain.ErrUnavailable, errors.New("connection refused"))
	}
	return s.MessageStore.Put(ctx, msg)
}

func (s *faultyStore) Get(ctx context.Context, id domain.MessageID) (domain.Message, error) {
	s.gets++
	if s.getErr != nil {
		return domain.Message{}, s.getErr
	}
	return s.MessageStore.Get(ctx, id)
}

// echoCompleter replies "re: <last content>" unless err is set.
type echoCompleter struct {
	err   error
	calls int
	seen  [][]domain.Message
}

func (c *echoCompleter) Complete(ctx context.Context, msgs []domain.Message) (string, error) {
	c.calls++
	c.seen = append(c.seen, msgs)
	if c.err != nil {
		return "", c.err
	}
	if len(msgs) == 0 {
		return "hi", nil
	}
	return "re: " + msgs[len(msgs)-1].Content, nil
}

type fixture struct {
	backend   *memory.Backend
	store     *faultyStore
	completer *echoCompleter
	svc       *conversation.Service
}

func newFixture() *fixture {
	backend := memory.NewBackend()
	store := &faultyStore{MessageStore: kv.NewClient(kv.NewLocalTransport(kvserver.New(backend)))}
	completer := &echoCompleter{}
	return &fixture{
		backend:   backend,
		store:     store,
		completer: completer,
		svc:       conversation.NewService(store, history.NewReconstructor(store, 0), completer),
	}
}

func TestFirstTurnFromEmptyConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	state, turn, err := f.svc.HandleUserTurn(ctx, "hello", domain.State{})
	require.NoError(t, err)

	assert.Equal(t, uint64(2), state.Version)
	require.NotNil(t, state.Head)
	assert.Equal(t, turn.Assistant.ID, *state.Head)

	assert.Nil(t, turn.User.Parent)
	assert.NotEmpty(t, turn.User.ID)
	require.NotNil(t, turn.Assistant.Parent)
	assert.Equal(t, turn.User.ID, *turn.Assistant.Parent)
	assert.Equal(t, "re: hello", turn.Assistant.Content)

	msgs, err := f.svc.GetHistory(ctx, state)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Nil(t, msgs[0].Parent)
	assert.Equal(t, turn.Messages(), msgs)
}

func TestCompletionSeesHistoryEndingInUserMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	state, _, err := f.svc.HandleUserTurn(ctx, "one", domain.State{})
	require.NoError(t, err)
	_, _, err = f.svc.HandleUserTurn(ctx, "two", state)
	require.NoError(t, err)

	require.Len(t, f.completer.seen, 2)
	last := f.completer.seen[1]
	require.Len(t, last, 3)
	assert.Equal(t, []string{"one", "re: one", "two"}, []string{last[0].Content, last[1].Content, last[2].Content})
}

func TestChainIntegrityOverManyTurns(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	const turns = 6
	var state domain.State
	for i := 0; i < turns; i++ {
		var err error
		state, _, err = f.svc.HandleUserTurn(ctx, string(rune('a'+i)), state)
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(2*turns), state.Version)

	msgs, err := f.svc.GetHistory(ctx, state)
	require.NoError(t, err)
	require.Len(t, msgs, 2*turns)

	assert.Nil(t, msgs[0].Parent)
	for i, m := range msgs {
		if i%2 == 0 {
			assert.Equal(t, domain.RoleUser, m.Role)
		} else {
			assert.Equal(t, domain.RoleAssistant, m.Role)
		}
		if i > 0 {
			require.NotNil(t, m.Parent)
			assert.Equal(t, msgs[i-1].ID, *m.Parent)
		}
	}
	assert.Equal(t, 2*turns, f.backend.Len())
}

func TestGetHistoryOnEmptyConversation(t *testing.T) {
	f := newFixture()

	msgs, err := f.svc.GetHistory(context.Background(), domain.State{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Zero(t, f.store.gets)
}

func TestSameTurnIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	s1, t1, err := f.svc.HandleUserTurn(ctx, "hello", domain.State{})
	require.NoError(t, err)
	s2, t2, err := f.svc.HandleUserTurn(ctx, "hello", domain.State{})
	require.NoError(t, err)

	assert.Equal(t, t1.User.ID, t2.User.ID)
	assert.Equal(t, t1.Assistant.ID, t2.Assistant.ID)
	assert.Equal(t, s1.Head, s2.Head)
	assert.Equal(t, 2, f.backend.Len())
}

func TestTurnFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture)
		stage     domain.TurnStage
		kind      error
		headMoves bool
		stored    int
	}{
		{
			name:   "user persist fails",
			setup:  func(f *fixture) { f.store.failPutAt = 1 },
			stage:  domain.StagePersistUser,
			kind:   domain.ErrUnavailable,
			stored: 0,
		},
		{
			name: "history lookup fails",
			setup: func(f *fixture) {
				f.store.getErr = domain.NewStoreError("get", "x", domain.ErrNotFound, nil)
			},
			stage:     domain.StageReconstructHistory,
			kind:      domain.ErrNotFound,
			headMoves: true,
			stored:    1,
		},
		{
			name: "completion transport fails",
			setup: func(f *fixture) {
				f.completer.err = domain.NewCompletionError("fake", domain.ErrTransportFailure, errors.New("timeout"))
			},
			stage:     domain.StageCompletion,
			kind:      domain.ErrTransportFailure,
			headMoves: true,
			stored:    1,
		},
		{
			name: "completion reply malformed",
			setup: func(f *fixture) {
				f.completer.err = domain.NewCompletionError("fake", domain.ErrMalformedCompletion, errors.New("no text"))
			},
			stage:     domain.StageCompletion,
			kind:      domain.ErrMalformedCompletion,
			headMoves: true,
			stored:    1,
		},
		{
			name:      "assistant persist fails",
			setup:     func(f *fixture) { f.store.failPutAt = 2 },
			stage:     domain.StagePersistAssistant,
			kind:      domain.ErrUnavailable,
			headMoves: true,
			stored:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)
			before := domain.State{}

			state, turn, err := f.svc.HandleUserTurn(context.Background(), "hello", before)
			require.Error(t, err)

			assert.Equal(t, tt.stage, domain.StageOf(err))
			assert.ErrorIs(t, err, &domain.TurnError{Stage: tt.stage})
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, conversation.Turn{}, turn)
			assert.Equal(t, tt.stored, f.backend.Len())

			if !tt.headMoves {
				assert.Equal(t, before, state)
				return
			}
			userID := domain.DeriveID(domain.RoleUser, "hello", nil)
			require.NotNil(t, state.Head)
			assert.Equal(t, userID, *state.Head)
			assert.Equal(t, uint64(1), state.Version)
		})
	}
}

func TestLookupFailureIsNotRetried(t *testing.T) {
	f := newFixture()
	f.store.getErr = domain.NewStoreError("get", "x", domain.ErrNotFound, nil)

	_, err := f.svc.GetHistory(context.Background(), domain.State{Head: domain.IDPtr("x")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, f.store.gets)
}

func TestRecoveryAfterCompletionFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	state, _, err := f.svc.HandleUserTurn(ctx, "first", domain.State{})
	require.NoError(t, err)

	f.completer.err = domain.NewCompletionError("fake", domain.ErrTransportFailure, nil)
	state, _, err = f.svc.HandleUserTurn(ctx, "lost reply", state)
	require.Error(t, err)

	msgs, err := f.svc.GetHistory(ctx, state)
	require.NoError(t, err)
	require.Len(t, msgs, 3, "history ends in the unanswered user message")
	assert.Equal(t, domain.RoleUser, msgs[2].Role)
	assert.Equal(t, "lost reply", msgs[2].Content)

	f.completer.err = nil
	state, turn, err := f.svc.HandleUserTurn(ctx, "retry", state)
	require.NoError(t, err)
	require.NotNil(t, turn.User.Parent)
	assert.Equal(t, msgs[2].ID, *turn.User.Parent)

	msgs, err = f.svc.GetHistory(ctx, state)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	assert.Equal(t, []domain.Role{
		domain.RoleUser, domain.RoleAssistant, domain.RoleUser, domain.RoleUser, domain.RoleAssistant,
	}, []domain.Role{msgs[0].Role, msgs[1].Role, msgs[2].Role, msgs[3].Role, msgs[4].Role})
}
