package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/PabloGalante/singlechat/internal/app/history"
	"github.com/PabloGalante/singlechat/internal/domain"
	"github.com/PabloGalante/singlechat/internal/observability"
)

// Phase is where a turn currently is. Every Awaiting* phase falls back to
// PhaseIdle on failure.
type Phase string

const (
	PhaseIdle                Phase = "idle"
	PhaseAwaitingUserPersist Phase = "awaiting_user_persist"
	PhaseAwaitingContext     Phase = "awaiting_context"
	PhaseAwaitingCompletion  Phase = "awaiting_completion"
	PhaseAwaitingReply       Phase = "awaiting_reply_persist"
)

// Turn is the pair of stored messages produced by one successful user turn.
type Turn struct {
	User      domain.Message
	Assistant domain.Message
}

// Messages returns the turn oldest-first.
func (t Turn) Messages() []domain.Message {
	return []domain.Message{t.User, t.Assistant}
}

type Service struct {
	store         domain.MessageStore
	reconstructor *history.Reconstructor
	completer     domain.Completer
	now           func() time.Time
}

func NewService(
	store domain.MessageStore,
	reconstructor *history.Reconstructor,
	completer domain.Completer,
) *Service {
	return &Service{
		store:         store,
		reconstructor: reconstructor,
		completer:     completer,
		now:           time.Now,
	}
}

// HandleUserTurn appends a user message, asks for a completion over the full
// history and appends the reply.
//
// The returned state is always the one to keep, even with an error. Once the
// user message is stored the head points at it, so a turn failing after that
// leaves the conversation ending in the user message. Nothing is retried and
// nothing is rolled back.
func (s *Service) HandleUserTurn(ctx context.Context, content string, state domain.State) (domain.State, Turn, error) {
	start := s.now()
	log := observability.LoggerFromContext(ctx).With(
		"head", state.HeadString(),
		"version", state.Version,
	)
	log.Info("handling user turn", "content_len", len(content))

	phase := func(p Phase) { log.Debug("turn phase", "phase", p) }
	fail := func(stage domain.TurnStage, err error) error {
		log.Error("turn failed",
			"stage", stage,
			"error", err,
			"elapsed_ms", s.now().Sub(start).Milliseconds(),
		)
		phase(PhaseIdle)
		return &domain.TurnError{Stage: stage, Err: err}
	}

	phase(PhaseAwaitingUserPersist)
	userMsg := domain.NewMessage(domain.RoleUser, content, state.Head)
	userRes, err := s.store.Put(ctx, userMsg)
	if err != nil {
		return state, Turn{}, fail(domain.StagePersistUser, err)
	}
	userMsg = userMsg.WithID(userRes.ID)
	logPut(log, "user", userRes)

	state = state.Advance(userRes.ID)
	log = log.With("head", state.HeadString(), "version", state.Version)

	phase(PhaseAwaitingContext)
	msgs, err := s.reconstructor.Reconstruct(ctx, state.Head)
	if err != nil {
		return state, Turn{}, fail(domain.StageReconstructHistory, err)
	}

	phase(PhaseAwaitingCompletion)
	completionStart := s.now()
	reply, err := s.completer.Complete(ctx, msgs)
	if err != nil {
		return state, Turn{}, fail(domain.StageCompletion, err)
	}
	log.Debug("completion received",
		"message_count", len(msgs),
		"reply_len", len(reply),
		"elapsed_ms", s.now().Sub(completionStart).Milliseconds(),
	)

	phase(PhaseAwaitingReply)
	assistantMsg := domain.NewMessage(domain.RoleAssistant, reply, domain.IDPtr(userRes.ID))
	assistantRes, err := s.store.Put(ctx, assistantMsg)
	if err != nil {
		return state, Turn{}, fail(domain.StagePersistAssistant, err)
	}
	assistantMsg = assistantMsg.WithID(assistantRes.ID)
	logPut(log, "assistant", assistantRes)

	state = state.Advance(assistantRes.ID)
	phase(PhaseIdle)

	log.Info("user turn completed",
		"head", state.HeadString(),
		"version", state.Version,
		"message_count", len(msgs)+1,
		"elapsed_ms", s.now().Sub(start).Milliseconds(),
	)

	return state, Turn{User: userMsg, Assistant: assistantMsg}, nil
}

// GetHistory returns the conversation ending at state.Head, oldest first.
func (s *Service) GetHistory(ctx context.Context, state domain.State) ([]domain.Message, error) {
	log := observability.LoggerFromContext(ctx).With(
		"head", state.HeadString(),
		"version", state.Version,
	)

	msgs, err := s.reconstructor.Reconstruct(ctx, state.Head)
	if err != nil {
		log.Error("failed to reconstruct history", "error", err)
		return nil, err
	}

	log.Info("fetched history", "message_count", len(msgs))
	return msgs, nil
}

func logPut(log *slog.Logger, role string, res domain.PutResult) {
	if res.Existed {
		// Same role, content and parent as an earlier message.
		log.Info("message already stored", "role", role, "id", res.ID)
		return
	}
	log.Debug("message stored", "role", role, "id", res.ID)
}
