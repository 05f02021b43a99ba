// Package chat drives a streamed conversation turn end to end: validate the
// inbound history, relay model fragments to the client as they arrive, then
// hand the completed turn to background extraction.
package chat

import (
	"context"
	"io"
	"strings"
	"time"

	"vita-api/internal/metrics"
	"vita-api/internal/model"
	"vita-api/internal/profile"
	"vita-api/internal/shared"
	"vita-api/internal/tasks"

	"github.com/aidarkhanov/nanoid"
	"go.uber.org/zap"
)

// State is the terminal outcome of one streamed turn.
type State string

const (
	StateCompleted       State = "completed"
	StateClientCancelled State = "client_cancelled"
	StateUpstreamFailed  State = "upstream_failed"
)

type Result struct {
	State     State
	Content   string
	Fragments int
}

// DeltaApplier merges a mined profile delta into the stored profile.
type DeltaApplier interface {
	ApplyDelta(ctx context.Context, userID uint64, d profile.Delta) (*profile.Profile, error)
}

// MessageStore persists the turn's messages once the stream settles.
type MessageStore interface {
	SaveMessages(ctx context.Context, userID uint64, msgs []shared.StoredMessage) error
}

type Orchestrator struct {
	streamer model.Streamer
	coord    *tasks.Coordinator
	profiles DeltaApplier
	store    MessageStore
	log      *zap.SugaredLogger
}

func NewOrchestrator(streamer model.Streamer, coord *tasks.Coordinator, profiles DeltaApplier, store MessageStore, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		streamer: streamer,
		coord:    coord,
		profiles: profiles,
		store:    store,
		log:      log,
	}
}

// ValidateMessages rejects histories the model should never see: empty
// histories, unknown roles, blank content, and turns that do not end with
// the user speaking. A caller-supplied system prompt is allowed as the
// leading message and forwarded untouched; the orchestrator never writes
// one itself.
func ValidateMessages(msgs []shared.ChatMessage) error {
	if len(msgs) == 0 {
		return shared.ErrEmptyMessages
	}
	for i, m := range msgs {
		switch m.Role {
		case "user", "assistant":
		case "system":
			if i != 0 {
				return shared.ErrMalformedMessages
			}
		default:
			return shared.ErrMalformedMessages
		}
		if strings.TrimSpace(m.Content) == "" {
			return shared.ErrMalformedMessages
		}
	}
	if msgs[len(msgs)-1].Role != "user" {
		return shared.ErrMalformedMessages
	}
	return nil
}

// Stream runs one turn. Fragments are pushed through emit the moment they
// arrive from the model. The returned Result always carries whatever content
// was accumulated, whichever way the turn ended.
func (o *Orchestrator) Stream(ctx context.Context, userID uint64, sessionID string, req shared.ChatRequest, emit func(shared.Fragment) error) (Result, error) {
	if err := ValidateMessages(req.Messages); err != nil {
		return Result{State: StateUpstreamFailed}, err
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = shared.DefaultMaxTokens
	}

	stream, err := o.streamer.Stream(ctx, model.Request{
		Messages:  req.Messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		metrics.StreamFragments.WithLabelValues("upstream_failed").Inc()
		return Result{State: StateUpstreamFailed}, err
	}
	defer func() {
		_ = stream.Close()
	}()

	var sb strings.Builder
	res := Result{}
	start := time.Now()

	for {
		if ctx.Err() != nil {
			res.State = StateClientCancelled
			break
		}

		frag, err := stream.Next()
		if err == io.EOF {
			res.State = StateCompleted
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				res.State = StateClientCancelled
				break
			}
			res.State = StateUpstreamFailed
			res.Content = sb.String()
			metrics.StreamFragments.WithLabelValues("upstream_failed").Inc()
			return res, err
		}

		if res.Fragments == 0 {
			metrics.TimeToFirstToken.WithLabelValues("chat_stream").Observe(time.Since(start).Seconds())
		}
		sb.WriteString(frag)
		res.Fragments++

		if err := emit(shared.Fragment{Role: "assistant", Content: frag}); err != nil {
			// Client went away mid-stream. The turn still counts for
			// extraction with whatever content made it out.
			res.State = StateClientCancelled
			break
		}
	}

	res.Content = sb.String()
	metrics.StreamFragments.WithLabelValues(string(res.State)).Inc()

	if res.Content != "" {
		o.submitPostProcess(userID, sessionID, req.Messages[len(req.Messages)-1], res.Content)
	}

	if res.State == StateClientCancelled {
		return res, ctx.Err()
	}
	return res, nil
}

// submitPostProcess hands the settled turn to the coordinator: persist both
// messages, then mine the assistant reply for profile updates. Exactly one
// task per turn; a torn-down session must never take the request down with
// it, so submission failure is only logged.
func (o *Orchestrator) submitPostProcess(userID uint64, sessionID string, userMsg shared.ChatMessage, assistantContent string) {
	seq := o.coord.NextSeq(sessionID)
	now := time.Now()
	o.coord.Submit(tasks.Task{
		SessionID: sessionID,
		Seq:       seq,
		Run: func(ctx context.Context) error {
			msgs := []shared.StoredMessage{
				{ID: newMessageID(), Role: "user", Content: userMsg.Content, CreatedAt: now},
				{ID: newMessageID(), Role: "assistant", Content: assistantContent, CreatedAt: now.Add(time.Millisecond)},
			}
			if err := o.store.SaveMessages(ctx, userID, msgs); err != nil {
				o.log.Warnw("Failed to persist chat turn", "session_id", sessionID, "error", err)
			}

			delta, ok := profile.ExtractDelta(assistantContent)
			if !ok {
				return nil
			}
			if _, err := o.profiles.ApplyDelta(ctx, userID, delta); err != nil {
				return err
			}
			o.log.Infow("Applied profile delta", "session_id", sessionID, "seq", seq)
			return nil
		},
	})
}

func newMessageID() string {
	id, _ := nanoid.Generate("0123456789abcdefghijklmnopqrstuvwxyz", 28)
	return "msg_" + id
}
