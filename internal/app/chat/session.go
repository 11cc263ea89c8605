/*
Package chat contains the core logic of the direct-messaging subsystem.

This file defines the Session, the in-memory conversation projection owned by
one authenticated user for the lifetime of their chat view. It performs the
cold load (fetch + materialize, then subscribe), folds live insert events into
the projection exactly once, and runs the optimistic send path.
*/
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"mindease/internal/app/user"
	"mindease/internal/pkg/logx"
)

// Contract errors the Store implementation wraps so callers can branch
// without importing the storage backend.
var (
	// ErrPermissionDenied marks reads or writes refused by a row-level
	// policy. It must never be conflated with a legitimately empty result.
	ErrPermissionDenied = errors.New("chat: permission denied by store policy")

	// ErrCounterpartyNotFound marks a receiver or counterparty id that does
	// not resolve to a known user.
	ErrCounterpartyNotFound = errors.New("chat: counterparty not found")
)

// Validation errors surfaced by the send path before any store call is made.
var (
	ErrEmptyMessage = errors.New("chat: message text is empty")
	ErrTextTooLong  = errors.New("chat: message text exceeds limit")
	ErrNoSelection  = errors.New("chat: no conversation selected")
)

// Store is the message store adapter the session depends on. Implementations
// wrap policy refusals in ErrPermissionDenied and unknown users in
// ErrCounterpartyNotFound.
type Store interface {
	UserResolver

	// FetchMessagesInvolving returns every message where the user is sender
	// or receiver. No ordering is guaranteed; the materializer sorts.
	FetchMessagesInvolving(ctx context.Context, userID string) ([]Message, error)

	// SendMessage persists a new message with a server-assigned id and
	// timestamp and returns the persisted value.
	SendMessage(ctx context.Context, senderID, receiverID, text string) (Message, error)
}

// EventOutcome describes what folding one live event changed.
type EventOutcome struct {
	// Applied is true when the event changed state anywhere; a duplicate
	// delivery of an already-seen message id leaves it false.
	Applied bool

	// AppendedToSelected is true when the message landed in the conversation
	// the user currently has open.
	AppendedToSelected bool

	// NewConversation is true when the event implicitly created a bucket for
	// a counterparty the projection had not seen; their display identity is a
	// placeholder until ResolveCounterparty fills it.
	NewConversation bool
}

// Session holds the conversation projection for one authenticated user.
//
// All mutations (cold-load population, live-event merge, optimistic send
// append, selection switches) serialize on one mutex, so any interleaving of
// suspension points is safe. The projection is discarded and rebuilt on
// Reload; the duplicate-id guard inside each conversation makes reload plus
// replay of already-merged events converge instead of duplicating.
type Session struct {
	mu sync.Mutex

	currentUser user.User
	store       Store
	hub         *Hub

	// conversations is the list projection, keyed by counterparty id, with
	// order preserving first observation.
	conversations map[string]*Conversation
	order         []string

	// selected is the counterparty id of the open conversation, empty when
	// none is open. draft holds the empty local conversation shown when the
	// user initiates contact with someone they have no messages with; it
	// joins the list projection only once a message exists.
	selected string
	draft    *Conversation

	sub    *Subscription
	logger zerolog.Logger
}

// NewSession constructs a session for the given user. Call Load before
// consuming the subscription.
func NewSession(currentUser user.User, st Store, hub *Hub) *Session {
	return &Session{
		currentUser:   currentUser,
		store:         st,
		hub:           hub,
		conversations: make(map[string]*Conversation),
		logger: logx.Logger().With().
			Str("component", "Session").
			Str("user_id", currentUser.ID).
			Logger(),
	}
}

// User returns the identity the session belongs to.
func (s *Session) User() user.User {
	return s.currentUser
}

// Load performs the cold load and then subscribes to the live feed, in that
// order, so no live event can race ahead of the backlog it belongs to.
//
// A failed fetch or materialization degrades to an empty projection and
// returns the error for a user-visible notice; the session stays usable and
// a later Reload can recover.
func (s *Session) Load(ctx context.Context) error {
	err := s.rebuild(ctx)

	s.mu.Lock()
	s.sub = s.hub.Subscribe(s.currentUser.ID)
	s.mu.Unlock()

	return err
}

// Reload rebuilds the projection from the store without touching the
// subscription. Combined with the per-conversation duplicate guard this is
// the recovery path after dropped events: re-running it and re-applying
// already-seen live events converges to the same message set.
func (s *Session) Reload(ctx context.Context) error {
	return s.rebuild(ctx)
}

func (s *Session) rebuild(ctx context.Context) error {
	msgs, err := s.store.FetchMessagesInvolving(ctx, s.currentUser.ID)
	if err != nil {
		s.reset(nil)
		if errors.Is(err, ErrPermissionDenied) {
			s.logger.Warn().Err(err).Msg("Message fetch denied by policy. Presenting empty conversation list.")
			return err
		}
		s.logger.Error().Err(err).Msg("Message fetch failed during cold load.")
		return fmt.Errorf("loading conversations: %w", err)
	}

	conversations, err := Materialize(ctx, s.currentUser, msgs, s.store)
	if err != nil {
		s.reset(nil)
		s.logger.Error().Err(err).Msg("Counterparty resolution failed during materialization.")
		return fmt.Errorf("loading conversations: %w", err)
	}

	s.reset(conversations)
	return nil
}

// reset replaces the projection wholesale, re-binding the open
// selection to its new bucket (or back to a draft when the bucket is gone).
func (s *Session) reset(conversations []*Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var previousSelected *Conversation
	if s.selected != "" {
		if c, ok := s.conversations[s.selected]; ok {
			previousSelected = c
		} else if s.draft != nil {
			previousSelected = s.draft
		}
	}

	s.conversations = make(map[string]*Conversation, len(conversations))
	s.order = s.order[:0]
	for _, c := range conversations {
		s.conversations[c.Participant2.ID] = c
		s.order = append(s.order, c.Participant2.ID)
	}

	if s.selected == "" {
		s.draft = nil
		return
	}
	if _, ok := s.conversations[s.selected]; ok {
		s.draft = nil
		return
	}
	// The open conversation has no bucket anymore; keep an empty draft so
	// the view survives the rebuild.
	counterparty := user.User{ID: s.selected}
	if previousSelected != nil {
		counterparty = previousSelected.Participant2
	}
	s.draft = NewConversation(s.currentUser, counterparty)
}

// Subscription exposes the live feed channel. Valid after Load.
func (s *Session) Subscription() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub
}

// Resubscribe replaces a dropped subscription without rebuilding state. Any
// events missed while disconnected are recovered by Reload.
func (s *Session) Resubscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sub = s.hub.Subscribe(s.currentUser.ID)
	return s.sub
}

// ApplyEvent folds one live insert event into the projection exactly once.
// The feed is scoped to receiver = current user, so the counterparty is
// always the sender. Replaying an identical event (same message id) is a
// no-op in both the open conversation and the list projection.
func (s *Session) ApplyEvent(m Message) EventOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out EventOutcome

	// The feed contract says only rows addressed to the current user arrive;
	// anything else is a misrouted event and is ignored.
	if m.ReceiverID != s.currentUser.ID {
		s.logger.Warn().Str("message_id", m.ID).Msg("Ignoring live event not addressed to session user.")
		return out
	}

	counterpartyID := m.SenderID

	c, ok := s.conversations[counterpartyID]
	if !ok {
		if s.draft != nil && s.draft.Participant2.ID == counterpartyID {
			// First message in a conversation the user just opened: the
			// draft graduates into the list projection.
			c = s.draft
			s.draft = nil
		} else {
			c = NewConversation(s.currentUser, user.User{ID: counterpartyID})
			out.NewConversation = true
		}
		s.conversations[counterpartyID] = c
		s.order = append(s.order, counterpartyID)
	}

	out.Applied = c.Append(m)
	out.AppendedToSelected = out.Applied && s.selected == counterpartyID
	return out
}

// ResolveCounterparty fills in the display identity of a bucket that was
// implicitly created by a live event. Resolution failure keeps the
// placeholder; the conversation itself is not dropped once messages exist.
func (s *Session) ResolveCounterparty(ctx context.Context, counterpartyID string) {
	users, err := s.store.ResolveUsersByIDs(ctx, []string{counterpartyID})
	if err != nil || len(users) == 0 {
		s.logger.Warn().Err(err).
			Str("counterparty_id", counterpartyID).
			Msg("Could not resolve counterparty identity for live conversation.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[counterpartyID]; ok {
		c.Participant2 = users[0]
	}
}

// Select opens the conversation with the given counterparty. When no bucket
// exists the returned conversation is an empty local draft; nothing is
// persisted until the first message is sent. Selection never touches the
// subscription, which is scoped to the whole user.
func (s *Session) Select(counterparty user.User) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = counterparty.ID

	if c, ok := s.conversations[counterparty.ID]; ok {
		s.draft = nil
		return c.snapshot()
	}

	s.draft = NewConversation(s.currentUser, counterparty)
	return s.draft.snapshot()
}

// SelectByID opens the conversation with the given counterparty id, resolving
// the display identity when no bucket holds it yet.
func (s *Session) SelectByID(ctx context.Context, counterpartyID string) (Conversation, error) {
	s.mu.Lock()
	if c, ok := s.conversations[counterpartyID]; ok {
		s.selected = counterpartyID
		s.draft = nil
		snap := c.snapshot()
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()

	users, err := s.store.ResolveUsersByIDs(ctx, []string{counterpartyID})
	if err != nil {
		return Conversation{}, err
	}
	if len(users) == 0 {
		return Conversation{}, ErrCounterpartyNotFound
	}

	return s.Select(users[0]), nil
}

// Send runs the send path for the open conversation: local validation first
// (empty text never reaches the store), then the store write, then the
// optimistic append to both the open conversation and its list bucket.
//
// The feed never echoes a sender's own message back to them, so this local
// append is the only way the sender sees what they sent. On store failure
// nothing is mutated and the error is returned for the caller to surface
// while preserving the user's input.
func (s *Session) Send(ctx context.Context, text string) (Message, error) {
	trimmed, err := ValidateText(text)
	if err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	counterpartyID := s.selected
	var counterparty user.User
	if c, ok := s.conversations[counterpartyID]; ok {
		counterparty = c.Participant2
	} else if s.draft != nil && s.draft.Participant2.ID == counterpartyID {
		counterparty = s.draft.Participant2
	}
	s.mu.Unlock()

	if counterpartyID == "" {
		return Message{}, ErrNoSelection
	}

	msg, err := s.store.SendMessage(ctx, s.currentUser.ID, counterpartyID, trimmed)
	if err != nil {
		return Message{}, err
	}

	// The store accepted the write; fold the persisted message into the
	// projection. The user may have switched conversations while the write
	// was in flight, so the append targets the original counterparty's
	// bucket, not whatever is selected now.
	s.mu.Lock()
	c, ok := s.conversations[counterpartyID]
	if !ok {
		if s.draft != nil && s.draft.Participant2.ID == counterpartyID {
			c = s.draft
			s.draft = nil
		} else {
			if counterparty.ID == "" {
				counterparty = user.User{ID: counterpartyID}
			}
			c = NewConversation(s.currentUser, counterparty)
		}
		s.conversations[counterpartyID] = c
		s.order = append(s.order, counterpartyID)
	}
	c.Append(msg)
	s.mu.Unlock()

	return msg, nil
}

// Conversations returns a snapshot of the list projection in first-observed
// order. Drafts are excluded until their first message exists.
func (s *Session) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Conversation, 0, len(s.order))
	for _, id := range s.order {
		if c, ok := s.conversations[id]; ok {
			out = append(out, c.snapshot())
		}
	}
	return out
}

// Selected returns a snapshot of the open conversation, if any.
func (s *Session) Selected() (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == "" {
		return Conversation{}, false
	}
	if c, ok := s.conversations[s.selected]; ok {
		return c.snapshot(), true
	}
	if s.draft != nil {
		return s.draft.snapshot(), true
	}
	return Conversation{}, false
}

// Close tears down the live subscription. The projection itself needs no
// teardown; it is discarded with the session.
func (s *Session) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		s.hub.Unsubscribe(sub)
	}
}
