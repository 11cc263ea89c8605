/*
Package chat contains the core logic of the direct-messaging subsystem.

This file defines the Conversation aggregate and the materializer that derives
conversations from the flat message set involving a user. Conversations are a
projection over message rows: built fresh on each cold load, mutated in place
by live-event merging, and never persisted.
*/
package chat

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"mindease/internal/app/user"
	"mindease/internal/pkg/logx"
)

// ConversationID derives the identifier of the conversation between the
// current user and a counterparty. It is only unique from the current user's
// point of view, which is the only scope conversations exist in.
func ConversationID(currentUserID, counterpartyID string) string {
	return currentUserID + "-" + counterpartyID
}

// Conversation is the derived aggregate of all messages exchanged between
// exactly two users, ordered ascending by timestamp. Participant1 is always
// the current user, Participant2 the counterparty.
type Conversation struct {
	ID           string    `json:"id"`
	Participant1 user.User `json:"participant1"`
	Participant2 user.User `json:"participant2"`
	Messages     []Message `json:"messages"`

	// seen guards against duplicate inserts by message id. It is the
	// correctness anchor that makes live-event replay and reload-plus-replay
	// converge instead of accumulating duplicates.
	seen map[string]struct{}
}

// NewConversation constructs an empty conversation between the current user
// and a counterparty. This is also the "new conversation" affordance used
// when a user initiates contact with someone they have no messages with yet;
// nothing is persisted until the first message is sent.
func NewConversation(currentUser, counterparty user.User) *Conversation {
	return &Conversation{
		ID:           ConversationID(currentUser.ID, counterparty.ID),
		Participant1: currentUser,
		Participant2: counterparty,
		seen:         make(map[string]struct{}),
	}
}

// Contains reports whether a message with the given id is already present.
func (c *Conversation) Contains(messageID string) bool {
	_, ok := c.seen[messageID]
	return ok
}

// Append inserts the message into the sequence, keeping ascending timestamp
// order with stable ties. It reports whether the message was inserted; a
// message whose id is already present leaves the sequence unchanged.
func (c *Conversation) Append(m Message) bool {
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	if _, dup := c.seen[m.ID]; dup {
		return false
	}
	c.seen[m.ID] = struct{}{}

	// Common case: cold loads arrive pre-sorted and live events carry
	// timestamps at or past the tail, so a plain append suffices.
	n := len(c.Messages)
	if n == 0 || !m.Timestamp.Before(c.Messages[n-1].Timestamp) {
		c.Messages = append(c.Messages, m)
		return true
	}

	// Out-of-order arrival: insert after every message with an earlier or
	// equal timestamp so ties keep arrival order.
	i := sort.Search(n, func(j int) bool { return c.Messages[j].Timestamp.After(m.Timestamp) })
	c.Messages = append(c.Messages, Message{})
	copy(c.Messages[i+1:], c.Messages[i:])
	c.Messages[i] = m
	return true
}

// LastMessage returns the newest message, used for conversation-list previews.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// snapshot returns a value copy whose message slice is detached from the
// live aggregate, safe to hand outside the session lock.
func (c *Conversation) snapshot() Conversation {
	cp := Conversation{
		ID:           c.ID,
		Participant1: c.Participant1,
		Participant2: c.Participant2,
	}
	if len(c.Messages) > 0 {
		cp.Messages = make([]Message, len(c.Messages))
		copy(cp.Messages, c.Messages)
	}
	return cp
}

// UserResolver resolves display identities for counterparty ids observed in
// the message set. A counterparty derived from message rows may never have
// appeared in the caller's known-users list, hence the batch lookup.
type UserResolver interface {
	ResolveUsersByIDs(ctx context.Context, ids []string) ([]user.User, error)
}

// Materialize derives the complete set of conversations for the current user
// from the flat message set involving them: one conversation per distinct
// counterparty, each holding exactly the messages exchanged with that
// counterparty, ascending by timestamp.
//
// A counterparty that does not resolve (deleted account, narrowed policy) is
// dropped together with its bucket: the result is partial rather than an
// error, and the drop is logged.
func Materialize(ctx context.Context, currentUser user.User, msgs []Message, resolver UserResolver) ([]*Conversation, error) {
	counterpartyIDs := lo.Uniq(lo.Map(msgs, func(m Message, _ int) string {
		return m.CounterpartyFor(currentUser.ID)
	}))

	// No messages means no conversations; skip the identity lookup entirely.
	if len(counterpartyIDs) == 0 {
		return nil, nil
	}

	resolved, err := resolver.ResolveUsersByIDs(ctx, counterpartyIDs)
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(resolved, func(u user.User) string { return u.ID })

	index := make(map[string]*Conversation, len(counterpartyIDs))
	conversations := make([]*Conversation, 0, len(counterpartyIDs))
	for _, id := range counterpartyIDs {
		counterparty, ok := byID[id]
		if !ok {
			logx.Warn("Counterparty did not resolve, dropping conversation bucket.",
				"counterparty_id", id, "user_id", currentUser.ID)
			continue
		}
		c := NewConversation(currentUser, counterparty)
		index[id] = c
		conversations = append(conversations, c)
	}

	for _, m := range msgs {
		if c, ok := index[m.CounterpartyFor(currentUser.ID)]; ok {
			c.Append(m)
		}
	}

	return conversations, nil
}
