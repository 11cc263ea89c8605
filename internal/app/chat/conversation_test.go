package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mindease/internal/app/chat"
	"mindease/internal/app/user"
)

var (
	student = user.User{ID: "u-student", Name: "Sam", Email: "sam@example.com", Role: user.RoleStudent}
	carol   = user.User{ID: "u-carol", Name: "Carol", Email: "carol@example.com", Role: user.RoleCounsellor}
	dave    = user.User{ID: "u-dave", Name: "Dave", Email: "dave@example.com", Role: user.RoleCounsellor}
)

func msg(id, senderID, receiverID, text string, at time.Time) chat.Message {
	return chat.Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Timestamp:  at,
		Status:     chat.StatusSent,
	}
}

// fakeResolver resolves from a fixed user set and can be forced to fail.
type fakeResolver struct {
	users map[string]user.User
	err   error
}

func newFakeResolver(users ...user.User) *fakeResolver {
	m := make(map[string]user.User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return &fakeResolver{users: m}
}

func (f *fakeResolver) ResolveUsersByIDs(_ context.Context, ids []string) ([]user.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []user.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func TestMaterializeBucketsByCounterparty(t *testing.T) {
	req := require.New(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msgs := []chat.Message{
		msg("m1", student.ID, carol.ID, "hi carol", base),
		msg("m2", carol.ID, student.ID, "hi sam", base.Add(time.Minute)),
		msg("m3", dave.ID, student.ID, "hello", base.Add(2*time.Minute)),
		msg("m4", student.ID, carol.ID, "how are you", base.Add(3*time.Minute)),
	}

	conversations, err := chat.Materialize(context.Background(), student, msgs, newFakeResolver(carol, dave))
	req.NoError(err)
	req.Len(conversations, 2)

	byCounterparty := map[string]*chat.Conversation{}
	total := 0
	for _, c := range conversations {
		req.Equal(student, c.Participant1)
		req.Equal(chat.ConversationID(student.ID, c.Participant2.ID), c.ID)
		byCounterparty[c.Participant2.ID] = c
		total += len(c.Messages)
	}

	// Every message lands in exactly one bucket; none invented, none lost.
	req.Equal(len(msgs), total)
	req.Len(byCounterparty[carol.ID].Messages, 3)
	req.Len(byCounterparty[dave.ID].Messages, 1)

	for _, m := range byCounterparty[carol.ID].Messages {
		req.Equal(carol.ID, m.CounterpartyFor(student.ID))
	}
}

func TestMaterializeSortsAscendingWithStableTies(t *testing.T) {
	req := require.New(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msgs := []chat.Message{
		msg("m3", student.ID, carol.ID, "third", base.Add(2*time.Minute)),
		msg("tie-a", carol.ID, student.ID, "tie first", base),
		msg("tie-b", student.ID, carol.ID, "tie second", base),
		msg("m2", carol.ID, student.ID, "second", base.Add(time.Minute)),
	}

	conversations, err := chat.Materialize(context.Background(), student, msgs, newFakeResolver(carol))
	req.NoError(err)
	req.Len(conversations, 1)

	ids := make([]string, 0, 4)
	for _, m := range conversations[0].Messages {
		ids = append(ids, m.ID)
	}
	// Equal timestamps keep input order.
	req.Equal([]string{"tie-a", "tie-b", "m2", "m3"}, ids)
}

func TestMaterializeEmptyInput(t *testing.T) {
	req := require.New(t)

	resolver := newFakeResolver()
	resolver.err = errors.New("must not be called")

	conversations, err := chat.Materialize(context.Background(), student, nil, resolver)
	req.NoError(err)
	req.Empty(conversations)
}

func TestMaterializeDropsUnresolvedCounterparty(t *testing.T) {
	req := require.New(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msgs := []chat.Message{
		msg("m1", carol.ID, student.ID, "hi", base),
		msg("m2", "u-ghost", student.ID, "boo", base.Add(time.Minute)),
	}

	conversations, err := chat.Materialize(context.Background(), student, msgs, newFakeResolver(carol))
	req.NoError(err)
	req.Len(conversations, 1)
	req.Equal(carol.ID, conversations[0].Participant2.ID)
}

func TestMaterializeResolverFailure(t *testing.T) {
	req := require.New(t)

	resolver := newFakeResolver(carol)
	resolver.err = errors.New("directory unavailable")

	msgs := []chat.Message{
		msg("m1", carol.ID, student.ID, "hi", time.Now()),
	}

	_, err := chat.Materialize(context.Background(), student, msgs, resolver)
	req.Error(err)
}

func TestConversationAppendDeduplicatesByID(t *testing.T) {
	req := require.New(t)

	c := chat.NewConversation(student, carol)
	m := msg("m1", carol.ID, student.ID, "hi", time.Now())

	req.True(c.Append(m))
	req.False(c.Append(m))
	req.Len(c.Messages, 1)
	req.True(c.Contains("m1"))
}

func TestConversationAppendKeepsOrderForLateArrivals(t *testing.T) {
	req := require.New(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := chat.NewConversation(student, carol)

	req.True(c.Append(msg("m1", carol.ID, student.ID, "first", base)))
	req.True(c.Append(msg("m3", carol.ID, student.ID, "third", base.Add(2*time.Minute))))
	req.True(c.Append(msg("m2", carol.ID, student.ID, "second", base.Add(time.Minute))))

	ids := []string{c.Messages[0].ID, c.Messages[1].ID, c.Messages[2].ID}
	req.Equal([]string{"m1", "m2", "m3"}, ids)

	last, ok := c.LastMessage()
	req.True(ok)
	req.Equal("m3", last.ID)
}
