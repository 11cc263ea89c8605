package chat_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mindease/internal/app/chat"
	"mindease/internal/app/user"
)

// fakeStore is an in-memory chat.Store whose fetch and send behavior each test
// controls directly.
type fakeStore struct {
	*fakeResolver

	messages []chat.Message
	fetchErr error
	sendErr  error

	sendCalls int
	nextID    int
	now       time.Time
}

func newFakeStore(users ...user.User) *fakeStore {
	return &fakeStore{
		fakeResolver: newFakeResolver(users...),
		now:          time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) FetchMessagesInvolving(_ context.Context, userID string) ([]chat.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []chat.Message
	for _, m := range f.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) SendMessage(_ context.Context, senderID, receiverID, text string) (chat.Message, error) {
	f.sendCalls++
	if f.sendErr != nil {
		return chat.Message{}, f.sendErr
	}
	if _, ok := f.users[receiverID]; !ok {
		return chat.Message{}, fmt.Errorf("insert: %w", chat.ErrCounterpartyNotFound)
	}
	f.nextID++
	f.now = f.now.Add(time.Second)
	m := chat.Message{
		ID:         fmt.Sprintf("srv-%d", f.nextID),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Timestamp:  f.now,
		Status:     chat.StatusSent,
	}
	f.messages = append(f.messages, m)
	return m, nil
}

func (f *fakeStore) seed(msgs ...chat.Message) {
	f.messages = append(f.messages, msgs...)
}

func loadedSession(t *testing.T, st *fakeStore) (*chat.Session, *chat.Hub) {
	t.Helper()
	hub := chat.NewHub()
	s := chat.NewSession(student, st, hub)
	require.NoError(t, s.Load(context.Background()))
	return s, hub
}

func TestSessionLoadBuildsProjection(t *testing.T) {
	req := require.New(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st := newFakeStore(student, carol, dave)
	st.seed(
		msg("m1", carol.ID, student.ID, "hi", base),
		msg("m2", student.ID, dave.ID, "hello dave", base.Add(time.Minute)),
	)

	s, _ := loadedSession(t, st)

	conversations := s.Conversations()
	req.Len(conversations, 2)
	req.NotNil(s.Subscription())
}

func TestSessionLoadPermissionDeniedDegradesToEmpty(t *testing.T) {
	req := require.New(t)

	st := newFakeStore(student)
	st.fetchErr = fmt.Errorf("store: %w", chat.ErrPermissionDenied)

	hub := chat.NewHub()
	s := chat.NewSession(student, st, hub)

	err := s.Load(context.Background())
	req.ErrorIs(err, chat.ErrPermissionDenied)
	req.Empty(s.Conversations())

	// The session stays usable: live events still fold in.
	req.NotNil(s.Subscription())
}

func TestSessionApplyEventExactlyOnce(t *testing.T) {
	req := require.New(t)

	st := newFakeStore(student, carol)
	s, _ := loadedSession(t, st)

	m := msg("m1", carol.ID, student.ID, "hi", time.Now())

	first := s.ApplyEvent(m)
	req.True(first.Applied)
	req.True(first.NewConversation)

	second := s.ApplyEvent(m)
	req.False(second.Applied)

	conversations := s.Conversations()
	req.Len(conversations, 1)
	req.Len(conversations[0].Messages, 1)
}

func TestSessionApplyEventIgnoresMisroutedEvent(t *testing.T) {
	req := require.New(t)

	st := newFakeStore(student, carol, dave)
	s, _ := loadedSession(t, st)

	out := s.ApplyEvent(msg("m1", carol.ID, dave.ID, "not for us", time.Now()))
	req.False(out.Applied)
	req.Empty(s.Conversations())
}

func TestSessionReloadThenReplayConverges(t *testing.T) {
	req := require.New(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st := newFakeStore(student, carol)
	st.seed(msg("m1", carol.ID, student.ID, "hi", base))

	s, _ := loadedSession(t, st)

	// A live event arrives and is also persisted, as the store would have it.
	live := msg("m2", carol.ID, student.ID, "are you there?", base.Add(time.Minute))
	st.seed(live)
	req.True(s.ApplyEvent(live).Applied)

	// Reload rebuilds from the store, which already contains m2. Replaying the
	// same event afterwards must not duplicate it.
	req.NoError(s.Reload(context.Background()))
	req.False(s.ApplyEvent(live).Applied)

	conversations := s.Conversations()
	req.Len(conversations, 1)
	req.Len(conversations[0].Messages, 2)
}

func TestSessionSendEmptyTextNeverReachesStore(t *testing.T) {
	req := require.New(t)

	st := newFakeStore(student, carol)
	s, _ := loadedSession(t, st)
	s.Select(carol)

	for _, text := range []string{"", "   ", "\n\t "} {
		_, err := s.Send(context.Background(), text)
		req.ErrorIs(err, chat.ErrEmptyMessage)
	}
	req.Zero(st.sendCalls)
}

func TestSessionSendWithoutSelection(t *testing.T) {
	req := require.New(t)

	st := newFakeStore(student, carol)
	s, _ := loadedSession(t, st)

	_, err := s.Send(context.Background(), "hello")
	req.ErrorIs(err, chat.ErrNoSelection)
	req.Zero(st.sendCalls)
}

func TestSessionSendAppendsPersistedMessage(t *testing.T) {
	req := require.New(t)

	st := newFakeStore(student, carol)
	s, _ := loadedSession(t, st)
	s.Select(carol)

	sent, err := s.Send(context.Background(), "  hello carol  ")
	req.NoError(err)
	req.Equal("hello carol", sent.Text)
	req.NotEmpty(sent.ID)

	// The draft graduated into the list and holds the server's version of the
	// message, id and timestamp included.
	conversations := s.Conversations()
	req.Len(conversations, 1)
	req.Len(conversations[0].Messages, 1)
	req.Equal(sent, conversations[0].Messages[0])

	selected, ok := s.Selected()
	req.True(ok)
	req.Equal(sent.ID, selected.Messages[0].ID)
}

func TestSessionSendFailureMutatesNothing(t *testing.T) {
	req := require.New(t)

	st := newFakeStore(student, carol)
	s, _ := loadedSession(t, st)
	s.Select(carol)

	st.sendErr = errors.New("connection reset")
	_, err := s.Send(context.Background(), "hello")
	req.Error(err)

	// All-or-nothing: no bucket appears, the selection stays an empty draft.
	req.Empty(s.Conversations())
	selected, ok := s.Selected()
	req.True(ok)
	req.Empty(selected.Messages)
}

func TestSessionSendToUnknownRecipient(t *testing.T) {
	req := require.New(t)

	st := newFakeStore(student, carol)
	s, _ := loadedSession(t, st)
	s.Select(user.User{ID: "u-ghost", Name: "Ghost"})

	_, err := s.Send(context.Background(), "hello?")
	req.ErrorIs(err, chat.ErrCounterpartyNotFound)
	req.Empty(s.Conversations())
}

func TestSessionDraftExcludedFromListUntilFirstMessage(t *testing.T) {
	req := require.New(t)

	st := newFakeStore(student, carol)
	s, _ := loadedSession(t, st)

	c := s.Select(carol)
	req.Empty(c.Messages)
	req.Equal(carol, c.Participant2)
	req.Empty(s.Conversations())

	// First inbound message promotes the draft into the list.
	out := s.ApplyEvent(msg("m1", carol.ID, student.ID, "hi", time.Now()))
	req.True(out.Applied)
	req.True(out.AppendedToSelected)
	req.False(out.NewConversation)
	req.Len(s.Conversations(), 1)
}

func TestSessionSelectByIDResolvesUnknownCounterparty(t *testing.T) {
	req := require.New(t)

	st := newFakeStore(student, carol)
	s, _ := loadedSession(t, st)

	c, err := s.SelectByID(context.Background(), carol.ID)
	req.NoError(err)
	req.Equal(carol, c.Participant2)

	_, err = s.SelectByID(context.Background(), "u-ghost")
	req.ErrorIs(err, chat.ErrCounterpartyNotFound)
}

func TestSessionResolveCounterpartyFillsPlaceholder(t *testing.T) {
	req := require.New(t)

	st := newFakeStore(student, carol)
	s, _ := loadedSession(t, st)

	out := s.ApplyEvent(msg("m1", carol.ID, student.ID, "hi", time.Now()))
	req.True(out.NewConversation)

	s.ResolveCounterparty(context.Background(), carol.ID)

	conversations := s.Conversations()
	req.Len(conversations, 1)
	req.Equal(carol.Name, conversations[0].Participant2.Name)
}

func TestSessionLiveEventDeliveredThroughHub(t *testing.T) {
	req := require.New(t)

	st := newFakeStore(student, carol)
	s, hub := loadedSession(t, st)

	m := msg("m1", carol.ID, student.ID, "hi", time.Now())
	hub.Publish(m)

	select {
	case got := <-s.Subscription().Events():
		req.Equal(m, got)
	case <-time.After(time.Second):
		t.Fatal("expected live event on subscription")
	}
}

func TestSessionSnapshotAndBufferedEventsAreDisjoint(t *testing.T) {
	req := require.New(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st := newFakeStore(student, carol)
	st.seed(msg("m1", carol.ID, student.ID, "hi", base))

	s, hub := loadedSession(t, st)

	// An event arrives while nothing is consuming the subscription yet; it
	// waits in the buffer and is absent from the snapshot taken now.
	live := msg("m2", carol.ID, student.ID, "still there?", base.Add(time.Minute))
	hub.Publish(live)

	snapshot := s.Conversations()
	req.Len(snapshot, 1)
	req.Len(snapshot[0].Messages, 1)

	// Consuming afterwards folds the buffered event exactly once, so a
	// message is delivered either inside the snapshot or as a live event,
	// never both.
	got := <-s.Subscription().Events()
	req.True(s.ApplyEvent(got).Applied)
	req.False(s.ApplyEvent(got).Applied)

	conversations := s.Conversations()
	req.Len(conversations[0].Messages, 2)
}

func TestSessionSenderDoesNotReceiveOwnMessageViaFeed(t *testing.T) {
	req := require.New(t)

	st := newFakeStore(student, carol)
	s, hub := loadedSession(t, st)
	s.Select(carol)

	sent, err := s.Send(context.Background(), "hello")
	req.NoError(err)

	// Publishing the sent message routes it to the receiver's feed only.
	hub.Publish(sent)

	select {
	case got := <-s.Subscription().Events():
		t.Fatalf("sender's feed must stay silent, got %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}
