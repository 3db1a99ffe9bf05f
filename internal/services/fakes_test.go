package services

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"tutor-match/internal/domain/conversation"
	"tutor-match/internal/domain/match"
	"tutor-match/internal/domain/message"
	"tutor-match/internal/domain/swipe"
	"tutor-match/internal/domain/user"
	"tutor-match/internal/events"
	"tutor-match/internal/proxy"
	"tutor-match/internal/repository"
	tutor_errors "tutor-match/pkg/errors"

	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for the postgres schema.
// It enforces the same uniqueness rules: one swipe per (actor, target),
// one ACTIVE match per pair and one conversation per match.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]user.User
	swipes   map[[2]uuid.UUID]swipe.Swipe
	matches  map[uuid.UUID]match.Match
	convs    map[uuid.UUID]conversation.Conversation
	messages map[uuid.UUID]message.Message
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[uuid.UUID]user.User{},
		swipes:   map[[2]uuid.UUID]swipe.Swipe{},
		matches:  map[uuid.UUID]match.Match{},
		convs:    map[uuid.UUID]conversation.Conversation{},
		messages: map[uuid.UUID]message.Message{},
	}
}

func (s *memStore) stores() repository.Stores {
	return repository.Stores{
		Users:         memUsers{s},
		Swipes:        memSwipes{s},
		Matches:       memMatches{s},
		Conversations: memConversations{s},
		Messages:      memMessages{s},
	}
}

func (s *memStore) addUser(role user.Role, name string) user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user.User{ID: uuid.New(), Role: role, DisplayName: name, IsActive: true}
	s.users[u.ID] = u
	return u
}

func (s *memStore) activeMatches(studentID, tutorID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.matches {
		if m.StudentID == studentID && m.TutorID == tutorID && m.Status == match.StatusActive {
			n++
		}
	}
	return n
}

// backdateSwipes moves every recorded swipe d into the past.
func (s *memStore) backdateSwipes(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, sw := range s.swipes {
		sw.CreatedAt = sw.CreatedAt.Add(-d)
		sw.UpdatedAt = sw.UpdatedAt.Add(-d)
		s.swipes[key] = sw
	}
}

func (s *memStore) conversationsForMatch(matchID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.convs {
		if c.MatchID == matchID {
			n++
		}
	}
	return n
}

type memUsers struct{ *memStore }

func (r memUsers) GetByID(_ context.Context, id uuid.UUID) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !u.IsActive {
		return user.User{}, tutor_errors.ErrNotFound
	}
	return u, nil
}

func (r memUsers) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[uuid.UUID]user.User{}
	for _, id := range ids {
		if u, ok := r.users[id]; ok && u.IsActive {
			out[id] = u
		}
	}
	return out, nil
}

func (r memUsers) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; ok {
		return tutor_errors.ErrAlreadyExists
	}
	r.users[u.ID] = *u
	return nil
}

type memSwipes struct{ *memStore }

func (r memSwipes) Upsert(_ context.Context, sw *swipe.Swipe) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]uuid.UUID{sw.ActorID, sw.TargetID}
	if prev, ok := r.swipes[key]; ok {
		prev.Action = sw.Action
		prev.UpdatedAt = sw.UpdatedAt
		r.swipes[key] = prev
		return nil
	}
	r.swipes[key] = *sw
	return nil
}

func (r memSwipes) Get(_ context.Context, actorID, targetID uuid.UUID) (swipe.Swipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sw, ok := r.swipes[[2]uuid.UUID{actorID, targetID}]
	if !ok {
		return swipe.Swipe{}, tutor_errors.ErrNotFound
	}
	return sw, nil
}

func (r memSwipes) MutualLikesWithoutMatch(_ context.Context, since time.Time, limit int) ([]swipe.Pair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pairs []swipe.Pair
	for key, sw := range r.swipes {
		actor := r.users[key[0]]
		if actor.Role != user.RoleStudent || sw.Action != swipe.ActionLike {
			continue
		}
		back, ok := r.swipes[[2]uuid.UUID{key[1], key[0]}]
		if !ok || back.Action != swipe.ActionLike {
			continue
		}
		if sw.UpdatedAt.Before(since) && back.UpdatedAt.Before(since) {
			continue
		}
		matched := false
		for _, m := range r.matches {
			if m.StudentID == key[0] && m.TutorID == key[1] {
				matched = true
				break
			}
		}
		if !matched {
			pairs = append(pairs, swipe.Pair{StudentID: key[0], TutorID: key[1]})
		}
		if len(pairs) == limit {
			break
		}
	}
	return pairs, nil
}

type memMatches struct{ *memStore }

func (r memMatches) CreateIfAbsent(_ context.Context, m *match.Match) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Status == match.StatusActive {
		for _, existing := range r.matches {
			if existing.StudentID == m.StudentID && existing.TutorID == m.TutorID && existing.Status == match.StatusActive {
				return false, nil
			}
		}
	}
	r.matches[m.ID] = *m
	return true, nil
}

func (r memMatches) GetByID(_ context.Context, id uuid.UUID) (match.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return match.Match{}, tutor_errors.ErrNotFound
	}
	return m, nil
}

func (r memMatches) GetActiveByPair(_ context.Context, studentID, tutorID uuid.UUID) (match.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matches {
		if m.StudentID == studentID && m.TutorID == tutorID && m.Status == match.StatusActive {
			return m, nil
		}
	}
	return match.Match{}, tutor_errors.ErrNotFound
}

func (r memMatches) GetLatestByPair(_ context.Context, studentID, tutorID uuid.UUID) (match.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *match.Match
	for _, m := range r.matches {
		if m.StudentID != studentID || m.TutorID != tutorID {
			continue
		}
		if latest == nil || m.LastActivity.After(latest.LastActivity) {
			m := m
			latest = &m
		}
	}
	if latest == nil {
		return match.Match{}, tutor_errors.ErrNotFound
	}
	return *latest, nil
}

func (r memMatches) UpdateStatus(_ context.Context, id uuid.UUID, from, to match.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok || m.Status != from {
		return tutor_errors.ErrNotFound
	}
	m.Status = to
	m.LastActivity = at
	r.matches[id] = m
	return nil
}

func (r memMatches) UpdateLastActivity(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return tutor_errors.ErrNotFound
	}
	if at.After(m.LastActivity) {
		m.LastActivity = at
		r.matches[id] = m
	}
	return nil
}

func (r memMatches) ListForUser(_ context.Context, userID uuid.UUID, filter match.Filter) ([]match.Match, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []match.Match
	for _, m := range r.matches {
		if !m.HasParticipant(userID) {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool {
		if filter.Order == match.OrderCreated {
			return all[i].MatchedAt.After(all[j].MatchedAt)
		}
		return all[i].LastActivity.After(all[j].LastActivity)
	})
	total := int64(len(all))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(all) {
		return []match.Match{}, total, nil
	}
	end := start + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r memMatches) CountForUser(_ context.Context, userID uuid.UUID, status *match.Status) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.matches {
		if m.HasParticipant(userID) && (status == nil || m.Status == *status) {
			n++
		}
	}
	return n, nil
}

type memConversations struct{ *memStore }

func (r memConversations) CreateIfAbsent(_ context.Context, c *conversation.Conversation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.convs {
		if existing.MatchID == c.MatchID {
			return false, nil
		}
	}
	r.convs[c.ID] = *c
	return true, nil
}

func (r memConversations) GetByID(_ context.Context, id uuid.UUID) (conversation.WithMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return conversation.WithMatch{}, tutor_errors.ErrNotFound
	}
	return conversation.WithMatch{Conversation: c, Match: r.matches[c.MatchID]}, nil
}

func (r memConversations) GetByMatchID(_ context.Context, matchID uuid.UUID) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.convs {
		if c.MatchID == matchID {
			return c, nil
		}
	}
	return conversation.Conversation{}, tutor_errors.ErrNotFound
}

func (r memConversations) TouchLastMessage(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return tutor_errors.ErrNotFound
	}
	if c.LastMessageAt == nil || at.After(*c.LastMessageAt) {
		c.LastMessageAt = &at
		r.convs[id] = c
	}
	return nil
}

func (r memConversations) ListForUser(_ context.Context, userID uuid.UUID) ([]conversation.WithMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []conversation.WithMatch
	for _, c := range r.convs {
		m := r.matches[c.MatchID]
		if m.HasParticipant(userID) {
			out = append(out, conversation.WithMatch{Conversation: c, Match: m})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ActivityAt().After(out[j].ActivityAt())
	})
	return out, nil
}

func (r memConversations) IsParticipant(_ context.Context, conversationID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[conversationID]
	if !ok {
		return false, nil
	}
	return r.matches[c.MatchID].HasParticipant(userID), nil
}

type memMessages struct{ *memStore }

// messageBefore mirrors ORDER BY created_at, id.
func messageBefore(a, b message.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

func (r memMessages) Create(_ context.Context, m *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[m.ID]; ok {
		return tutor_errors.ErrAlreadyExists
	}
	r.messages[m.ID] = *m
	return nil
}

func (r memMessages) GetByID(_ context.Context, id uuid.UUID) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return message.Message{}, tutor_errors.ErrNotFound
	}
	return m, nil
}

func (r memMessages) newestFirst(conversationID uuid.UUID, keep func(message.Message) bool) []message.Message {
	var out []message.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID && keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return messageBefore(out[j], out[i]) })
	return out
}

func pageOf(all []message.Message, page, pageSize int) ([]message.Message, int64) {
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []message.Message{}, int64(len(all))
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all))
}

func (r memMessages) PageNewestFirst(_ context.Context, conversationID uuid.UUID, page, pageSize int) ([]message.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs, total := pageOf(r.newestFirst(conversationID, func(message.Message) bool { return true }), page, pageSize)
	return msgs, total, nil
}

func (r memMessages) SearchNewestFirst(_ context.Context, conversationID uuid.UUID, query string, page, pageSize int) ([]message.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToLower(query)
	msgs, total := pageOf(r.newestFirst(conversationID, func(m message.Message) bool {
		return strings.Contains(strings.ToLower(m.Content), q)
	}), page, pageSize)
	return msgs, total, nil
}

func (r memMessages) MarkRead(_ context.Context, conversationID, readerID uuid.UUID, upTo *message.Message, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.messages {
		if m.ConversationID != conversationID || m.SenderID == readerID || m.IsRead {
			continue
		}
		if upTo != nil && messageBefore(*upTo, m) {
			continue
		}
		m.IsRead = true
		m.ReadAt = &at
		m.UpdatedAt = at
		r.messages[id] = m
		n++
	}
	return n, nil
}

func (r memMessages) unreadFor(userID uuid.UUID) map[uuid.UUID]int64 {
	out := map[uuid.UUID]int64{}
	for _, m := range r.messages {
		if m.SenderID == userID || m.IsRead {
			continue
		}
		c, ok := r.convs[m.ConversationID]
		if !ok || !r.matches[c.MatchID].HasParticipant(userID) {
			continue
		}
		out[m.ConversationID]++
	}
	return out
}

func (r memMessages) UnreadCount(_ context.Context, conversationID, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unreadFor(userID)[conversationID], nil
}

func (r memMessages) TotalUnreadCount(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, n := range r.unreadFor(userID) {
		total += n
	}
	return total, nil
}

func (r memMessages) UnreadCountsByConversation(_ context.Context, userID uuid.UUID) (map[uuid.UUID]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unreadFor(userID), nil
}

func (r memMessages) LatestByConversations(_ context.Context, conversationIDs []uuid.UUID) (map[uuid.UUID]message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[uuid.UUID]message.Message{}
	for _, id := range conversationIDs {
		if msgs := r.newestFirst(id, func(message.Message) bool { return true }); len(msgs) > 0 {
			out[id] = msgs[0]
		}
	}
	return out, nil
}

func (r memMessages) DeleteBySender(_ context.Context, id, senderID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok || m.SenderID != senderID {
		return tutor_errors.ErrNotFound
	}
	delete(r.messages, id)
	return nil
}

// memUnitOfWork runs fn against the shared store. Rollback is not modelled.
type memUnitOfWork struct {
	store *memStore
}

func (u memUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, stores repository.Stores) error) error {
	return fn(ctx, u.store.stores())
}

type published struct {
	group string
	event events.Envelope
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (b *recordingBroadcaster) Publish(_ context.Context, group string, event events.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{group: group, event: event})
	return b.err
}

func (b *recordingBroadcaster) ofType(eventType string) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []published
	for _, p := range b.events {
		if p.event.EventType == eventType {
			out = append(out, p)
		}
	}
	return out
}

type fakePresence struct {
	online map[uuid.UUID]bool
}

func (p fakePresence) OnlineMap(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := map[uuid.UUID]bool{}
	for _, id := range ids {
		out[id] = p.online[id]
	}
	return out, nil
}

// harness wires every service against one memStore.
type harness struct {
	store         *memStore
	broadcaster   *recordingBroadcaster
	matches       *MatchService
	swipes        *SwipeService
	conversations *ConversationService
	messages      *MessageService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newMemStore()
	st := store.stores()
	b := &recordingBroadcaster{}
	access := proxy.NewAccessControl(st.Matches, st.Conversations)
	profiles := NewProfileService(st.Users, nil, nil, nil)

	matches := NewMatchService(st.Users, st.Swipes, st.Matches, access, b, nil)
	return &harness{
		store:         store,
		broadcaster:   b,
		matches:       matches,
		swipes:        NewSwipeService(st.Users, st.Swipes, matches, nil),
		conversations: NewConversationService(st.Conversations, st.Matches, st.Messages, profiles, access, nil),
		messages:      NewMessageService(memUnitOfWork{store: store}, st.Messages, access, b, PageLimits{}, nil),
	}
}

// matchedConversation creates a student, a tutor, their active match and its conversation.
func (h *harness) matchedConversation(t *testing.T) (user.User, user.User, conversation.Conversation) {
	t.Helper()
	ctx := context.Background()
	student := h.store.addUser(user.RoleStudent, "student")
	tutor := h.store.addUser(user.RoleTutor, "tutor")
	if _, err := h.swipes.Swipe(ctx, student.ID, tutor.ID, swipe.ActionLike); err != nil {
		t.Fatalf("student swipe: %v", err)
	}
	res, err := h.swipes.Swipe(ctx, tutor.ID, student.ID, swipe.ActionLike)
	if err != nil || res.Match == nil {
		t.Fatalf("tutor swipe: %+v %v", res, err)
	}
	conv, err := h.conversations.GetOrCreate(ctx, res.Match.ID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	return student, tutor, conv
}
