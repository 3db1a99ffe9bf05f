package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tutor-match/internal/domain/match"
	"tutor-match/internal/domain/user"
	"tutor-match/internal/proxy"
	tutor_errors "tutor-match/pkg/errors"

	"github.com/google/uuid"
)

func seedActiveMatch(t *testing.T, store *memStore) (user.User, user.User, match.Match) {
	t.Helper()
	student := store.addUser(user.RoleStudent, "Sam")
	tutor := store.addUser(user.RoleTutor, "Tara")
	now := tutor_errors.NowUTC()
	m := match.Match{ID: uuid.New(), StudentID: student.ID, TutorID: tutor.ID, Status: match.StatusActive, MatchedAt: now, LastActivity: now}
	if _, err := store.stores().Matches.CreateIfAbsent(context.Background(), &m); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	return student, tutor, m
}

func TestGetOrCreateConcurrentCallersShareOneConversation(t *testing.T) {
	h := newHarness(t)
	_, _, m := seedActiveMatch(t, h.store)

	const n = 20
	ids := make([]uuid.UUID, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := h.conversations.GetOrCreate(context.Background(), m.ID)
			ids[i], errs[i] = conv.ID, err
		}(i)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got %s, want %s", i, ids[i], ids[0])
		}
	}
	if got := h.store.conversationsForMatch(m.ID); got != 1 {
		t.Fatalf("expected one conversation row, got %d", got)
	}
}

func TestGetOrCreateUnknownMatch(t *testing.T) {
	h := newHarness(t)
	if _, err := h.conversations.GetOrCreate(context.Background(), uuid.New()); !errors.Is(err, tutor_errors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOpenForUserRequiresParticipant(t *testing.T) {
	h := newHarness(t)
	_, _, m := seedActiveMatch(t, h.store)
	outsider := h.store.addUser(user.RoleStudent, "x")

	if _, err := h.conversations.OpenForUser(context.Background(), m.ID, outsider.ID); !errors.Is(err, tutor_errors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if got := h.store.conversationsForMatch(m.ID); got != 0 {
		t.Fatalf("forbidden open must not create a conversation")
	}
}

func TestListForUserEnrichesViews(t *testing.T) {
	store := newMemStore()
	st := store.stores()
	student, tutor, m := seedActiveMatch(t, store)
	access := proxy.NewAccessControl(st.Matches, st.Conversations)
	profiles := NewProfileService(st.Users, nil, fakePresence{online: map[uuid.UUID]bool{tutor.ID: true}}, nil)
	convs := NewConversationService(st.Conversations, st.Matches, st.Messages, profiles, access, nil)
	msgs := NewMessageService(memUnitOfWork{store: store}, st.Messages, access, nil, PageLimits{}, nil)
	ctx := context.Background()

	conv, err := convs.GetOrCreate(ctx, m.ID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	for _, text := range []string{"hi", "are you free thursday?"} {
		if _, err := msgs.Send(ctx, conv.ID, tutor.ID, SendInput{Content: text}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	views, err := convs.ListForUser(ctx, student.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected one view, got %d", len(views))
	}
	v := views[0]
	if v.Counterpart.UserID != tutor.ID || v.Counterpart.DisplayName != "Tara" || !v.Counterpart.IsOnline {
		t.Fatalf("unexpected counterpart %+v", v.Counterpart)
	}
	if v.LastMessage == nil || v.LastMessage.Content != "are you free thursday?" {
		t.Fatalf("unexpected preview %+v", v.LastMessage)
	}
	if v.UnreadCount != 2 {
		t.Fatalf("expected 2 unread, got %d", v.UnreadCount)
	}
	if !v.ActivityAt.Equal(v.LastMessage.CreatedAt) {
		t.Fatalf("activity should follow the last message, got %v vs %v", v.ActivityAt, v.LastMessage.CreatedAt)
	}

	tutorViews, err := convs.ListForUser(ctx, tutor.ID)
	if err != nil || len(tutorViews) != 1 || tutorViews[0].UnreadCount != 0 {
		t.Fatalf("tutor view: %+v %v", tutorViews, err)
	}
	if tutorViews[0].Counterpart.IsOnline {
		t.Fatalf("student should be offline")
	}
}

func TestIsUserInConversation(t *testing.T) {
	h := newHarness(t)
	student, _, conv := h.matchedConversation(t)
	ctx := context.Background()

	ok, err := h.conversations.IsUserInConversation(ctx, conv.ID, student.ID)
	if err != nil || !ok {
		t.Fatalf("participant check: %v %v", ok, err)
	}
	ok, err = h.conversations.IsUserInConversation(ctx, conv.ID, uuid.New())
	if err != nil || ok {
		t.Fatalf("outsider check: %v %v", ok, err)
	}
}
