package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tutor-match/internal/domain/match"
	"tutor-match/internal/domain/swipe"
	"tutor-match/internal/domain/user"
	"tutor-match/internal/events"
	tutor_errors "tutor-match/pkg/errors"

	"github.com/google/uuid"
)

func TestMutualLikeCreatesSingleActiveMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s1 := h.store.addUser(user.RoleStudent, "S1")
	t1 := h.store.addUser(user.RoleTutor, "T1")

	first, err := h.swipes.Swipe(ctx, s1.ID, t1.ID, swipe.ActionLike)
	if err != nil {
		t.Fatalf("swipe S1->T1: %v", err)
	}
	if first.MutualLikeDetected || first.Match != nil || first.Status != SwipeStatusRecorded {
		t.Fatalf("unexpected first swipe result %+v", first)
	}

	second, err := h.swipes.Swipe(ctx, t1.ID, s1.ID, swipe.ActionLike)
	if err != nil {
		t.Fatalf("swipe T1->S1: %v", err)
	}
	if !second.MutualLikeDetected || second.Match == nil || second.Status != SwipeStatusMatched {
		t.Fatalf("expected match, got %+v", second)
	}
	if second.Match.Status != match.StatusActive || second.Match.StudentID != s1.ID || second.Match.TutorID != t1.ID {
		t.Fatalf("unexpected match %+v", second.Match)
	}

	again, err := h.swipes.Swipe(ctx, s1.ID, t1.ID, swipe.ActionLike)
	if err != nil {
		t.Fatalf("repeat swipe: %v", err)
	}
	if again.Match == nil || again.Match.ID != second.Match.ID {
		t.Fatalf("repeat swipe returned a different match: %+v", again.Match)
	}
	if n := h.store.activeMatches(s1.ID, t1.ID); n != 1 {
		t.Fatalf("expected 1 active match, got %d", n)
	}

	created := h.broadcaster.ofType(events.EventTypeMatchCreated)
	if len(created) != 2 {
		t.Fatalf("expected match.created for both users, got %d", len(created))
	}
}

func TestConcurrentMutualLikesProduceOneActiveMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.store.addUser(user.RoleStudent, "s")
	tutor := h.store.addUser(user.RoleTutor, "t")

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor, target := student.ID, tutor.ID
			if i%2 == 1 {
				actor, target = tutor.ID, student.ID
			}
			if _, err := h.swipes.Swipe(ctx, actor, target, swipe.ActionLike); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("swipe failed: %v", err)
	}

	if n := h.store.activeMatches(student.ID, tutor.ID); n != 1 {
		t.Fatalf("expected exactly 1 active match, got %d", n)
	}
}

func TestConcurrentEvaluationReturnsSameMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.store.addUser(user.RoleStudent, "s")
	tutor := h.store.addUser(user.RoleTutor, "t")
	if _, err := h.swipes.Record(ctx, student.ID, tutor.ID, swipe.ActionLike); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := h.swipes.Record(ctx, tutor.ID, student.ID, swipe.ActionLike); err != nil {
		t.Fatalf("record: %v", err)
	}

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := h.matches.EvaluateAndMaybeMatch(ctx, student.ID, tutor.ID)
			if err != nil || m == nil {
				return
			}
			ids[i] = m.ID.String()
		}(i)
	}
	wg.Wait()

	for i, id := range ids {
		if id == "" || id != ids[0] {
			t.Fatalf("evaluation %d returned %q, want %q", i, id, ids[0])
		}
	}
}

func TestRepeatedSwipeIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.store.addUser(user.RoleStudent, "s")
	tutor := h.store.addUser(user.RoleTutor, "t")

	var results []RecordResult
	for i := 0; i < 3; i++ {
		res, err := h.swipes.Record(ctx, student.ID, tutor.ID, swipe.ActionDislike)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		results = append(results, res)
	}
	for _, res := range results {
		if res != results[0] {
			t.Fatalf("results differ: %+v", results)
		}
	}
	if len(h.store.swipes) != 1 {
		t.Fatalf("expected one swipe row, got %d", len(h.store.swipes))
	}

	// A later swipe overwrites the action.
	if _, err := h.swipes.Record(ctx, student.ID, tutor.ID, swipe.ActionLike); err != nil {
		t.Fatalf("record: %v", err)
	}
	sw, _ := h.store.stores().Swipes.Get(ctx, student.ID, tutor.ID)
	if sw.Action != swipe.ActionLike {
		t.Fatalf("expected overwrite to LIKE, got %s", sw.Action)
	}
}

func TestSwipeValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s1 := h.store.addUser(user.RoleStudent, "s1")
	s2 := h.store.addUser(user.RoleStudent, "s2")
	tutor := h.store.addUser(user.RoleTutor, "t")

	cases := []struct {
		name   string
		actor  user.User
		target user.User
		action swipe.Action
		want   error
	}{
		{"self", s1, s1, swipe.ActionLike, tutor_errors.ErrInvalidInput},
		{"bad action", s1, tutor, swipe.Action("LOVE"), tutor_errors.ErrInvalidInput},
		{"same role", s1, s2, swipe.ActionLike, tutor_errors.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.swipes.Swipe(ctx, tc.actor.ID, tc.target.ID, tc.action)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	h.store.mu.Lock()
	delete(h.store.users, tutor.ID)
	h.store.mu.Unlock()
	if _, err := h.swipes.Swipe(ctx, s1.ID, tutor.ID, swipe.ActionLike); !errors.Is(err, tutor_errors.ErrNotFound) {
		t.Fatalf("expected not found for missing user, got %v", err)
	}
}

func TestSuperLikeIsNotMutualLike(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.store.addUser(user.RoleStudent, "s")
	tutor := h.store.addUser(user.RoleTutor, "t")

	if _, err := h.swipes.Swipe(ctx, student.ID, tutor.ID, swipe.ActionSuperLike); err != nil {
		t.Fatalf("swipe: %v", err)
	}
	res, err := h.swipes.Swipe(ctx, tutor.ID, student.ID, swipe.ActionLike)
	if err != nil {
		t.Fatalf("swipe: %v", err)
	}
	if res.MutualLikeDetected || res.Match != nil {
		t.Fatalf("super like must not count as mutual like: %+v", res)
	}
}

func TestAcceptPendingMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.store.addUser(user.RoleStudent, "s")
	tutor := h.store.addUser(user.RoleTutor, "t")

	if _, err := h.matches.AcceptPendingMatch(ctx, tutor.ID, student.ID); !errors.Is(err, tutor_errors.ErrPreconditionFailed) {
		t.Fatalf("expected precondition failure without a like, got %v", err)
	}
	if _, err := h.matches.AcceptPendingMatch(ctx, student.ID, tutor.ID); !errors.Is(err, tutor_errors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for swapped roles, got %v", err)
	}

	if _, err := h.swipes.Swipe(ctx, student.ID, tutor.ID, swipe.ActionLike); err != nil {
		t.Fatalf("swipe: %v", err)
	}
	m, err := h.matches.AcceptPendingMatch(ctx, tutor.ID, student.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if m.Status != match.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", m.Status)
	}

	again, err := h.matches.AcceptPendingMatch(ctx, tutor.ID, student.ID)
	if err != nil || again.ID != m.ID {
		t.Fatalf("accept should be idempotent, got %v %v", again.ID, err)
	}
	if n := h.store.activeMatches(student.ID, tutor.ID); n != 1 {
		t.Fatalf("expected 1 active match, got %d", n)
	}
}

func TestMatchTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student, tutor, conv := h.matchedConversation(t)
	h.store.backdateSwipes(time.Hour)
	outsider := h.store.addUser(user.RoleStudent, "x")
	matchID := conv.MatchID

	if _, err := h.matches.Block(ctx, matchID, outsider.ID); !errors.Is(err, tutor_errors.ErrForbidden) {
		t.Fatalf("expected forbidden for outsider, got %v", err)
	}
	if _, err := h.matches.Decline(ctx, matchID, tutor.ID); !errors.Is(err, tutor_errors.ErrInvalidTransition) {
		t.Fatalf("ACTIVE cannot be declined, got %v", err)
	}

	m, err := h.matches.Deactivate(ctx, matchID, student.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if m.Status != match.StatusInactive {
		t.Fatalf("expected INACTIVE, got %s", m.Status)
	}
	if _, err := h.matches.Block(ctx, matchID, tutor.ID); !errors.Is(err, tutor_errors.ErrInvalidTransition) {
		t.Fatalf("INACTIVE is terminal, got %v", err)
	}

	// The old likes predate the deactivation, so evaluation alone does not revive the pair.
	if again, err := h.matches.EvaluateAndMaybeMatch(ctx, student.ID, tutor.ID); err != nil || again != nil {
		t.Fatalf("stale likes must not rematch: %v %v", again, err)
	}
}

func TestRematchAfterDeactivateNeedsFreshLikes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student, tutor, conv := h.matchedConversation(t)
	h.store.backdateSwipes(time.Hour)

	if _, err := h.matches.Deactivate(ctx, conv.MatchID, tutor.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	res, err := h.swipes.Swipe(ctx, student.ID, tutor.ID, swipe.ActionLike)
	if err != nil {
		t.Fatalf("student re-like: %v", err)
	}
	if res.Match != nil || res.Status != SwipeStatusRecorded {
		t.Fatalf("one renewed like must not rematch, got %+v", res)
	}
	if n := h.store.activeMatches(student.ID, tutor.ID); n != 0 {
		t.Fatalf("expected no active match, got %d", n)
	}

	res, err = h.swipes.Swipe(ctx, tutor.ID, student.ID, swipe.ActionLike)
	if err != nil {
		t.Fatalf("tutor re-like: %v", err)
	}
	if res.Match == nil || res.Status != SwipeStatusMatched || res.Match.ID == conv.MatchID {
		t.Fatalf("expected a new match row, got %+v", res)
	}
	if n := h.store.activeMatches(student.ID, tutor.ID); n != 1 {
		t.Fatalf("expected 1 active match, got %d", n)
	}
}

func TestBlockedPairIsNotRevived(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student, tutor, conv := h.matchedConversation(t)
	h.store.backdateSwipes(time.Hour)

	if _, err := h.matches.Block(ctx, conv.MatchID, tutor.ID); err != nil {
		t.Fatalf("block: %v", err)
	}

	res, err := h.swipes.Swipe(ctx, student.ID, tutor.ID, swipe.ActionLike)
	if err != nil {
		t.Fatalf("student repeat like: %v", err)
	}
	if res.Match != nil || res.Status != SwipeStatusRecorded {
		t.Fatalf("blocked student revived the pair: %+v", res)
	}

	// Even renewed interest from both sides leaves a blocked pair alone.
	if res, err = h.swipes.Swipe(ctx, tutor.ID, student.ID, swipe.ActionLike); err != nil || res.Match != nil {
		t.Fatalf("blocked pair rematched on tutor like: %+v %v", res, err)
	}
	if _, err := h.matches.AcceptPendingMatch(ctx, tutor.ID, student.ID); !errors.Is(err, tutor_errors.ErrForbidden) {
		t.Fatalf("expected forbidden accept on blocked pair, got %v", err)
	}
	if n := h.store.activeMatches(student.ID, tutor.ID); n != 0 {
		t.Fatalf("expected no active match, got %d", n)
	}
}

func TestAcceptAfterDeactivateNeedsRenewedLike(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student, tutor, conv := h.matchedConversation(t)
	h.store.backdateSwipes(time.Hour)

	if _, err := h.matches.Deactivate(ctx, conv.MatchID, student.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := h.matches.AcceptPendingMatch(ctx, tutor.ID, student.ID); !errors.Is(err, tutor_errors.ErrPreconditionFailed) {
		t.Fatalf("expected precondition failure on stale like, got %v", err)
	}

	if _, err := h.swipes.Record(ctx, student.ID, tutor.ID, swipe.ActionLike); err != nil {
		t.Fatalf("renew like: %v", err)
	}
	m, err := h.matches.AcceptPendingMatch(ctx, tutor.ID, student.ID)
	if err != nil || m.Status != match.StatusActive || m.ID == conv.MatchID {
		t.Fatalf("expected a new active match, got %+v %v", m, err)
	}
}

func TestDeclinePendingIsTutorOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.store.addUser(user.RoleStudent, "s")
	tutor := h.store.addUser(user.RoleTutor, "t")
	now := tutor_errors.NowUTC()
	pending := match.Match{ID: uuid.New(), StudentID: student.ID, TutorID: tutor.ID, Status: match.StatusPending, MatchedAt: now, LastActivity: now}
	if _, err := h.store.stores().Matches.CreateIfAbsent(ctx, &pending); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := h.matches.Decline(ctx, pending.ID, student.ID); !errors.Is(err, tutor_errors.ErrForbidden) {
		t.Fatalf("student cannot decline, got %v", err)
	}
	m, err := h.matches.Decline(ctx, pending.ID, tutor.ID)
	if err != nil || m.Status != match.StatusRejected {
		t.Fatalf("decline: %+v %v", m, err)
	}
}

func TestListAndCountForUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student, _, _ := h.matchedConversation(t)

	list, total, err := h.matches.ListForUser(ctx, student.ID, match.Filter{})
	if err != nil || total != 1 || len(list) != 1 {
		t.Fatalf("list: %d %d %v", len(list), total, err)
	}

	active := match.StatusActive
	n, err := h.matches.CountForUser(ctx, student.ID, &active)
	if err != nil || n != 1 {
		t.Fatalf("count: %d %v", n, err)
	}

	bogus := match.Status("MAYBE")
	if _, _, err := h.matches.ListForUser(ctx, student.ID, match.Filter{Status: &bogus}); !errors.Is(err, tutor_errors.ErrInvalidInput) {
		t.Fatalf("expected invalid status to be rejected, got %v", err)
	}
}

func TestReconcileMutualLikes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.store.addUser(user.RoleStudent, "s")
	tutor := h.store.addUser(user.RoleTutor, "t")

	// Both swipes recorded, evaluation never ran.
	for _, pair := range [][2]user.User{{student, tutor}, {tutor, student}} {
		if _, err := h.swipes.Record(ctx, pair[0].ID, pair[1].ID, swipe.ActionLike); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	pairs, err := h.store.stores().Swipes.MutualLikesWithoutMatch(ctx, tutor_errors.NowUTC().Add(-time.Hour), 10)
	if err != nil || len(pairs) != 1 {
		t.Fatalf("expected one pending pair, got %v %v", pairs, err)
	}
	n, err := h.matches.ReconcileMutualLikes(ctx, pairs)
	if err != nil || n != 1 {
		t.Fatalf("reconcile: %d %v", n, err)
	}
	if got := h.store.activeMatches(student.ID, tutor.ID); got != 1 {
		t.Fatalf("expected 1 active match, got %d", got)
	}
}
