package room

import (
	"context"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/fanoshome/bingo/go/internal/events"
)

func TestLoadMergesSnapshot(t *testing.T) {
	fb := newFakeBackend(t)
	r := newTestRoom(t, fb)

	r.loader.Load(context.Background(), false)

	v := r.View()
	if v.Loading {
		t.Fatal("expected loading to be cleared")
	}
	if v.Round.ID != 1 || v.Round.RoundNumber != 7 || v.Round.Status != StatusWaiting {
		t.Fatalf("unexpected round: %+v", v.Round)
	}
	if v.Player.WalletBalance != 100 || !v.OwnsCard(3) {
		t.Fatalf("unexpected player: %+v", v.Player)
	}
	if !slices.Equal(v.SelectedCards, []int{3}) {
		t.Fatalf("selected cards = %v, want [3]", v.SelectedCards)
	}
	if len(v.Cards) != 4 {
		t.Fatalf("expected 4 cards, got %d", len(v.Cards))
	}
	if c, _ := v.Card(4); !c.TakenByOther() {
		t.Fatalf("card 4 should be taken by another player: %+v", c)
	}
	if v.DisplayedPot != 40 {
		t.Fatalf("displayed pot = %v, want 40", v.DisplayedPot)
	}
	if got := r.Cursor(); got != "2026-10-18T10:00:00Z" {
		t.Fatalf("cursor = %q, want snapshot timestamp", got)
	}
	if fb.lastAuth != "Bearer test-token" {
		t.Fatalf("authorization header = %q", fb.lastAuth)
	}
}

func TestLoadMergeIfChangedKeepsRevision(t *testing.T) {
	fb := newFakeBackend(t)
	r := newTestRoom(t, fb)
	ctx := context.Background()

	r.loader.Load(ctx, true)
	first := r.View().Revision

	r.loader.Load(ctx, true)
	if got := r.View().Revision; got != first {
		t.Fatalf("identical snapshot bumped revision %d -> %d", first, got)
	}

	fb.set(func(fb *fakeBackend) { fb.status.Game.PlayerCount = 9 })
	r.loader.Load(ctx, true)
	if got := r.View().Revision; got != first+1 {
		t.Fatalf("changed snapshot revision = %d, want %d", got, first+1)
	}
}

func TestLoadThrottle(t *testing.T) {
	fb := newFakeBackend(t)
	r := newTestRoom(t, fb)
	ctx := context.Background()

	r.loader.Load(ctx, false)
	r.loader.Load(ctx, false)
	if got := fb.count("status"); got != 1 {
		t.Fatalf("status calls = %d, want 1 within throttle window", got)
	}

	r.loader.Load(ctx, true)
	if got := fb.count("status"); got != 2 {
		t.Fatalf("forced load should bypass throttle, calls = %d", got)
	}

	r.clock.Advance(2 * time.Second)
	r.loader.Load(ctx, false)
	if got := fb.count("status"); got != 3 {
		t.Fatalf("status calls = %d, want 3 after throttle window", got)
	}
}

func TestLoadCardsCacheAndForcedInvalidation(t *testing.T) {
	fb := newFakeBackend(t)
	r := newTestRoom(t, fb)
	ctx := context.Background()

	r.loader.cfg.LoadThrottle = 0

	r.loader.Load(ctx, false)
	r.loader.Load(ctx, false)
	if got := fb.count("status"); got != 2 {
		t.Fatalf("status calls = %d, want 2", got)
	}
	if got := fb.count("cards"); got != 1 {
		t.Fatalf("cards calls = %d, want 1 while cached", got)
	}

	r.loader.Load(ctx, true)
	if got := fb.count("cards"); got != 2 {
		t.Fatalf("forced load should refetch cards, calls = %d", got)
	}

	r.clock.Advance(2 * time.Second)
	r.loader.Load(ctx, false)
	if got := fb.count("cards"); got != 3 {
		t.Fatalf("expired cache should refetch cards, calls = %d", got)
	}
}

func TestLoadPartialData(t *testing.T) {
	t.Run("cards failure keeps snapshot", func(t *testing.T) {
		fb := newFakeBackend(t)
		fb.cardsCode = http.StatusInternalServerError
		r := newTestRoom(t, fb)

		r.loader.Load(context.Background(), false)

		v := r.View()
		if len(v.Cards) != 0 {
			t.Fatalf("expected empty card default, got %d cards", len(v.Cards))
		}
		if v.Round.RoundNumber != 7 || v.Error != "" {
			t.Fatalf("snapshot should still apply: round=%+v error=%q", v.Round, v.Error)
		}
	})

	t.Run("status failure keeps cards", func(t *testing.T) {
		fb := newFakeBackend(t)
		fb.statusCode = http.StatusInternalServerError
		r := newTestRoom(t, fb)

		r.loader.Load(context.Background(), false)

		v := r.View()
		if len(v.Cards) != 4 {
			t.Fatalf("expected cards to apply, got %d", len(v.Cards))
		}
		if v.Error != msgLoadFailed {
			t.Fatalf("error = %q, want %q", v.Error, msgLoadFailed)
		}
		if v.Loading {
			t.Fatal("loading should be cleared on failure")
		}
		if r.Cursor() != "" {
			t.Fatal("failed snapshot must not seed the cursor")
		}
	})
}

func TestLoadErrorClassification(t *testing.T) {
	t.Run("network", func(t *testing.T) {
		fb := newFakeBackend(t)
		fb.statusDrop = true
		r := newTestRoom(t, fb)

		r.loader.Load(context.Background(), false)

		v := r.View()
		if !v.ConnectionError {
			t.Fatal("expected connection error flag")
		}
		if v.Error != "" {
			t.Fatalf("network errors should not set a message, got %q", v.Error)
		}

		fb.set(func(fb *fakeBackend) { fb.statusDrop = false })
		r.loader.Load(context.Background(), true)
		if r.View().ConnectionError {
			t.Fatal("successful load should clear the connection flag")
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		fb := newFakeBackend(t)
		fb.statusCode = http.StatusUnauthorized
		r := newTestRoom(t, fb)

		r.loader.Load(context.Background(), false)

		v := r.View()
		if v.Error != "" || v.ConnectionError {
			t.Fatalf("401 must stay silent, got error=%q connection=%v", v.Error, v.ConnectionError)
		}
	})
}

func TestLoadMissingRoundIsNoActiveGame(t *testing.T) {
	fb := newFakeBackend(t)
	fb.status.Round = nil
	r := newTestRoom(t, fb)

	r.loader.Load(context.Background(), false)

	v := r.View()
	if !v.NoActiveGame {
		t.Fatal("expected no active game")
	}
	if v.Round.ID != 0 || v.Round.Status != StatusWaiting {
		t.Fatalf("unexpected placeholder round: %+v", v.Round)
	}
	if got := r.Select(context.Background(), 1); got != OutcomeSkipped {
		t.Fatalf("select without a round = %v, want skipped", got)
	}
}

func TestModalShownAtMostOncePerRound(t *testing.T) {
	fb := newFakeBackend(t)
	fb.status = finishedStatus(1, 5, strPtr("abebe"), intPtr(4))
	r := newTestRoom(t, fb)
	ctx := context.Background()

	r.loader.Load(ctx, true)
	v := r.View()
	if v.Modal.Kind != ModalWinner || v.Modal.Round != 5 {
		t.Fatalf("expected winner modal for round 5, got %+v", v.Modal)
	}
	if v.Modal.Winner.Pattern != defaultWinningPattern {
		t.Fatalf("pattern = %q, want default", v.Modal.Winner.Pattern)
	}
	if v.Modal.Winner.IsUserWinner {
		t.Fatal("card 4 is not ours")
	}
	if v.NextRoundCountdown != 5 {
		t.Fatalf("next round countdown = %d, want 5", v.NextRoundCountdown)
	}

	// Same finished snapshot again: nothing new.
	r.loader.Load(ctx, true)
	if got := len(r.publisher.OfType(events.EventTypeWinnerAnnounced)); got != 1 {
		t.Fatalf("winner events = %d, want 1", got)
	}

	// Rollover dismisses the modal.
	fb.set(func(fb *fakeBackend) { fb.status = waitingStatus(2, 6, 30) })
	r.loader.Load(ctx, true)
	if r.View().Modal.Visible() {
		t.Fatal("rollover should dismiss the modal")
	}

	// A stale finished snapshot for round 5 must not reopen it.
	fb.set(func(fb *fakeBackend) { fb.status = finishedStatus(1, 5, strPtr("abebe"), intPtr(4)) })
	r.loader.Load(ctx, true)
	if r.View().Modal.Visible() {
		t.Fatal("modal reopened for an already shown round")
	}

	// The next round finishing shows it again.
	fb.set(func(fb *fakeBackend) { fb.status = finishedStatus(2, 6, nil, nil) })
	r.loader.Load(ctx, true)
	if v := r.View(); v.Modal.Kind != ModalNoWinner || v.Modal.Round != 6 {
		t.Fatalf("expected no-winner modal for round 6, got %+v", v.Modal)
	}
	if got := len(r.publisher.OfType(events.EventTypeNoWinnerAnnounced)); got != 1 {
		t.Fatalf("no-winner events = %d, want 1", got)
	}
}

func TestRolloverResetsRoundState(t *testing.T) {
	fb := newFakeBackend(t)
	fb.status = finishedStatus(1, 5, strPtr("You"), nil)
	r := newTestRoom(t, fb)
	ctx := context.Background()

	r.loader.Load(ctx, true)
	if !r.nextRound.Running() {
		t.Fatal("next round countdown should run while the modal shows")
	}
	r.clock.Advance(time.Second)
	waitFor(t, "next round tick", func() bool { return r.View().NextRoundCountdown == 4 })

	r.st.update(func() bool {
		r.st.overrides[1] = CardOverride{IsMine: true}
		return true
	})

	fb.set(func(fb *fakeBackend) { fb.status = waitingStatus(2, 6, 30) })
	r.loader.Load(ctx, true)

	v := r.View()
	if v.Modal.Visible() {
		t.Fatal("modal should be dismissed")
	}
	if v.NextRoundCountdown != 5 {
		t.Fatalf("next round countdown = %d, want reset to 5", v.NextRoundCountdown)
	}
	if r.nextRound.Running() {
		t.Fatal("next round countdown should be cancelled")
	}
	if len(v.Overrides) != 0 {
		t.Fatalf("previous round overrides should be cleared: %v", v.Overrides)
	}
	if got := len(r.publisher.OfType(events.EventTypeRoundRolledOver)); got != 1 {
		t.Fatalf("rollover events = %d, want 1", got)
	}
}

func TestIsUserWinner(t *testing.T) {
	cases := []struct {
		name   string
		round  Round
		player PlayerView
		want   bool
	}{
		{"has won flag", Round{Winner: strPtr("x")}, PlayerView{HasWon: true}, true},
		{"winner is you", Round{Winner: strPtr("You")}, PlayerView{}, true},
		{"owns winning card", Round{Winner: strPtr("x"), WinningCard: intPtr(3)}, PlayerView{Cards: []OwnedCard{{CardNumber: 3}}}, true},
		{"someone else", Round{Winner: strPtr("x"), WinningCard: intPtr(4)}, PlayerView{Cards: []OwnedCard{{CardNumber: 3}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isUserWinner(tc.round, tc.player); got != tc.want {
				t.Fatalf("isUserWinner = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNextRoundCountdownRunsToZero(t *testing.T) {
	fb := newFakeBackend(t)
	fb.status = finishedStatus(1, 5, nil, nil)
	r := newTestRoom(t, fb)

	r.loader.Load(context.Background(), true)
	if got := r.View().NextRoundCountdown; got != 5 {
		t.Fatalf("next round countdown = %d, want 5", got)
	}

	for want := 4; want >= 0; want-- {
		r.clock.Advance(time.Second)
		waitFor(t, "next round tick", func() bool { return r.View().NextRoundCountdown == want })
	}
	waitFor(t, "countdown stopped", func() bool { return !r.nextRound.Running() })

	r.clock.Advance(time.Second)
	if got := r.View().NextRoundCountdown; got != 0 {
		t.Fatalf("next round countdown = %d, want 0", got)
	}
}
