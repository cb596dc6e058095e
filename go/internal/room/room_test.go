package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fanoshome/bingo/go/internal/events"
)

func newMountableRoom(t *testing.T, fb *fakeBackend) (*Room, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	r := New(fb.client(), DefaultConfig(), WithClock(clock), WithPublisher(events.NewMemoryPublisher()))
	t.Cleanup(r.Unmount)
	return r, clock
}

func TestMountLoadsAndStartsIntervals(t *testing.T) {
	fb := newFakeBackend(t)
	r, clock := newMountableRoom(t, fb)
	ctx := context.Background()

	if err := r.Mount(ctx); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if err := r.Mount(ctx); !errors.Is(err, ErrAlreadyMounted) {
		t.Fatalf("second mount err = %v, want ErrAlreadyMounted", err)
	}
	if got := fb.count("status"); got != 1 {
		t.Fatalf("initial load calls = %d, want 1", got)
	}

	clock.Advance(2 * time.Second)
	waitFor(t, "poll interval", func() bool { return fb.count("poll") == 1 })

	clock.Advance(3 * time.Second)
	waitFor(t, "snapshot interval", func() bool { return fb.count("status") == 2 })
}

func TestUnmountStopsEverything(t *testing.T) {
	fb := newFakeBackend(t)
	r, clock := newMountableRoom(t, fb)
	ctx := context.Background()

	if err := r.Mount(ctx); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if _, err := r.PlayerCount(ctx); err != nil {
		t.Fatalf("player count: %v", err)
	}

	views, _ := r.Subscribe()
	r.Unmount()

	if r.Mounted() {
		t.Fatal("room still mounted")
	}
	if r.selection.Running() || r.nextRound.Running() {
		t.Fatal("countdowns still running after unmount")
	}
	if _, ok := r.cache.Get(ResourcePlayerCount); ok {
		t.Fatal("cache should be cleared on unmount")
	}
	for range views {
	}

	statusCalls, pollCalls := fb.count("status"), fb.count("poll")
	clock.Advance(10 * time.Second)
	r.Refresh(ctx)
	time.Sleep(20 * time.Millisecond)
	if fb.count("status") != statusCalls || fb.count("poll") != pollCalls {
		t.Fatal("requests issued after unmount")
	}
	if _, err := r.PlayerCount(ctx); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("player count after unmount err = %v", err)
	}

	// Unmount is idempotent.
	r.Unmount()
}

func TestLateMutationResponseDiscardedAfterUnmount(t *testing.T) {
	fb := newFakeBackend(t)
	gate := make(chan struct{})
	fb.selectGate = gate
	r, _ := newMountableRoom(t, fb)
	ctx := context.Background()

	if err := r.Mount(ctx); err != nil {
		t.Fatalf("mount: %v", err)
	}

	done := make(chan Outcome, 1)
	go func() { done <- r.Select(ctx, 1) }()
	waitFor(t, "mutation in flight", func() bool { return r.View().Mutation == MutationMutating })

	r.Unmount()
	pending := r.View()
	if len(pending.Overrides) != 0 || pending.Mutation != MutationIdle {
		t.Fatalf("unmount should drop pending changes: overrides=%v mutation=%v", pending.Overrides, pending.Mutation)
	}
	close(gate)
	<-done

	if got := r.View(); got.Revision != pending.Revision {
		t.Fatalf("late response changed state after unmount: revision %d -> %d", pending.Revision, got.Revision)
	}
}

func TestRemountStartsFromServerData(t *testing.T) {
	fb := newFakeBackend(t)
	gate := make(chan struct{})
	fb.selectGate = gate
	r, clock := newMountableRoom(t, fb)
	ctx := context.Background()

	if err := r.Mount(ctx); err != nil {
		t.Fatalf("mount: %v", err)
	}
	done := make(chan Outcome, 1)
	go func() { done <- r.Select(ctx, 1) }()
	waitFor(t, "mutation in flight", func() bool { return r.View().Mutation == MutationMutating })

	r.Unmount()
	close(gate)
	<-done

	// The settle delay of the discarded change must not fire into the next mount.
	clock.Advance(time.Second)

	fb.set(func(fb *fakeBackend) { fb.selectGate = nil })
	if err := r.Mount(ctx); err != nil {
		t.Fatalf("remount: %v", err)
	}
	if got := fb.count("status"); got != 2 {
		t.Fatalf("status calls = %d, want the remount load to bypass the throttle", got)
	}

	v := r.View()
	if len(v.Overrides) != 0 {
		t.Fatalf("overrides survived remount: %v", v.Overrides)
	}
	if c, _ := v.Card(1); c.IsMine || !c.IsAvailable {
		t.Fatalf("card 1 should show server truth: %+v", c)
	}
	if v.Player.WalletBalance != 100 || v.OwnsCard(1) {
		t.Fatalf("player not reloaded: balance=%v cards=%v", v.Player.WalletBalance, v.Player.Cards)
	}
	if got := r.Select(ctx, 2); got != OutcomeConfirmed {
		t.Fatalf("select after remount = %v, want confirmed", got)
	}
}

func TestUnmountWaitsForRefresh(t *testing.T) {
	fb := newFakeBackend(t)
	r, _ := newMountableRoom(t, fb)
	ctx := context.Background()

	if err := r.Mount(ctx); err != nil {
		t.Fatalf("mount: %v", err)
	}
	fb.set(func(fb *fakeBackend) { fb.statusGate = make(chan struct{}) })

	refreshed := make(chan struct{})
	go func() {
		r.Refresh(ctx)
		close(refreshed)
	}()
	waitFor(t, "refresh in flight", func() bool { return fb.count("status") == 2 })

	r.Unmount()
	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh still running after unmount")
	}
	if r.selection.Running() || r.nextRound.Running() {
		t.Fatal("refresh restarted a countdown after unmount")
	}
}

func TestSubscribeReceivesLatestView(t *testing.T) {
	fb := newFakeBackend(t)
	r, _ := newMountableRoom(t, fb)
	ctx := context.Background()

	views, cancel := r.Subscribe()
	defer cancel()

	if err := r.Mount(ctx); err != nil {
		t.Fatalf("mount: %v", err)
	}

	var last View
	waitFor(t, "loaded view", func() bool {
		select {
		case v := <-views:
			last = v
		default:
		}
		return last.Round.RoundNumber == 7
	})
	if last.RoomID != r.ID() {
		t.Fatalf("room id = %q, want %q", last.RoomID, r.ID())
	}
}

func TestPlayerCountIsCached(t *testing.T) {
	fb := newFakeBackend(t)
	r, clock := newMountableRoom(t, fb)
	ctx := context.Background()

	if err := r.Mount(ctx); err != nil {
		t.Fatalf("mount: %v", err)
	}
	fb.set(func(fb *fakeBackend) { fb.playerCount = 8 })

	for i := 0; i < 3; i++ {
		n, err := r.PlayerCount(ctx)
		if err != nil || n != 8 {
			t.Fatalf("player count = %d, %v", n, err)
		}
	}
	if got := fb.count("player_count"); got != 1 {
		t.Fatalf("player count requests = %d, want 1", got)
	}
	if got := r.View().Game.PlayerCount; got != 8 {
		t.Fatalf("view player count = %d, want 8", got)
	}

	clock.Advance(5 * time.Second)
	if _, err := r.PlayerCount(ctx); err != nil {
		t.Fatal(err)
	}
	if got := fb.count("player_count"); got != 2 {
		t.Fatalf("player count requests = %d, want 2 after expiry", got)
	}
}
