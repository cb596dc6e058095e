package room

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/fanoshome/bingo/go/internal/events"
)

var ErrAlreadyMounted = errors.New("room is already mounted")

// GameAPI is the backend surface a room needs. *bingo_api_client.BingoApiClient satisfies it.
type GameAPI interface {
	SnapshotAPI
	DeltaAPI
	SelectionAPI
	GetPlayerCount(ctx context.Context) (int, error)
}

// Room keeps one game room synchronized with the backend while mounted.
type Room struct {
	id        string
	cfg       Config
	clock     clockwork.Clock
	api       GameAPI
	publisher events.Publisher

	st        *store
	cache     *ResourceCache
	loader    *Loader
	poller    *Poller
	mutations *MutationController
	selection *Countdown
	nextRound *Countdown

	mounted atomic.Bool

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Room)

func WithClock(clock clockwork.Clock) Option {
	return func(r *Room) { r.clock = clock }
}

func WithPublisher(p events.Publisher) Option {
	return func(r *Room) { r.publisher = p }
}

func WithID(id string) Option {
	return func(r *Room) { r.id = id }
}

func New(gameAPI GameAPI, cfg Config, opts ...Option) *Room {
	r := &Room{
		id:        uuid.NewString(),
		cfg:       cfg.withDefaults(),
		clock:     clockwork.NewRealClock(),
		api:       gameAPI,
		publisher: events.NoOpPublisher{},
	}
	for _, opt := range opts {
		opt(r)
	}

	r.st = newStore(r.id)
	r.cache = NewResourceCache(r.clock, map[Resource]time.Duration{
		ResourceCards:       r.cfg.CardsCacheTTL,
		ResourcePlayerCount: r.cfg.PlayerCountCacheTTL,
	})
	r.selection = NewCountdown("selection", r.clock, r.st.tickSelection)
	r.nextRound = NewCountdown("next_round", r.clock, r.st.tickNextRound)

	r.loader = &Loader{
		api:       gameAPI,
		st:        r.st,
		cache:     r.cache,
		clock:     r.clock,
		cfg:       r.cfg,
		selection: r.selection,
		nextRound: r.nextRound,
		mounted:   r.Mounted,
		emit:      r.emit,
	}
	r.poller = &Poller{
		api:     gameAPI,
		st:      r.st,
		loader:  r.loader,
		mounted: r.Mounted,
	}
	r.mutations = &MutationController{
		api:     gameAPI,
		st:      r.st,
		cache:   r.cache,
		clock:   r.clock,
		cfg:     r.cfg,
		mounted: r.Mounted,
	}
	return r
}

func (r *Room) ID() string { return r.id }

func (r *Room) Config() Config { return r.cfg }

func (r *Room) Mounted() bool { return r.mounted.Load() }

// Mount performs the initial snapshot load and starts the snapshot and poll
// intervals. The intervals run until Unmount or until ctx is cancelled.
func (r *Room) Mount(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.mounted.CompareAndSwap(false, true) {
		return ErrAlreadyMounted
	}
	ctx, cancel := context.WithCancel(ctx)
	r.ctx, r.cancel = ctx, cancel

	log.Info().Str("room_id", r.id).Msg("mounting room")
	r.loader.Load(ctx, false)

	r.startInterval(ctx, "snapshot", r.cfg.SnapshotInterval, func(ctx context.Context) {
		r.loader.Load(ctx, false)
	})
	r.startInterval(ctx, "poll", r.cfg.PollInterval, r.poller.Poll)
	return nil
}

func (r *Room) startInterval(ctx context.Context, name string, every time.Duration, fn func(context.Context)) {
	ticker := r.clock.NewTicker(every)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()

		log.Debug().Str("room_id", r.id).Str("interval", name).Dur("every", every).Msg("interval started")
		for {
			select {
			case <-ctx.Done():
				log.Debug().Str("room_id", r.id).Str("interval", name).Msg("interval stopped")
				return
			case <-ticker.Chan():
				if !r.Mounted() {
					return
				}
				fn(ctx)
			}
		}
	}()
}

// Unmount stops every interval and countdown, waits for them, drops cached
// resources and closes subscriptions. Responses that arrive later are discarded.
func (r *Room) Unmount() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.mounted.CompareAndSwap(true, false) {
		return
	}
	if r.cancel != nil {
		r.cancel()
		r.ctx, r.cancel = nil, nil
	}
	r.wg.Wait()
	r.selection.Stop()
	r.nextRound.Stop()
	r.mutations.reset()
	r.loader.resetThrottle()
	r.cache.Clear()
	r.st.closeSubscribers()
	log.Info().Str("room_id", r.id).Msg("room unmounted")
}

// View returns a copy of the current room state.
func (r *Room) View() View {
	return r.st.snapshot()
}

// Subscribe returns a channel that always holds the latest view after each
// change. The channel is closed on Unmount or when cancel is called.
func (r *Room) Subscribe() (<-chan View, func()) {
	return r.st.subscribe()
}

// Cursor is the current poll cursor.
func (r *Room) Cursor() string {
	return r.st.getCursor()
}

// Refresh forces a full snapshot load. Unmount waits for it and cancels its
// requests.
func (r *Room) Refresh(ctx context.Context) {
	r.mu.Lock()
	if !r.Mounted() {
		r.mu.Unlock()
		return
	}
	roomCtx := r.ctx
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if roomCtx != nil {
		defer context.AfterFunc(roomCtx, cancel)()
	}

	r.loader.Load(ctx, true)
}

func (r *Room) Select(ctx context.Context, card int) Outcome {
	return r.mutations.Select(ctx, card)
}

func (r *Room) Deselect(ctx context.Context, card int) Outcome {
	return r.mutations.Deselect(ctx, card)
}

func (r *Room) Toggle(ctx context.Context, card int) Outcome {
	return r.mutations.Toggle(ctx, card)
}

// PlayerCount returns the cached player count, refreshing it when stale.
func (r *Room) PlayerCount(ctx context.Context) (int, error) {
	if !r.Mounted() {
		return 0, ErrNotMounted
	}
	count, err := cachedFetch(ctx, r.cache, ResourcePlayerCount, r.api.GetPlayerCount)
	if err != nil {
		return 0, err
	}
	r.st.update(func() bool {
		return setIfChanged(&r.st.view.Game.PlayerCount, count)
	})
	return count, nil
}

func (r *Room) emit(ctx context.Context, t events.EventType, round int, payload interface{}) {
	event, err := events.NewEvent(t, r.id, round, r.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to build event")
		return
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("event_type", string(t)).Msg("failed to publish event")
	}
}

func (s *store) tickSelection() bool {
	running := false
	s.update(func() bool {
		v := &s.view
		if v.Round.Status != StatusWaiting || v.Modal.Visible() || v.SelectionCountdown <= 0 {
			return false
		}
		v.SelectionCountdown--
		running = v.SelectionCountdown > 0
		return true
	})
	return running
}

func (s *store) tickNextRound() bool {
	running := false
	s.update(func() bool {
		v := &s.view
		if v.NextRoundCountdown <= 0 {
			return false
		}
		v.NextRoundCountdown--
		running = v.NextRoundCountdown > 0
		return true
	})
	return running
}
