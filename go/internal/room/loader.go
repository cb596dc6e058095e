package room

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	api "github.com/fanoshome/bingo/go/clients/bingo_api_client"
	"github.com/fanoshome/bingo/go/internal/events"
)

// SnapshotAPI is the part of the backend the loader reads from.
type SnapshotAPI interface {
	GetLightweightStatus(ctx context.Context) (*api.StatusResponse, error)
	GetAvailableCards(ctx context.Context) (*api.CardsResponse, error)
}

// Loader fetches the full snapshot and card inventory, merges them into the
// room state and detects round transitions.
type Loader struct {
	api       SnapshotAPI
	st        *store
	cache     *ResourceCache
	clock     clockwork.Clock
	cfg       Config
	selection *Countdown
	nextRound *Countdown
	mounted   func() bool
	emit      func(ctx context.Context, t events.EventType, round int, payload interface{})

	mu       sync.Mutex
	lastLoad time.Time
}

// transition collects the timer and event work decided under the state lock
// and carried out after it is released.
type transition struct {
	modal            Modal
	showModal        bool
	rolledOver       bool
	rolledOverRound  int
	restartSelection bool
	runSelection     bool
}

// Load refreshes the room from the backend. It never fails: errors become
// state flags. Unforced calls within the throttle window of the last
// successful load are skipped.
func (l *Loader) Load(ctx context.Context, force bool) {
	if !l.mounted() {
		return
	}

	l.mu.Lock()
	last := l.lastLoad
	l.mu.Unlock()
	if !force && !last.IsZero() && l.clock.Since(last) < l.cfg.LoadThrottle {
		log.Debug().Dur("since_last", l.clock.Since(last)).Msg("snapshot load throttled")
		return
	}
	if force {
		l.cache.Invalidate(ResourceCards)
	}

	cursorAtStart := l.st.getCursor()

	var (
		status    *api.StatusResponse
		cards     *api.CardsResponse
		statusErr error
		cardsErr  error
	)
	var g errgroup.Group
	g.Go(func() error {
		status, statusErr = l.api.GetLightweightStatus(ctx)
		return nil
	})
	g.Go(func() error {
		cards, cardsErr = cachedFetch(ctx, l.cache, ResourceCards, l.api.GetAvailableCards)
		return nil
	})
	_ = g.Wait()

	if !l.mounted() {
		log.Debug().Msg("discarding snapshot received after unmount")
		return
	}

	if statusErr != nil {
		log.Warn().Err(statusErr).Msg("failed to fetch lightweight status")
		status = &api.StatusResponse{}
	}
	if cardsErr != nil {
		log.Warn().Err(cardsErr).Msg("failed to fetch available cards")
		cards = &api.CardsResponse{}
	}

	var tr transition
	l.st.update(func() bool {
		changed := setIfChanged(&l.st.view.Loading, false)
		if statusErr != nil {
			changed = l.applyStatusFailureLocked(statusErr) || changed
		} else {
			changed = l.applyStatusLocked(status, cursorAtStart, &tr) || changed
		}
		changed = l.st.mergeCardsLocked(cardsFromPayload(cards.Cards)) || changed

		v := &l.st.view
		tr.runSelection = v.Round.Status == StatusWaiting && v.SelectionCountdown > 0 && !v.Modal.Visible()
		return changed
	})

	if statusErr == nil {
		l.mu.Lock()
		l.lastLoad = l.clock.Now()
		l.mu.Unlock()
	}

	l.finishTransition(ctx, tr)
}

// resetThrottle lets the next load through regardless of the last one.
func (l *Loader) resetThrottle() {
	l.mu.Lock()
	l.lastLoad = time.Time{}
	l.mu.Unlock()
}

func (l *Loader) applyStatusFailureLocked(err error) bool {
	v := &l.st.view
	switch classify(err) {
	case failureNetwork:
		return setIfChanged(&v.ConnectionError, true)
	case failureUnauthorized:
		return false
	default:
		return setIfChanged(&v.Error, msgLoadFailed)
	}
}

func (l *Loader) applyStatusLocked(status *api.StatusResponse, cursorAtStart string, tr *transition) bool {
	s := l.st
	v := &s.view

	changed := setIfChanged(&v.ConnectionError, false)
	changed = setIfChanged(&v.Error, "") || changed

	var next Round
	if status.Round == nil {
		next = Round{Status: StatusWaiting, CalledNumbers: []int{}}
		changed = setIfChanged(&v.NoActiveGame, true) || changed
	} else {
		next = roundFromPayload(status.Round)
		changed = setIfChanged(&v.NoActiveGame, false) || changed
	}
	changed = s.mergeRoundLocked(next) || changed

	if status.Player != nil {
		player := playerFromPayload(status.Player)
		changed = s.mergePlayerLocked(player) || changed
		selected := make([]int, 0, len(player.Cards))
		for _, c := range player.Cards {
			selected = append(selected, c.CardNumber)
		}
		slices.Sort(selected)
		if !slices.Equal(v.SelectedCards, selected) {
			v.SelectedCards = selected
			changed = true
		}
	}
	if status.Game != nil {
		changed = s.mergeGameLocked(gameFromPayload(status.Game)) || changed
	}

	changed = l.detectTransitionLocked(tr) || changed

	if !s.seenServerSeconds || s.lastServerSeconds != v.Round.TimeRemaining {
		s.seenServerSeconds = true
		s.lastServerSeconds = v.Round.TimeRemaining
		changed = setIfChanged(&v.SelectionCountdown, v.Round.TimeRemaining) || changed
		tr.restartSelection = true
	}

	if status.Timestamp != "" && (s.cursor == cursorAtStart || s.cursor == "") {
		s.cursor = status.Timestamp
	}
	return changed
}

// detectTransitionLocked shows the conclusion modal at most once per round
// and clears round state on the finished to waiting rollover.
func (l *Loader) detectTransitionLocked(tr *transition) bool {
	s := l.st
	v := &s.view
	status := v.Round.Status
	prev := s.prevStatus
	s.prevStatus = status

	switch {
	case status == StatusFinished && v.Round.RoundNumber > s.lastModalRound && !v.Modal.Visible():
		s.lastModalRound = v.Round.RoundNumber
		v.Modal = conclusionModal(v.Round, v.Player)
		v.NextRoundCountdown = l.cfg.NextRoundSeconds
		tr.showModal = true
		tr.modal = v.Modal
		log.Info().
			Int("round", v.Round.RoundNumber).
			Str("modal", v.Modal.Kind.String()).
			Msg("round finished")
		return true

	case status == StatusWaiting && prev == StatusFinished:
		v.Modal = Modal{}
		v.NextRoundCountdown = l.cfg.NextRoundSeconds
		if len(s.overrides) > 0 {
			s.overrides = make(map[int]CardOverride)
		}
		tr.rolledOver = true
		tr.rolledOverRound = v.Round.RoundNumber
		log.Info().Int("round", v.Round.RoundNumber).Msg("round rolled over")
		return true
	}
	return false
}

func (l *Loader) finishTransition(ctx context.Context, tr transition) {
	if !l.mounted() {
		return
	}
	if tr.rolledOver {
		l.nextRound.Stop()
		l.emit(ctx, events.EventTypeRoundRolledOver, tr.rolledOverRound, nil)
	}
	if tr.showModal {
		l.selection.Stop()
		l.nextRound.Start()
		if tr.modal.Kind == ModalWinner {
			w := tr.modal.Winner
			l.emit(ctx, events.EventTypeWinnerAnnounced, tr.modal.Round, events.WinnerPayload{
				Winner:       w.Winner,
				WinningCard:  w.Card,
				Prize:        w.Prize,
				Pattern:      w.Pattern,
				IsUserWinner: w.IsUserWinner,
			})
		} else {
			l.emit(ctx, events.EventTypeNoWinnerAnnounced, tr.modal.Round, nil)
		}
	}

	switch {
	case !tr.runSelection:
		l.selection.Stop()
	case tr.restartSelection || !l.selection.Running():
		l.selection.Start()
	}
}

func conclusionModal(round Round, player PlayerView) Modal {
	if round.Winner == nil || *round.Winner == "" {
		return Modal{Kind: ModalNoWinner, Round: round.RoundNumber}
	}

	pattern := defaultWinningPattern
	if round.WinningPattern != nil && *round.WinningPattern != "" {
		pattern = *round.WinningPattern
	}
	return Modal{
		Kind:  ModalWinner,
		Round: round.RoundNumber,
		Winner: &WinnerInfo{
			Winner:       *round.Winner,
			Card:         clonePtr(round.WinningCard),
			Prize:        round.PrizePool,
			Pattern:      pattern,
			Round:        round.RoundNumber,
			IsUserWinner: isUserWinner(round, player),
		},
	}
}

func isUserWinner(round Round, player PlayerView) bool {
	if player.HasWon {
		return true
	}
	if round.Winner != nil && *round.Winner == "You" {
		return true
	}
	return round.WinningCard != nil && ownsCard(player.Cards, *round.WinningCard)
}
