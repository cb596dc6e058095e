package room

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/fanoshome/bingo/go/clients"
	api "github.com/fanoshome/bingo/go/clients/bingo_api_client"
)

// SelectionAPI submits card intents.
type SelectionAPI interface {
	SelectCard(ctx context.Context, roundID int64, cardNumber int) (*api.SelectionResponse, error)
	DeselectCard(ctx context.Context, roundID int64, cardNumber int) (*api.SelectionResponse, error)
}

// Outcome is the result of a card intent.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeConfirmed
	OutcomeRolledBack
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeRolledBack:
		return "rolled_back"
	default:
		return "skipped"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

var errRejected = errors.New("rejected by server")

// MutationController applies card selection optimistically and rolls back
// exactly on failure. Only one mutation is in flight at a time.
type MutationController struct {
	api     SelectionAPI
	st      *store
	cache   *ResourceCache
	clock   clockwork.Clock
	cfg     Config
	mounted func() bool

	mu     sync.Mutex
	settle clockwork.Timer
}

// rollbackPoint is everything an optimistic change touches.
type rollbackPoint struct {
	card          int
	override      CardOverride
	hadOverride   bool
	visible       AvailableCard
	hadVisible    bool
	balance       float64
	stake         float64
	ownedCards    []OwnedCard
	selectedCards []int
}

func (m *MutationController) Select(ctx context.Context, card int) Outcome {
	return m.mutate(ctx, card, true)
}

func (m *MutationController) Deselect(ctx context.Context, card int) Outcome {
	return m.mutate(ctx, card, false)
}

// Toggle deselects an owned card and selects an available one. Cards held
// by other players are refused.
func (m *MutationController) Toggle(ctx context.Context, card int) Outcome {
	var (
		found   bool
		current AvailableCard
	)
	m.st.read(func() {
		current, found = m.st.view.Card(card)
	})
	if !found {
		log.Debug().Int("card", card).Err(ErrUnknownCard).Msg("toggle skipped")
		return OutcomeSkipped
	}
	if current.TakenByOther() {
		log.Debug().Int("card", card).Err(ErrCardTaken).Msg("toggle skipped")
		return OutcomeSkipped
	}
	return m.mutate(ctx, card, !current.IsMine)
}

func (m *MutationController) mutate(ctx context.Context, card int, selecting bool) Outcome {
	if !m.mounted() {
		return OutcomeSkipped
	}

	var (
		rb      rollbackPoint
		roundID int64
		skipErr error
	)
	m.st.update(func() bool {
		if skipErr = m.precheckLocked(); skipErr != nil {
			return false
		}
		roundID = m.st.view.Round.ID
		rb = m.captureLocked(card)
		m.applyLocked(card, selecting)
		return true
	})
	if skipErr != nil {
		log.Debug().Int("card", card).Bool("select", selecting).Err(skipErr).Msg("card change skipped")
		return OutcomeSkipped
	}

	var (
		resp *api.SelectionResponse
		err  error
	)
	if selecting {
		resp, err = m.api.SelectCard(ctx, roundID, card)
	} else {
		resp, err = m.api.DeselectCard(ctx, roundID, card)
	}
	if err == nil && (resp == nil || !resp.Success) {
		err = errRejected
	}

	outcome := OutcomeConfirmed
	if err != nil {
		outcome = OutcomeRolledBack
	}

	if m.mounted() {
		m.st.update(func() bool {
			if err != nil {
				m.rollbackLocked(rb, rejectionNotice(err, resp, selecting))
				return true
			}
			v := &m.st.view
			v.Player.WalletBalance = resp.WalletBalance
			v.Round.TotalStake = resp.TotalStake
			delete(m.st.overrides, card)
			return true
		})
	}

	if err != nil {
		log.Warn().Err(err).Int("card", card).Bool("select", selecting).Msg("card change rolled back")
	} else {
		m.cache.Invalidate(ResourceCards)
		log.Info().Int("card", card).Bool("select", selecting).Msg("card change confirmed")
	}

	if m.mounted() {
		m.scheduleSettle()
	}
	return outcome
}

func (m *MutationController) scheduleSettle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settle != nil {
		m.settle.Stop()
	}
	m.settle = m.clock.AfterFunc(m.cfg.SettleDelay, func() {
		if !m.mounted() {
			return
		}
		m.st.update(func() bool {
			return setIfChanged(&m.st.view.Mutation, MutationIdle)
		})
	})
}

// reset cancels a pending settle and drops every pending override so a later
// mount starts from server data.
func (m *MutationController) reset() {
	m.mu.Lock()
	if m.settle != nil {
		m.settle.Stop()
		m.settle = nil
	}
	m.mu.Unlock()

	m.st.update(func() bool {
		changed := setIfChanged(&m.st.view.Mutation, MutationIdle)
		if len(m.st.overrides) > 0 {
			m.st.overrides = make(map[int]CardOverride)
			changed = true
		}
		return changed
	})
}

func (m *MutationController) precheckLocked() error {
	v := &m.st.view
	if v.Round.ID == 0 {
		return ErrNoActiveRound
	}
	if v.Round.Status != StatusWaiting {
		return ErrNotSelectable
	}
	if v.Mutation != MutationIdle {
		return ErrMutationInFlight
	}
	return nil
}

func (m *MutationController) captureLocked(card int) rollbackPoint {
	v := &m.st.view
	rb := rollbackPoint{
		card:          card,
		balance:       v.Player.WalletBalance,
		stake:         v.Round.TotalStake,
		ownedCards:    slices.Clone(v.Player.Cards),
		selectedCards: slices.Clone(v.SelectedCards),
	}
	rb.override, rb.hadOverride = m.st.overrides[card]
	rb.visible, rb.hadVisible = v.Card(card)
	return rb
}

func (m *MutationController) applyLocked(card int, selecting bool) {
	v := &m.st.view
	override := CardOverride{IsMine: selecting, IsAvailable: !selecting}
	m.st.overrides[card] = override
	// Cards missing from the inventory only get the override.
	v.Cards = applyOverrides(v.Cards, map[int]CardOverride{card: override})

	if selecting {
		v.Player.WalletBalance -= m.cfg.CardPrice
		v.Round.TotalStake += m.cfg.CardPrice
		if !ownsCard(v.Player.Cards, card) {
			v.Player.Cards = append(slices.Clone(v.Player.Cards), OwnedCard{CardNumber: card})
		}
		if !slices.Contains(v.SelectedCards, card) {
			v.SelectedCards = append(slices.Clone(v.SelectedCards), card)
		}
	} else {
		v.Player.WalletBalance += m.cfg.CardPrice
		v.Round.TotalStake = max(0, v.Round.TotalStake-m.cfg.CardPrice)
		v.Player.Cards = slices.DeleteFunc(slices.Clone(v.Player.Cards), func(c OwnedCard) bool { return c.CardNumber == card })
		v.SelectedCards = slices.DeleteFunc(slices.Clone(v.SelectedCards), func(n int) bool { return n == card })
	}
	v.Notice = ""
	v.Mutation = MutationMutating
}

func (m *MutationController) rollbackLocked(rb rollbackPoint, notice string) {
	v := &m.st.view
	if rb.hadOverride {
		m.st.overrides[rb.card] = rb.override
	} else {
		delete(m.st.overrides, rb.card)
	}
	if rb.hadVisible {
		v.Cards = slices.Clone(v.Cards)
		for i, c := range v.Cards {
			if c.CardNumber == rb.card {
				v.Cards[i] = rb.visible
			}
		}
	}
	v.Player.WalletBalance = rb.balance
	v.Round.TotalStake = rb.stake
	v.Player.Cards = rb.ownedCards
	v.SelectedCards = rb.selectedCards
	v.Mutation = MutationRolledBack
	if notice != "" {
		v.Notice = notice
	}
}

// rejectionNotice is the message shown for a failed change. Transport and
// authorization failures stay silent.
func rejectionNotice(err error, resp *api.SelectionResponse, selecting bool) string {
	fallback := msgDeselectFailed
	if selecting {
		fallback = msgSelectFailed
	}
	if errors.Is(err, errRejected) {
		if resp != nil && resp.Error != "" {
			return resp.Error
		}
		if resp != nil && resp.Message != "" {
			return resp.Message
		}
		return fallback
	}
	switch classify(err) {
	case failureNetwork, failureUnauthorized:
		return ""
	default:
		return clients.UserMessage(err, fallback)
	}
}
