package room

import (
	"fmt"
	"slices"

	api "github.com/fanoshome/bingo/go/clients/bingo_api_client"
)

// RoundStatus is the lifecycle phase reported by the backend.
type RoundStatus string

const (
	StatusWaiting   RoundStatus = "waiting"
	StatusActive    RoundStatus = "active"
	StatusFinished  RoundStatus = "finished"
	StatusCancelled RoundStatus = "cancelled"
)

// Grid is the 5x5 content of a card.
type Grid = api.Grid

// Round is one play cycle as last observed.
type Round struct {
	ID             int64       `json:"id"`
	RoundNumber    int         `json:"round_number"`
	Status         RoundStatus `json:"status"`
	TimeRemaining  int         `json:"time_remaining"`
	TotalStake     float64     `json:"total_stake"`
	CalledNumbers  []int       `json:"called_numbers"`
	Winner         *string     `json:"winner"`
	WinningCard    *int        `json:"winning_card"`
	PrizePool      float64     `json:"prize_pool"`
	WinningPattern *string     `json:"winning_pattern"`
}

// OwnedCard is a card held by the requesting player this round.
type OwnedCard struct {
	CardNumber    int   `json:"card_number"`
	MarkedNumbers []int `json:"marked_numbers,omitempty"`
}

// PlayerView is the requesting player's perspective.
type PlayerView struct {
	Cards         []OwnedCard `json:"cards"`
	WalletBalance float64     `json:"wallet_balance"`
	HasWon        bool        `json:"has_won"`
	WinningCard   *int        `json:"winning_card"`
}

// RecentCall is one entry of the recent call ring.
type RecentCall struct {
	Letter   string `json:"letter"`
	Number   int    `json:"number"`
	CalledAt string `json:"called_at"`
}

// GameAggregate holds cross-player aggregates.
type GameAggregate struct {
	RecentCalls   []RecentCall `json:"recent_calls"`
	PlayerCount   int          `json:"player_count"`
	TotalCards    int          `json:"total_cards"`
	SelectedCards int          `json:"selected_cards"`
}

// AvailableCard is one card of the fixed inventory.
type AvailableCard struct {
	CardNumber  int  `json:"card_number"`
	Numbers     Grid `json:"numbers"`
	IsMine      bool `json:"is_mine"`
	IsAvailable bool `json:"is_available"`
}

// TakenByOther reports whether somebody else holds the card.
func (c AvailableCard) TakenByOther() bool {
	return !c.IsMine && !c.IsAvailable
}

// CardOverride is a pending local value for a card awaiting confirmation.
type CardOverride struct {
	IsMine      bool `json:"is_mine"`
	IsAvailable bool `json:"is_available"`
}

// MutationState tracks the single in-flight card mutation.
type MutationState int

const (
	MutationIdle MutationState = iota
	MutationMutating
	MutationRolledBack
)

func (m MutationState) String() string {
	switch m {
	case MutationIdle:
		return "idle"
	case MutationMutating:
		return "mutating"
	case MutationRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

func (m MutationState) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MutationState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*m = MutationIdle
	case "mutating":
		*m = MutationMutating
	case "rolled_back":
		*m = MutationRolledBack
	default:
		return fmt.Errorf("unknown mutation state %q", text)
	}
	return nil
}

// ModalKind is the round conclusion dialog currently showing.
type ModalKind int

const (
	ModalNone ModalKind = iota
	ModalWinner
	ModalNoWinner
)

func (k ModalKind) String() string {
	switch k {
	case ModalWinner:
		return "winner"
	case ModalNoWinner:
		return "no_winner"
	default:
		return "none"
	}
}

func (k ModalKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ModalKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*k = ModalNone
	case "winner":
		*k = ModalWinner
	case "no_winner":
		*k = ModalNoWinner
	default:
		return fmt.Errorf("unknown modal kind %q", text)
	}
	return nil
}

// WinnerInfo describes a concluded round with a winner.
type WinnerInfo struct {
	Winner       string  `json:"winner"`
	Card         *int    `json:"card"`
	Prize        float64 `json:"prize"`
	Pattern      string  `json:"pattern"`
	Round        int     `json:"round"`
	IsUserWinner bool    `json:"is_user_winner"`
}

// Modal is the round conclusion dialog state.
type Modal struct {
	Kind   ModalKind   `json:"kind"`
	Round  int         `json:"round"`
	Winner *WinnerInfo `json:"winner,omitempty"`
}

// Visible reports whether a winner or no-winner modal is showing.
func (m Modal) Visible() bool {
	return m.Kind != ModalNone
}

const defaultWinningPattern = "Full House"

// DisplayedPot is the prize shown to players: 80% of the total stake.
func DisplayedPot(totalStake float64) float64 {
	return totalStake * 0.8
}

func roundFromPayload(p *api.RoundPayload) Round {
	called := p.CalledNumbers
	if called == nil {
		called = []int{}
	}
	return Round{
		ID:             p.ID,
		RoundNumber:    p.RoundNumber,
		Status:         RoundStatus(p.Status),
		TimeRemaining:  max(0, p.TimeRemaining),
		TotalStake:     p.TotalStake,
		CalledNumbers:  slices.Clone(called),
		Winner:         p.Winner,
		WinningCard:    p.WinningCard,
		PrizePool:      p.PrizePool,
		WinningPattern: p.WinningPattern,
	}
}

func playerFromPayload(p *api.PlayerPayload) PlayerView {
	cards := make([]OwnedCard, 0, len(p.Cards))
	for _, c := range p.Cards {
		cards = append(cards, OwnedCard{CardNumber: c.CardNumber, MarkedNumbers: slices.Clone(c.MarkedNumbers)})
	}
	return PlayerView{
		Cards:         cards,
		WalletBalance: p.WalletBalance,
		HasWon:        p.HasWon,
		WinningCard:   p.WinningCard,
	}
}

func gameFromPayload(p *api.GamePayload) GameAggregate {
	calls := make([]RecentCall, 0, len(p.RecentCalls))
	for _, c := range p.RecentCalls {
		calls = append(calls, RecentCall{Letter: c.Letter, Number: c.Number, CalledAt: c.CalledAt})
	}
	return GameAggregate{
		RecentCalls:   calls,
		PlayerCount:   p.PlayerCount,
		TotalCards:    p.TotalCards,
		SelectedCards: p.SelectedCards,
	}
}

func cardsFromPayload(p []api.CardPayload) []AvailableCard {
	cards := make([]AvailableCard, 0, len(p))
	for _, c := range p {
		cards = append(cards, AvailableCard{
			CardNumber:  c.CardNumber,
			Numbers:     c.Numbers,
			IsMine:      c.IsMine,
			IsAvailable: c.IsAvailable,
		})
	}
	return cards
}
