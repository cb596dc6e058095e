package room

import "slices"

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func roundEqual(a, b Round) bool {
	return a.ID == b.ID &&
		a.RoundNumber == b.RoundNumber &&
		a.Status == b.Status &&
		a.TimeRemaining == b.TimeRemaining &&
		a.TotalStake == b.TotalStake &&
		a.PrizePool == b.PrizePool &&
		slices.Equal(a.CalledNumbers, b.CalledNumbers) &&
		equalPtr(a.Winner, b.Winner) &&
		equalPtr(a.WinningCard, b.WinningCard) &&
		equalPtr(a.WinningPattern, b.WinningPattern)
}

func ownedCardsEqual(a, b []OwnedCard) bool {
	return slices.EqualFunc(a, b, func(x, y OwnedCard) bool {
		return x.CardNumber == y.CardNumber && slices.Equal(x.MarkedNumbers, y.MarkedNumbers)
	})
}

func playerEqual(a, b PlayerView) bool {
	return a.WalletBalance == b.WalletBalance &&
		a.HasWon == b.HasWon &&
		equalPtr(a.WinningCard, b.WinningCard) &&
		ownedCardsEqual(a.Cards, b.Cards)
}

func gameEqual(a, b GameAggregate) bool {
	return a.PlayerCount == b.PlayerCount &&
		a.TotalCards == b.TotalCards &&
		a.SelectedCards == b.SelectedCards &&
		slices.Equal(a.RecentCalls, b.RecentCalls)
}

// applyOverrides lays pending local values over the server's card flags.
func applyOverrides(cards []AvailableCard, overrides map[int]CardOverride) []AvailableCard {
	if len(overrides) == 0 {
		return cards
	}
	out := slices.Clone(cards)
	for i, c := range out {
		if o, ok := overrides[c.CardNumber]; ok {
			out[i].IsMine = o.IsMine
			out[i].IsAvailable = o.IsAvailable
		}
	}
	return out
}

// mergeRoundLocked and friends replace a section only when a field differs.
func (s *store) mergeRoundLocked(next Round) bool {
	if roundEqual(s.view.Round, next) {
		return false
	}
	s.view.Round = next
	return true
}

func (s *store) mergePlayerLocked(next PlayerView) bool {
	if playerEqual(s.view.Player, next) {
		return false
	}
	s.view.Player = next
	return true
}

func (s *store) mergeGameLocked(next GameAggregate) bool {
	if gameEqual(s.view.Game, next) {
		return false
	}
	s.view.Game = next
	return true
}

func (s *store) mergeCardsLocked(server []AvailableCard) bool {
	next := applyOverrides(server, s.overrides)
	if slices.Equal(s.view.Cards, next) {
		return false
	}
	s.view.Cards = next
	return true
}

func setIfChanged[T comparable](dst *T, v T) bool {
	if *dst == v {
		return false
	}
	*dst = v
	return true
}
