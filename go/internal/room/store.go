package room

import (
	"maps"
	"slices"
	"sync"
)

// View is a consistent copy of everything a renderer needs.
type View struct {
	RoomID             string               `json:"room_id"`
	Revision           uint64               `json:"revision"`
	Loading            bool                 `json:"loading"`
	NoActiveGame       bool                 `json:"no_active_game"`
	ConnectionError    bool                 `json:"connection_error"`
	Error              string               `json:"error,omitempty"`
	Notice             string               `json:"notice,omitempty"`
	Round              Round                `json:"round"`
	Player             PlayerView           `json:"player"`
	Game               GameAggregate        `json:"game"`
	Cards              []AvailableCard      `json:"cards"`
	SelectedCards      []int                `json:"selected_cards"`
	Overrides          map[int]CardOverride `json:"overrides,omitempty"`
	Mutation           MutationState        `json:"mutation"`
	Modal              Modal                `json:"modal"`
	SelectionCountdown int                  `json:"selection_countdown"`
	NextRoundCountdown int                  `json:"next_round_countdown"`
	DisplayedPot       float64              `json:"displayed_pot"`
}

// Card returns the visible card with the given number.
func (v View) Card(number int) (AvailableCard, bool) {
	for _, c := range v.Cards {
		if c.CardNumber == number {
			return c, true
		}
	}
	return AvailableCard{}, false
}

// OwnsCard reports whether the player's owned cards include number.
func (v View) OwnsCard(number int) bool {
	return ownsCard(v.Player.Cards, number)
}

func ownsCard(cards []OwnedCard, number int) bool {
	return slices.ContainsFunc(cards, func(c OwnedCard) bool { return c.CardNumber == number })
}

func (v View) clone() View {
	out := v
	out.Round.CalledNumbers = slices.Clone(v.Round.CalledNumbers)
	out.Round.Winner = clonePtr(v.Round.Winner)
	out.Round.WinningCard = clonePtr(v.Round.WinningCard)
	out.Round.WinningPattern = clonePtr(v.Round.WinningPattern)
	out.Player.Cards = make([]OwnedCard, len(v.Player.Cards))
	for i, c := range v.Player.Cards {
		out.Player.Cards[i] = OwnedCard{CardNumber: c.CardNumber, MarkedNumbers: slices.Clone(c.MarkedNumbers)}
	}
	out.Player.WinningCard = clonePtr(v.Player.WinningCard)
	out.Game.RecentCalls = slices.Clone(v.Game.RecentCalls)
	out.Cards = slices.Clone(v.Cards)
	out.SelectedCards = slices.Clone(v.SelectedCards)
	out.Overrides = maps.Clone(v.Overrides)
	if v.Modal.Winner != nil {
		w := *v.Modal.Winner
		w.Card = clonePtr(w.Card)
		out.Modal.Winner = &w
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// store guards the room view and the bookkeeping that must change with it.
// Every transition runs inside update so readers never see a half-applied change.
type store struct {
	mu   sync.Mutex
	view View

	overrides map[int]CardOverride
	cursor    string

	// round transition memory, kept outside the view
	prevStatus        RoundStatus
	lastModalRound    int
	lastServerSeconds int
	seenServerSeconds bool

	nextSubID int
	subs      map[int]chan View
}

func newStore(roomID string) *store {
	return &store{
		view: View{
			RoomID:        roomID,
			Loading:       true,
			Round:         Round{Status: StatusWaiting, CalledNumbers: []int{}},
			Player:        PlayerView{Cards: []OwnedCard{}},
			Game:          GameAggregate{RecentCalls: []RecentCall{}},
			Cards:         []AvailableCard{},
			SelectedCards: []int{},
		},
		overrides: make(map[int]CardOverride),
		subs:      make(map[int]chan View),
	}
}

// update runs fn under the lock. When fn reports a change the revision is
// bumped and subscribers receive the new view.
func (s *store) update(fn func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !fn() {
		return false
	}
	s.view.Overrides = maps.Clone(s.overrides)
	s.view.DisplayedPot = DisplayedPot(s.view.Round.TotalStake)
	s.view.Revision++
	s.broadcastLocked()
	return true
}

func (s *store) read(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *store) snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.clone()
}

func (s *store) getCursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// advanceCursorLocked moves the cursor to next only if nobody moved it since
// expected was read.
func (s *store) advanceCursorLocked(expected, next string) bool {
	if next == "" || next == s.cursor || s.cursor != expected {
		return false
	}
	s.cursor = next
	return true
}

func (s *store) subscribe() (<-chan View, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan View, 1)
	ch <- s.view.clone()
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

func (s *store) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// broadcastLocked delivers the latest view, replacing any undelivered one.
func (s *store) broadcastLocked() {
	for _, ch := range s.subs {
		v := s.view.clone()
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}
