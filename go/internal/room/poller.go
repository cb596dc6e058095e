package room

import (
	"context"
	"slices"

	"github.com/rs/zerolog/log"

	api "github.com/fanoshome/bingo/go/clients/bingo_api_client"
)

// DeltaAPI is the incremental update endpoint.
type DeltaAPI interface {
	PollUpdates(ctx context.Context, cursor string) (*api.PollResponse, error)
}

const maxRecentCalls = 4

// Poller folds incremental updates into the room between full snapshots.
type Poller struct {
	api     DeltaAPI
	st      *store
	loader  *Loader
	mounted func() bool
}

// Poll fetches updates since the current cursor and applies them.
// It is a no-op while unmounted, while a conclusion modal is showing, or
// before the first snapshot seeded a cursor.
func (p *Poller) Poll(ctx context.Context) {
	if !p.mounted() {
		return
	}

	var (
		cursor string
		paused bool
	)
	p.st.read(func() {
		cursor = p.st.cursor
		paused = p.st.view.Modal.Visible()
	})
	if paused || cursor == "" {
		return
	}

	resp, err := p.api.PollUpdates(ctx, cursor)
	if !p.mounted() {
		return
	}
	if err != nil {
		if classify(err) == failureNetwork {
			p.st.update(func() bool {
				return setIfChanged(&p.st.view.ConnectionError, true)
			})
		}
		log.Warn().Err(err).Str("cursor", cursor).Msg("poll failed")
		return
	}

	var reload bool
	p.st.update(func() bool {
		v := &p.st.view
		if v.Modal.Visible() {
			return false
		}
		if RoundStatus(resp.RoundStatus) == StatusFinished && v.Round.Status == StatusActive {
			reload = true
			return false
		}

		changed := false
		for _, u := range resp.Updates {
			changed = p.foldLocked(u) || changed
		}
		changed = setIfChanged(&v.ConnectionError, false) || changed
		p.st.advanceCursorLocked(cursor, resp.Timestamp)
		return changed
	})

	if reload {
		log.Info().Msg("round finished upstream, reloading snapshot")
		p.loader.Load(ctx, true)
	}
}

func (p *Poller) foldLocked(u api.PollUpdate) bool {
	v := &p.st.view
	switch u.Type {
	case api.UpdateNewNumber, api.UpdateCurrentNumber:
		if u.Number < 1 || u.Number > 75 {
			return false
		}
		changed := false
		calls := v.Game.RecentCalls
		if len(calls) == 0 || calls[0].Number != u.Number {
			letter := u.Letter
			if letter == "" {
				letter = LetterFor(u.Number)
			}
			next := append([]RecentCall{{Letter: letter, Number: u.Number, CalledAt: u.Timestamp}}, calls...)
			if len(next) > maxRecentCalls {
				next = next[:maxRecentCalls]
			}
			v.Game.RecentCalls = next
			changed = true
		}
		if !slices.Contains(v.Round.CalledNumbers, u.Number) {
			v.Round.CalledNumbers = append(slices.Clone(v.Round.CalledNumbers), u.Number)
			changed = true
		}
		return changed
	case api.UpdatePlayerCount:
		return setIfChanged(&v.Game.PlayerCount, u.Count)
	default:
		return false
	}
}

// LetterFor returns the column letter of a called number.
func LetterFor(n int) string {
	switch {
	case n < 1:
		return ""
	case n <= 15:
		return "B"
	case n <= 30:
		return "I"
	case n <= 45:
		return "N"
	case n <= 60:
		return "G"
	case n <= 75:
		return "O"
	default:
		return ""
	}
}
