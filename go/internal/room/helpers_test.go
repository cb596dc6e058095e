package room

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	api "github.com/fanoshome/bingo/go/clients/bingo_api_client"
	"github.com/fanoshome/bingo/go/internal/events"
)

// fakeBackend serves the game room endpoints from mutable fixtures.
type fakeBackend struct {
	t      *testing.T
	server *httptest.Server

	mu           sync.Mutex
	status       api.StatusResponse
	statusCode   int
	statusDrop   bool
	statusGate   chan struct{}
	cards        api.CardsResponse
	cardsCode    int
	poll         api.PollResponse
	pollDrop     bool
	onPoll       func(cursor string)
	selection    api.SelectionResponse
	selectCode   int
	selectBody   string
	selectDrop   bool
	selectGate   chan struct{}
	playerCount  int
	calls        map[string]int
	lastCursor   string
	lastAuth     string
	lastSelected []int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		t:           t,
		status:      waitingStatus(1, 7, 30),
		cards:       api.CardsResponse{Cards: testCards()},
		poll:        api.PollResponse{RoundStatus: "waiting", Timestamp: "2026-10-18T10:00:02Z"},
		selection:   api.SelectionResponse{Success: true, WalletBalance: 90, TotalStake: 60},
		playerCount: 3,
		calls:       make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/lightweight-status/", fb.handleStatus)
	mux.HandleFunc("/api/available-cards/", fb.handleCards)
	mux.HandleFunc("/api/poll/", fb.handlePoll)
	mux.HandleFunc("/api/player-count/", fb.handlePlayerCount)
	mux.HandleFunc("/api/rounds/", fb.handleSelection)

	fb.server = httptest.NewServer(mux)
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) client() *api.BingoApiClient {
	return api.NewBingoApiClient(fb.server.URL+"/api", "test-token")
}

func (fb *fakeBackend) set(fn func(fb *fakeBackend)) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fn(fb)
}

func (fb *fakeBackend) count(name string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[name]
}

func (fb *fakeBackend) handleStatus(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	fb.calls["status"]++
	fb.lastAuth = r.Header.Get("Authorization")
	drop, code, body, gate := fb.statusDrop, fb.statusCode, fb.status, fb.statusGate
	fb.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if drop {
		hangUp(w)
		return
	}
	if code != 0 {
		writeJSON(w, code, map[string]string{"detail": http.StatusText(code)})
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (fb *fakeBackend) handleCards(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	fb.calls["cards"]++
	code, body := fb.cardsCode, fb.cards
	fb.mu.Unlock()

	if code != 0 {
		writeJSON(w, code, map[string]string{"error": "cards unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (fb *fakeBackend) handlePoll(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get(api.LastPollParam)

	fb.mu.Lock()
	fb.calls["poll"]++
	fb.lastCursor = cursor
	drop, body, hook := fb.pollDrop, fb.poll, fb.onPoll
	fb.mu.Unlock()

	if hook != nil {
		hook(cursor)
	}
	if drop {
		hangUp(w)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (fb *fakeBackend) handlePlayerCount(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	fb.calls["player_count"]++
	count := fb.playerCount
	fb.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]int{"player_count": count})
}

func (fb *fakeBackend) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req api.SelectionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	name := "select"
	if strings.HasSuffix(r.URL.Path, "/deselect_card/") {
		name = "deselect"
	}

	fb.mu.Lock()
	fb.calls[name]++
	fb.lastSelected = append(fb.lastSelected, req.CardNumber)
	gate, drop, code, raw, body := fb.selectGate, fb.selectDrop, fb.selectCode, fb.selectBody, fb.selection
	fb.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if drop {
		hangUp(w)
		return
	}
	if code != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(raw))
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// hangUp closes the connection without a response.
func hangUp(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("response writer does not support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err == nil {
		_ = conn.Close()
	}
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func waitingStatus(id int64, roundNumber, remaining int) api.StatusResponse {
	return api.StatusResponse{
		Round: &api.RoundPayload{
			ID:            id,
			RoundNumber:   roundNumber,
			Status:        "waiting",
			TimeRemaining: remaining,
			TotalStake:    50,
			CalledNumbers: []int{},
		},
		Player: &api.PlayerPayload{
			Cards:         []api.PlayerCardPayload{{ID: 11, CardNumber: 3}},
			WalletBalance: 100,
		},
		Game: &api.GamePayload{
			RecentCalls:   []api.RecentCallPayload{},
			PlayerCount:   3,
			TotalCards:    4,
			SelectedCards: 2,
		},
		Timestamp: "2026-10-18T10:00:00Z",
	}
}

func finishedStatus(id int64, roundNumber int, winner *string, winningCard *int) api.StatusResponse {
	s := waitingStatus(id, roundNumber, 0)
	s.Round.Status = "finished"
	s.Round.Winner = winner
	s.Round.WinningCard = winningCard
	s.Round.PrizePool = 40
	s.Round.CalledNumbers = []int{5, 17, 33}
	return s
}

func activeStatus(id int64, roundNumber int) api.StatusResponse {
	s := waitingStatus(id, roundNumber, 0)
	s.Round.Status = "active"
	s.Round.CalledNumbers = []int{5}
	s.Game.RecentCalls = []api.RecentCallPayload{{ID: 1, Letter: "B", Number: 5}}
	return s
}

// testCards is a small inventory: 1 and 2 available, 3 mine, 4 taken by someone else.
func testCards() []api.CardPayload {
	var grid api.Grid
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			grid[i][j] = j*15 + i + 1
		}
	}
	grid[2][2] = 0
	return []api.CardPayload{
		{ID: 1, CardNumber: 1, Numbers: grid, IsAvailable: true},
		{ID: 2, CardNumber: 2, Numbers: grid, IsAvailable: true},
		{ID: 3, CardNumber: 3, Numbers: grid, IsMine: true},
		{ID: 4, CardNumber: 4, Numbers: grid, SelectedBy: strPtr("abebe")},
	}
}

type testRoom struct {
	*Room
	fb        *fakeBackend
	clock     *clockwork.FakeClock
	publisher *events.MemoryPublisher
}

// newTestRoom builds a room against a fake backend and marks it mounted
// without starting the intervals, so tests drive loads and polls by hand.
func newTestRoom(t *testing.T, fb *fakeBackend) *testRoom {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC))
	publisher := events.NewMemoryPublisher()
	r := New(fb.client(), DefaultConfig(), WithClock(clock), WithPublisher(publisher), WithID("room-test"))
	r.mounted.Store(true)
	t.Cleanup(func() {
		r.mounted.Store(false)
		r.selection.Stop()
		r.nextRound.Stop()
	})
	return &testRoom{Room: r, fb: fb, clock: clock, publisher: publisher}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
