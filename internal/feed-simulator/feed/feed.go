// Package feed simula o provedor de odds e placares para desenvolvimento local.
package feed

import (
	"encoding/json"
	"hash/fnv"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/sports-bet-ledger/internal/feed-simulator/dto"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

// Fixture é uma partida do catálogo simulado
type Fixture struct {
	EventID    string
	SportKey   string
	SportTitle string
	HomeTeam   string
	AwayTeam   string
	Kickoff    time.Time
}

// Feed mantém o catálogo e gera odds e placares. Placar final é determinístico
// por evento, então consultas repetidas devolvem o mesmo resultado.
type Feed struct {
	mu          sync.Mutex
	fixtures    []Fixture
	matchLength time.Duration
	version     int
	rnd         *rand.Rand
	now         func() time.Time
	source      string
}

// NewFeed monta o catálogo com inícios escalonados a partir de start
func NewFeed(start time.Time, matchLength time.Duration, source string) *Feed {
	teams := [][2]string{
		{"Flamengo", "Palmeiras"},
		{"Grêmio", "Internacional"},
		{"Corinthians", "Santos"},
		{"São Paulo", "Vasco"},
	}
	offsets := []time.Duration{-2 * matchLength, time.Minute, 3 * time.Minute, 6 * time.Minute}

	f := &Feed{
		matchLength: matchLength,
		rnd:         rand.New(rand.NewSource(start.UnixNano())),
		now:         time.Now,
		source:      source,
	}
	for i, t := range teams {
		f.fixtures = append(f.fixtures, Fixture{
			EventID:    "MATCH_00" + strconv.Itoa(i+1),
			SportKey:   "soccer_brazil_campeonato",
			SportTitle: "Brasileirão Série A",
			HomeTeam:   t[0],
			AwayTeam:   t[1],
			Kickoff:    start.Add(offsets[i]).UTC().Truncate(time.Second),
		})
	}
	return f
}

// Fixtures devolve uma cópia do catálogo
func (f *Feed) Fixtures() []Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Fixture(nil), f.fixtures...)
}

// Updates gera uma rodada de match_updates com odds aleatórias
func (f *Feed) Updates() []events.MatchUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version++

	out := make([]events.MatchUpdate, 0, len(f.fixtures))
	for _, fx := range f.fixtures {
		out = append(out, events.MatchUpdate{
			EventID:      fx.EventID,
			SportKey:     fx.SportKey,
			SportTitle:   fx.SportTitle,
			HomeTeam:     fx.HomeTeam,
			AwayTeam:     fx.AwayTeam,
			CommenceTime: fx.Kickoff,
			Odds: events.Odds{
				Home: f.price(1.40, 3.50),
				Draw: f.price(2.50, 4.50),
				Away: f.price(2.00, 5.00),
			},
			UpdatedAt: f.now().UTC(),
			Source:    f.source,
			Version:   f.version,
		})
	}
	return out
}

// price sorteia uma odd com duas casas, como o provedor publica
func (f *Feed) price(min, max float64) float64 {
	v := min + f.rnd.Float64()*(max-min)
	return float64(int(v*100)) / 100
}

// FinalScore é o placar final determinístico do evento
func FinalScore(eventID string) (home, away int) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(eventID))
	sum := h.Sum32()
	return int(sum % 4), int((sum / 4) % 3)
}

// Scores monta a resposta do endpoint de placares para os eventos pedidos
func (f *Feed) Scores(sport string, ids []string) []dto.ScoreEvent {
	want := map[string]bool{}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			want[id] = true
		}
	}
	now := f.now()

	out := []dto.ScoreEvent{}
	for _, fx := range f.Fixtures() {
		if fx.SportKey != sport || (len(want) > 0 && !want[fx.EventID]) {
			continue
		}
		ev := dto.ScoreEvent{
			ID:           fx.EventID,
			SportKey:     fx.SportKey,
			SportTitle:   fx.SportTitle,
			CommenceTime: fx.Kickoff,
			HomeTeam:     fx.HomeTeam,
			AwayTeam:     fx.AwayTeam,
		}
		if !now.Before(fx.Kickoff) {
			home, away := FinalScore(fx.EventID)
			ev.Completed = !now.Before(fx.Kickoff.Add(f.matchLength))
			if !ev.Completed {
				// parcial: metade do placar final enquanto a partida corre
				home, away = home/2, away/2
			}
			ev.Scores = []dto.TeamScore{
				{Name: fx.HomeTeam, Score: strconv.Itoa(home)},
				{Name: fx.AwayTeam, Score: strconv.Itoa(away)},
			}
			ts := now.UTC()
			ev.LastUpdate = &ts
		}
		out = append(out, ev)
	}
	return out
}

// Router expõe GET /v4/sports/{sport}/scores/?eventIds=a,b
func (f *Feed) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v4/sports/{sport}/scores/", f.handleScores)
	r.Get("/v4/sports/{sport}/scores", f.handleScores)
	return r
}

func (f *Feed) handleScores(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if v := r.URL.Query().Get("eventIds"); v != "" {
		ids = strings.Split(v, ",")
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(f.Scores(chi.URLParam(r, "sport"), ids))
}
