package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

func TestEntries(t *testing.T) {
	tests := []struct {
		name string
		odds events.Odds
		want map[string]string
	}{
		{
			name: "three way market",
			odds: events.Odds{Home: 1.85, Draw: 3.4, Away: 4.2},
			want: map[string]string{
				"odds:e1:h2h:home": "1.85",
				"odds:e1:h2h:draw": "3.4",
				"odds:e1:h2h:away": "4.2",
			},
		},
		{
			name: "no draw price",
			odds: events.Odds{Home: 1.5, Away: 2.6},
			want: map[string]string{
				"odds:e1:h2h:home": "1.5",
				"odds:e1:h2h:away": "2.6",
			},
		},
		{
			name: "nothing usable",
			odds: events.Odds{Home: 1, Away: 0},
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Entries(events.MatchUpdate{EventID: "e1", Odds: tt.odds}))
		})
	}
}
