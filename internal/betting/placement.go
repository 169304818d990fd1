package betting

import (
	"time"

	"github.com/shopspring/decimal"
)

// SelectionInput é a seleção como chega do boletim do usuário
type SelectionInput struct {
	SportKey  string
	EventID   string
	Market    Market
	Outcome   string
	Line      decimal.NullDecimal
	Odds      decimal.Decimal
	EventTime *time.Time
}

// Slip é o pedido de aposta
type Slip struct {
	UserID     string
	Category   Category
	Stake      decimal.Decimal
	Selections []SelectionInput
}

// CategoryLimits são os limites de uma categoria. Zero em MaxPayout = sem teto.
type CategoryLimits struct {
	MinStake      decimal.Decimal
	MaxStake      decimal.Decimal
	MinSelections int
	MaxSelections int
	MaxPayout     decimal.Decimal
}

type Limits map[Category]CategoryLimits

// DefaultLimits reproduz os limites operados hoje
func DefaultLimits() Limits {
	return Limits{
		CategorySingle: {
			MinStake:      decimal.NewFromInt(1),
			MaxStake:      decimal.NewFromInt(1000),
			MinSelections: 1,
			MaxSelections: 1,
			MaxPayout:     decimal.NewFromInt(10000),
		},
		CategoryMultiple: {
			MinStake:      decimal.NewFromInt(1),
			MaxStake:      decimal.NewFromInt(500),
			MinSelections: 2,
			MaxSelections: 20,
		},
		CategorySameGameMulti: {
			MinStake:      decimal.RequireFromString("0.5"),
			MaxStake:      decimal.NewFromInt(1000),
			MinSelections: 2,
			MaxSelections: 8,
		},
	}
}

// CombinedOdds é o produto exato das odds
func CombinedOdds(odds []decimal.Decimal) decimal.Decimal {
	total := decimal.NewFromInt(1)
	for _, o := range odds {
		total = total.Mul(o)
	}
	return total
}

// BuildTicket valida o boletim e monta a aposta pendente com suas seleções.
// Nada é persistido aqui; o débito e a gravação acontecem numa única transação no repositório.
func BuildTicket(slip Slip, limits Limits, now time.Time, newID func() string) (Ticket, error) {
	lim, ok := limits[slip.Category]
	if !ok {
		return Ticket{}, ErrInvalidCategory
	}
	if len(slip.Selections) == 0 {
		return Ticket{}, ErrNoSelections
	}
	if !slip.Stake.IsPositive() {
		return Ticket{}, ErrInvalidStake
	}
	if slip.UserID == "" {
		return Ticket{}, invalid(ErrMissingField.Code, "owner is required")
	}

	for i, in := range slip.Selections {
		if err := validateSelection(i, in); err != nil {
			return Ticket{}, err
		}
	}

	if n := len(slip.Selections); n < lim.MinSelections || n > lim.MaxSelections {
		return Ticket{}, invalid(ErrSelectionLimit.Code, "%s bets take between %d and %d selections, got %d",
			slip.Category, lim.MinSelections, lim.MaxSelections, n)
	}
	if slip.Stake.LessThan(lim.MinStake) || slip.Stake.GreaterThan(lim.MaxStake) {
		return Ticket{}, invalid(ErrStakeLimit.Code, "%s stake must be between %s and %s",
			slip.Category, lim.MinStake, lim.MaxStake)
	}
	if err := checkCategoryShape(slip); err != nil {
		return Ticket{}, err
	}

	odds := make([]decimal.Decimal, len(slip.Selections))
	for i, in := range slip.Selections {
		odds[i] = in.Odds
	}
	combined := CombinedOdds(odds)
	payout := slip.Stake.Mul(combined)
	if !lim.MaxPayout.IsZero() && payout.GreaterThan(lim.MaxPayout) {
		return Ticket{}, invalid(ErrPayoutLimit.Code, "potential payout %s above maximum %s", payout, lim.MaxPayout)
	}

	w := Wager{
		ID:              newID(),
		UserID:          slip.UserID,
		Category:        slip.Category,
		Stake:           slip.Stake,
		CombinedOdds:    combined,
		PotentialPayout: payout,
		Status:          WagerPending,
		CreatedAt:       now,
	}

	sels := make([]Selection, len(slip.Selections))
	w.SelectionIDs = make([]string, len(slip.Selections))
	for i, in := range slip.Selections {
		sels[i] = Selection{
			ID:        newID(),
			WagerID:   w.ID,
			SportKey:  in.SportKey,
			EventID:   in.EventID,
			Market:    in.Market,
			Outcome:   in.Outcome,
			Line:      in.Line,
			Odds:      in.Odds,
			Status:    SelectionPending,
			EventTime: in.EventTime,
		}
		w.SelectionIDs[i] = sels[i].ID
	}

	return Ticket{Wager: w, Selections: sels}, nil
}

func validateSelection(i int, in SelectionInput) error {
	switch {
	case in.SportKey == "":
		return invalid(ErrMissingField.Code, "selection %d: sportKey is required", i)
	case in.EventID == "":
		return invalid(ErrMissingField.Code, "selection %d: eventId is required", i)
	case in.Market == "":
		return invalid(ErrMissingField.Code, "selection %d: market is required", i)
	case in.Outcome == "":
		return invalid(ErrMissingField.Code, "selection %d: outcome is required", i)
	}
	if !in.Market.Valid() || !in.Market.ValidOutcome(in.Outcome) {
		return invalid(ErrInvalidMarket.Code, "selection %d: outcome %q is not offered in market %q", i, in.Outcome, in.Market)
	}
	if in.Market == MarketTotals && (!in.Line.Valid || !in.Line.Decimal.IsPositive()) {
		return invalid(ErrMissingField.Code, "selection %d: totals line is required", i)
	}
	if in.Odds.LessThan(decimal.NewFromInt(1)) {
		return invalid(ErrInvalidOdds.Code, "selection %d: odds %s below 1.0", i, in.Odds)
	}
	return nil
}

func checkCategoryShape(slip Slip) error {
	switch slip.Category {
	case CategoryMultiple:
		seen := make(map[string]bool, len(slip.Selections))
		for _, in := range slip.Selections {
			if seen[in.EventID] {
				return invalid(ErrDuplicateEvent.Code, "event %s appears more than once", in.EventID)
			}
			seen[in.EventID] = true
		}
	case CategorySameGameMulti:
		event := slip.Selections[0].EventID
		markets := make(map[Market]bool, len(slip.Selections))
		for _, in := range slip.Selections {
			if in.EventID != event {
				return ErrSameEventRequired
			}
			if markets[in.Market] {
				return invalid(ErrDuplicateMarket.Code, "market %s appears more than once", in.Market)
			}
			markets[in.Market] = true
		}
	}
	return nil
}
