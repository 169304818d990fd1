package betting

import (
	"errors"
	"fmt"
)

// ValidationError é erro de entrada ou de estado; vai para o chamador e nunca é repetido.
// Code é estável e comparável via errors.Is.
type ValidationError struct {
	Code   string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Code == e.Code
}

func invalid(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

var (
	ErrNoSelections        = &ValidationError{Code: "no_selections", Reason: "at least one selection is required"}
	ErrInvalidStake        = &ValidationError{Code: "invalid_stake", Reason: "stake must be greater than zero"}
	ErrInvalidOdds         = &ValidationError{Code: "invalid_odds", Reason: "selection odds must be at least 1.0"}
	ErrMissingField        = &ValidationError{Code: "missing_field", Reason: "selection is missing a required field"}
	ErrInvalidMarket       = &ValidationError{Code: "invalid_market", Reason: "unsupported market or outcome"}
	ErrInvalidCategory     = &ValidationError{Code: "invalid_category", Reason: "unsupported bet category"}
	ErrStakeLimit          = &ValidationError{Code: "stake_limit", Reason: "stake outside the allowed range"}
	ErrSelectionLimit      = &ValidationError{Code: "selection_limit", Reason: "number of selections outside the allowed range"}
	ErrPayoutLimit         = &ValidationError{Code: "payout_limit", Reason: "potential payout above the allowed maximum"}
	ErrDuplicateEvent      = &ValidationError{Code: "duplicate_event", Reason: "multiple bets cannot repeat an event"}
	ErrSameEventRequired   = &ValidationError{Code: "same_event_required", Reason: "same game multi selections must share one event"}
	ErrDuplicateMarket     = &ValidationError{Code: "duplicate_market", Reason: "same game multi cannot repeat a market"}
	ErrOddsChanged         = &ValidationError{Code: "odds_changed", Reason: "odds changed"}
	ErrInsufficientBalance = &ValidationError{Code: "insufficient_balance", Reason: "insufficient balance"}

	ErrWagerNotFound     = &ValidationError{Code: "wager_not_found", Reason: "wager not found"}
	ErrWagerNotPending   = &ValidationError{Code: "wager_not_pending", Reason: "wager is not pending"}
	ErrSelectionsPending = &ValidationError{Code: "selections_pending", Reason: "wager still has pending selections"}
	ErrSelectionNotFound = &ValidationError{Code: "selection_not_found", Reason: "selection does not belong to the wager"}
	ErrInvalidResult     = &ValidationError{Code: "invalid_result", Reason: "selection result must be won, lost or cancelled"}

	ErrCashoutLostSelection = &ValidationError{Code: "cashout_lost_selection", Reason: "cashout not available: a selection has lost"}
	ErrCashoutNoWon         = &ValidationError{Code: "cashout_no_won_selection", Reason: "cashout not available: no selection has won yet"}
	ErrCashoutNothingLeft   = &ValidationError{Code: "cashout_no_pending_selection", Reason: "cashout not available: no pending selection left"}
	ErrCashoutCutoff        = &ValidationError{Code: "cashout_cutoff", Reason: "cashout not available: a pending event starts too soon"}
)

// IsValidation informa se err (ou algo que ele embrulha) é um ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IntegrityError sinaliza dados inconsistentes. A operação é recusada e registrada,
// nunca corrigida automaticamente.
type IntegrityError struct {
	Op     string
	Ref    string
	Detail string
	Err    error // causa de domínio, quando houver
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity fault: %s %s: %s", e.Op, e.Ref, e.Detail)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// RepeatedTransition é a segunda tentativa de tirar uma aposta de pending.
// Continua casando com ErrWagerNotPending via errors.Is.
func RepeatedTransition(op, wagerID string, status WagerStatus) error {
	detail := "wager already transitioned"
	if status != "" {
		detail = "wager already " + string(status)
	}
	return &IntegrityError{Op: op, Ref: wagerID, Detail: detail, Err: ErrWagerNotPending}
}

func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
