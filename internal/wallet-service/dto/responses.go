package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-ledger/internal/ledger"
)

type WalletResponse struct {
	Success      bool            `json:"success"`
	UserID       string          `json:"userId"`
	Role         string          `json:"role"`
	Balance      decimal.Decimal `json:"balance"`
	Capabilities []string        `json:"capabilities"`
}

type EntriesResponse struct {
	Success bool           `json:"success"`
	Entries []ledger.Entry `json:"entries"`
}

type DepositResponse struct {
	Success    bool            `json:"success"`
	UserID     string          `json:"userId"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

type TransferResponse struct {
	Success         bool            `json:"success"`
	FromUserID      string          `json:"fromUserId"`
	ToUserID        string          `json:"toUserId"`
	NewBalance      decimal.Decimal `json:"newBalance"` // saldo de quem enviou
	ReceiverBalance decimal.Decimal `json:"receiverBalance"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
