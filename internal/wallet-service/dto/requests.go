package dto

import "github.com/shopspring/decimal"

// DepositRequest gera saldo de sistema para uma conta (superuser)
type DepositRequest struct {
	UserID    string          `json:"userId" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty" validate:"max=128"`
}

// TransferRequest move saldo entre contas. FromUserID vazio = conta do chamador.
type TransferRequest struct {
	FromUserID string          `json:"fromUserId,omitempty"`
	ToUserID   string          `json:"toUserId" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference,omitempty" validate:"max=128"`
}
