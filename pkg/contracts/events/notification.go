package events

import "encoding/json"

// Mensagem publicada no canal Redis "wager_updates_broadcast" pelo notification-worker
// e entregue pelo bet-service aos websockets do usuário.
type WagerNotification struct {
	UserID  string          `json:"userId"`
	Type    string          `json:"type"` // tópico de origem: wager_placed | wager_settled | wager_cashed_out
	Payload json.RawMessage `json:"payload"`
}
