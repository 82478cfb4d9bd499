// Package syncapi defines the wire types exchanged between terminals and the
// central server. Both sides import it, so the JSON contract lives in one
// place.
package syncapi

import "time"

// TxStatus is the lifecycle state of a transaction.
type TxStatus string

const (
	// StatusPending: recorded locally, not yet transmitted.
	StatusPending TxStatus = "PENDING"
	// StatusSynced: transmitted, per-transaction result not yet applied.
	StatusSynced TxStatus = "SYNCED"
	// StatusConfirmed: applied to the central ledger.
	StatusConfirmed TxStatus = "CONFIRMED"
	// StatusRejected: refused by the central ledger, see Reason.
	StatusRejected TxStatus = "REJECTED"
)

// Rejection reasons returned by the central ledger.
const (
	ReasonInsufficientFunds    = "insufficient_funds"
	ReasonConflictingDuplicate = "conflicting_duplicate"
)

// Transaction is the wire form of a terminal-recorded debit. ID is derived
// from (card, terminal, seq), so replaying the same logical tap always
// carries the same identifier.
type Transaction struct {
	ID         string    `json:"transaction_id"`
	CardID     string    `json:"card_id"`
	TerminalID string    `json:"terminal_id"`
	Amount     int64     `json:"amount"`
	Seq        int64     `json:"seq"`
	CreatedAt  time.Time `json:"created_at"`
}

// TxResult is the server's verdict for a single submitted transaction.
type TxResult struct {
	TransactionID string   `json:"transaction_id"`
	Status        TxStatus `json:"status"`
	Reason        string   `json:"reason,omitempty"`
}

// CardSnapshot is the authoritative card state returned with sync results.
type CardSnapshot struct {
	CardID  string `json:"card_id"`
	Balance int64  `json:"balance"`
	Version int64  `json:"version"`
}

type RegisterRequest struct {
	TerminalID string `json:"terminal_id"`
}

type RegisterResponse struct {
	TerminalID string `json:"terminal_id"`
	Token      string `json:"token"`
}

type HeartbeatRequest struct {
	TerminalID string    `json:"terminal_id"`
	Timestamp  time.Time `json:"timestamp"`
	Pending    int       `json:"pending_transactions"`
}

type HeartbeatResponse struct {
	ServerTime time.Time `json:"server_time"`
}

// SyncRequest is a batch of not-yet-confirmed transactions from one
// terminal, ordered by Seq. It is a request payload, not an entity.
type SyncRequest struct {
	TerminalID   string        `json:"terminal_id"`
	Transactions []Transaction `json:"transactions"`
}

type SyncResponse struct {
	Results []TxResult     `json:"results"`
	Cards   []CardSnapshot `json:"cards"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
