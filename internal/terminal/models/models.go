// Package models defines terminal-side data models: the locally cached card
// and the append-only transaction record.
package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/farekeeper/internal/syncapi"
	"github.com/google/uuid"
)

// txNamespace is the fixed UUIDv5 namespace for transaction identifiers.
// It must never change: the same logical tap has to hash to the same ID on
// every retransmission, which is what server-side deduplication relies on.
var txNamespace = uuid.MustParse("7d1f29c4-56b0-4c2d-9a83-d1e0af20c44f")

// TransactionID derives the deterministic identifier for the tap with the
// given per-terminal sequence number.
func TransactionID(cardID, terminalID string, seq int64) string {
	name := fmt.Sprintf("%s:%s:%d", cardID, terminalID, seq)
	return uuid.NewSHA1(txNamespace, []byte(name)).String()
}

// Card is the terminal's cached view of a fare card. Balance is in minor
// currency units and is authoritative only while offline. Version counts
// local mutations; ServerVersion is the version of the last authoritative
// snapshot applied. The two counters are separate on purpose: offline taps
// bump Version, and a shared counter would let local bumps shadow a server
// snapshot carrying the same number.
type Card struct {
	ID            string    `json:"card_id"`
	Balance       int64     `json:"balance"`
	Version       int64     `json:"version"`
	ServerVersion int64     `json:"server_version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Transaction is a locally recorded debit. Seq is strictly increasing and
// gap-free per terminal. Rows are never deleted; status transitions
// PENDING -> SYNCED -> CONFIRMED/REJECTED form the audit trail.
type Transaction struct {
	ID         string           `json:"transaction_id"`
	CardID     string           `json:"card_id"`
	TerminalID string           `json:"terminal_id"`
	Amount     int64            `json:"amount"`
	Seq        int64            `json:"seq"`
	CreatedAt  time.Time        `json:"created_at"`
	Status     syncapi.TxStatus `json:"status"`
	Reason     string           `json:"reason,omitempty"`
}

// Wire converts the transaction to its sync payload form.
func (t *Transaction) Wire() syncapi.Transaction {
	return syncapi.Transaction{
		ID:         t.ID,
		CardID:     t.CardID,
		TerminalID: t.TerminalID,
		Amount:     t.Amount,
		Seq:        t.Seq,
		CreatedAt:  t.CreatedAt,
	}
}
