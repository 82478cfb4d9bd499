// Package models defines server-side data models: authoritative cards, the
// global transaction set, and terminal registrations.
package models

import (
	"time"

	"github.com/dmitrijs2005/farekeeper/internal/syncapi"
)

// TxKind is a closed set of transaction kinds the central ledger records.
type TxKind string

const (
	// KindDebit is a fare payment recorded at a terminal.
	KindDebit TxKind = "debit"
	// KindTopup is a server-originated credit.
	KindTopup TxKind = "topup"
)

// Card is the authoritative card state. Balance is minor currency units and
// never goes negative; Version increments on every balance-affecting
// operation and orders corrections sent back to terminals.
type Card struct {
	ID        string    `json:"card_id"`
	Balance   int64     `json:"balance"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot converts the card to its wire form.
func (c *Card) Snapshot() syncapi.CardSnapshot {
	return syncapi.CardSnapshot{CardID: c.ID, Balance: c.Balance, Version: c.Version}
}

// Transaction is a row of the global, append-only transaction set. A given
// ID appears at most once; re-submissions replay the stored outcome.
type Transaction struct {
	ID         string
	CardID     string
	TerminalID string
	Kind       TxKind
	Amount     int64
	Seq        int64
	Status     syncapi.TxStatus
	Reason     string
	CreatedAt  time.Time
	RecordedAt time.Time
}

// Terminal is a registered edge device. LastHeartbeat and Pending are
// updated on every heartbeat or sync call and drive fleet monitoring.
type Terminal struct {
	ID            string    `json:"terminal_id"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	State         string    `json:"state"`
	Pending       int       `json:"pending_transactions"`
}
