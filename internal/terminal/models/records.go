package models

import "github.com/dmitrijs2005/farekeeper/internal/syncapi"

// CardRecord is the persisted form of a Card. The financial fields live in
// Payload as AEAD ciphertext; Nonce is the matching GCM nonce.
type CardRecord struct {
	ID      string
	Payload []byte
	Nonce   []byte
}

// TransactionRecord is the persisted form of a Transaction. Sequencing and
// status columns stay in the clear so the pending queue can be queried and
// ordered without decrypting; the amounts and timestamps are in Payload.
type TransactionRecord struct {
	ID      string
	CardID  string
	Seq     int64
	Status  syncapi.TxStatus
	Reason  string
	Payload []byte
	Nonce   []byte
}
