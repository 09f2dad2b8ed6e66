// Package views holds the JSON payloads exchanged through the Redis queues.
// Both variants are validated on decode so the schedulers never propagate an
// ambiguous shape downstream.
package views

import (
	"encoding/json"
	"fmt"

	"github.com/banksys/balance-ledger/pkg"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// TransactionLogEntry is one pending transaction record, produced by a
// successful mutation and consumed by the batch flush scheduler.
type TransactionLogEntry struct {
	AccountID string              `json:"accountId" validate:"required,uuid"`
	Type      pkg.TransactionType `json:"type"`
	Amount    int64               `json:"amount" validate:"required,gt=0"`
	Balance   int64               `json:"balance" validate:"gte=0"`
}

// BalanceSyncEntry is one balance snapshot, consumed by the reconciliation
// scheduler. OpID orders snapshots regardless of queue arrival order.
type BalanceSyncEntry struct {
	AccountID string `json:"accountId" validate:"required,uuid"`
	OpID      int64  `json:"opId" validate:"required,gt=0"`
	Balance   int64  `json:"balance" validate:"gte=0"`
}

func (e TransactionLogEntry) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func (e BalanceSyncEntry) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeTransactionLogEntry parses and validates a queued transaction-log
// payload, rejecting malformed entries.
func DecodeTransactionLogEntry(payload []byte) (TransactionLogEntry, error) {
	var e TransactionLogEntry
	if err := json.Unmarshal(payload, &e); err != nil {
		return TransactionLogEntry{}, err
	}
	if !e.Type.Valid() {
		return TransactionLogEntry{}, fmt.Errorf("unknown transaction type %q", e.Type)
	}
	if err := validate.Struct(&e); err != nil {
		return TransactionLogEntry{}, err
	}
	return e, nil
}

// DecodeBalanceSyncEntry parses and validates a queued balance-sync payload.
func DecodeBalanceSyncEntry(payload []byte) (BalanceSyncEntry, error) {
	var e BalanceSyncEntry
	if err := json.Unmarshal(payload, &e); err != nil {
		return BalanceSyncEntry{}, err
	}
	if err := validate.Struct(&e); err != nil {
		return BalanceSyncEntry{}, err
	}
	return e, nil
}
