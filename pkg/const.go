package pkg

const (
	HeaderTraceId   string = "X-Trace-Id"
	HeaderRequestId string = "X-Request-Id"
)

const (
	TraceId   string = "trace_id"
	RequestId string = "request_id"
	AccountId string = "account_id"
)

// Redis key layout. The ledger hashes and both queues live in the same Redis
// instance so the schedulers drain exactly what the mutation path produced.
const (
	LedgerKeyPrefix string = "ledger:acct:"

	TransactionLogQueue        string = "transaction_list"
	TransactionDeadLetterQueue string = "transaction_list_failed"
	BalanceSyncQueue           string = "balance_sync_list"

	HistoryCachePrefix string = "transaction_history:"
)

type TransactionType string

const (
	TransactionDeposit  TransactionType = "deposit"
	TransactionWithdraw TransactionType = "withdraw"
)

// Valid reports whether t belongs to the closed set of transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionDeposit || t == TransactionWithdraw
}
