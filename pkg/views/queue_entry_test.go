package views_test

import (
	"testing"

	"github.com/banksys/balance-ledger/pkg"
	"github.com/banksys/balance-ledger/pkg/views"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTransactionLogEntry(t *testing.T) {
	in := views.TransactionLogEntry{
		AccountID: uuid.New().String(),
		Type:      pkg.TransactionDeposit,
		Amount:    1500,
		Balance:   1500,
	}
	payload, err := in.Encode()
	require.NoError(t, err)

	out, err := views.DecodeTransactionLogEntry(payload)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeTransactionLogEntry_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"accountId":`,
		"unknown type":   `{"accountId":"` + uuid.New().String() + `","type":"transfer","amount":10,"balance":10}`,
		"missing fields": `{}`,
		"zero amount":    `{"accountId":"` + uuid.New().String() + `","type":"deposit","amount":0,"balance":10}`,
		"bad account id": `{"accountId":"acct-1","type":"deposit","amount":10,"balance":10}`,
	}
	for name, payload := range cases {
		_, err := views.DecodeTransactionLogEntry([]byte(payload))
		assert.Error(t, err, name)
	}
}

func TestDecodeBalanceSyncEntry(t *testing.T) {
	in := views.BalanceSyncEntry{
		AccountID: uuid.New().String(),
		OpID:      3,
		Balance:   500,
	}
	payload, err := in.Encode()
	require.NoError(t, err)

	out, err := views.DecodeBalanceSyncEntry(payload)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeBalanceSyncEntry_Malformed(t *testing.T) {
	_, err := views.DecodeBalanceSyncEntry([]byte(`{"accountId":"` + uuid.New().String() + `","opId":0,"balance":5}`))
	assert.Error(t, err, "opId must be positive")

	_, err = views.DecodeBalanceSyncEntry([]byte(`"just a string"`))
	assert.Error(t, err)
}
