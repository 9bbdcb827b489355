package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionStatusCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from TransactionStatus
		to   TransactionStatus
		want bool
	}{
		{"pending to succeeded", TransactionStatusPending, TransactionStatusSucceeded, true},
		{"pending to failed", TransactionStatusPending, TransactionStatusFailed, true},
		{"succeeded to refunded", TransactionStatusSucceeded, TransactionStatusRefunded, true},
		{"same status replay", TransactionStatusSucceeded, TransactionStatusSucceeded, true},
		{"succeeded back to pending", TransactionStatusSucceeded, TransactionStatusPending, false},
		{"refunded back to succeeded", TransactionStatusRefunded, TransactionStatusSucceeded, false},
		{"failed to succeeded", TransactionStatusFailed, TransactionStatusSucceeded, false},
		{"pending to refunded", TransactionStatusPending, TransactionStatusRefunded, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanTransition(tc.to))
		})
	}
}
