package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMethod_NeedsProof tests which methods go through manual approval
func TestMethod_NeedsProof(t *testing.T) {
	tests := []struct {
		method    Method
		valid     bool
		needProof bool
	}{
		{MethodCash, true, false},
		{MethodBank, true, true},
		{MethodSTC, true, true},
		{MethodURPay, true, true},
		{MethodMada, true, true},
		{Method("paypal"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.method.IsValid())
			assert.Equal(t, tt.needProof, tt.method.NeedsProof())
		})
	}
	assert.Len(t, Methods(), 5)
}

// TestRequest_IsOpen tests request states that still accept a payment
func TestRequest_IsOpen(t *testing.T) {
	assert.True(t, (&Request{Status: RequestPending}).IsOpen())
	assert.True(t, (&Request{Status: RequestAwaitingProof}).IsOpen())
	assert.False(t, (&Request{Status: RequestCompleted}).IsOpen())
	assert.False(t, (&Request{Status: RequestCancelled}).IsOpen())
}
