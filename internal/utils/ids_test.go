package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOrderNo(t *testing.T) {
	no := NewOrderNo()
	assert.True(t, strings.HasPrefix(no, "ORD"))
	assert.Len(t, no, len("ORD")+14+4, "timestamp plus four random digits")

	// Collisions across quick successive calls are possible in theory
	// but two calls in a row should differ thanks to the random suffix.
	assert.NotEqual(t, no, NewOrderNo())
}

func TestNewTransactionID(t *testing.T) {
	id := NewTransactionID()
	assert.True(t, strings.HasPrefix(id, "PAY"))
	assert.Len(t, id, len("PAY")+14+4)
	assert.NotEqual(t, id, NewTransactionID())
}
