package utils

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// NewOrderNo generates an externally visible order number in the form
// ORD<yyyyMMddHHmmss><4 digits>.  The random suffix disambiguates
// orders created within the same second.
func NewOrderNo() string {
	return "ORD" + timestampedSuffix()
}

// NewTransactionID generates a payment transaction id in the form
// PAY<yyyyMMddHHmmss><4 digits>.  It serves as the idempotency key for
// payment-result signals.
func NewTransactionID() string {
	return "PAY" + timestampedSuffix()
}

func timestampedSuffix() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	n := binary.BigEndian.Uint32(b[:]) % 10000
	return time.Now().UTC().Format("20060102150405") + fmt.Sprintf("%04d", n)
}
