// AngelaMos | 2026
// signature.go

package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the gateway callback signature: hex-encoded
// HMAC-SHA256 of "orderID|paymentID" under the shared key secret.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a callback signature in constant time. Any
// deviation from the exact expected hex string is a rejection.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
