package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func signFor(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "test-secret"
	orderID := "order_123"
	paymentID := "pay_456"
	signature := signFor(secret, orderID, paymentID)

	if !VerifySignature(secret, orderID, paymentID, signature) {
		t.Fatal("expected genuine signature to verify")
	}
}

func TestVerifySignatureRejectsMutations(t *testing.T) {
	secret := "test-secret"
	orderID := "order_123"
	paymentID := "pay_456"
	signature := signFor(secret, orderID, paymentID)

	cases := []struct {
		name      string
		secret    string
		orderID   string
		paymentID string
		signature string
	}{
		{"wrong secret", "other-secret", orderID, paymentID, signature},
		{"wrong order", secret, "order_999", paymentID, signature},
		{"wrong payment", secret, orderID, "pay_999", signature},
		{"tampered signature", secret, orderID, paymentID, signature[:len(signature)-1] + "0"},
		{"empty signature", secret, orderID, paymentID, ""},
		{"uppercase hex", secret, orderID, paymentID, "ABCDEF"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if VerifySignature(tc.secret, tc.orderID, tc.paymentID, tc.signature) {
				t.Fatal("expected verification to fail")
			}
		})
	}
}

func TestCreditsForAmount(t *testing.T) {
	cases := []struct {
		amount int64
		want   int64
	}{
		{99, 10},
		{249, 30},
		{449, 55},
		{699, 90},
		{500, 0},
		{0, 0},
		{-99, 0},
	}
	for _, tc := range cases {
		if got := CreditsForAmount(tc.amount); got != tc.want {
			t.Fatalf("CreditsForAmount(%d) = %d, want %d", tc.amount, got, tc.want)
		}
	}
}
