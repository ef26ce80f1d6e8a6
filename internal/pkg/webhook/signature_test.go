package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"
)

func signPayload(t *testing.T, payload []byte, secret string, ts int64) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)
	secret := "whsec_test"
	now := time.Now()

	header := signPayload(t, payload, secret, now.Unix())
	if !verifySignatureAt(payload, header, secret, DefaultSignatureTolerance, now) {
		t.Fatalf("expected valid signature to verify")
	}
	if verifySignatureAt(payload, header, "whsec_other", DefaultSignatureTolerance, now) {
		t.Fatalf("expected wrong secret to fail")
	}
	if verifySignatureAt([]byte(`{"tampered":true}`), header, secret, DefaultSignatureTolerance, now) {
		t.Fatalf("expected tampered payload to fail")
	}
}

func TestVerifySignatureTolerance(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_test"
	now := time.Now()

	stale := signPayload(t, payload, secret, now.Add(-10*time.Minute).Unix())
	if verifySignatureAt(payload, stale, secret, DefaultSignatureTolerance, now) {
		t.Fatalf("expected stale timestamp outside tolerance to fail")
	}
	if !verifySignatureAt(payload, stale, secret, 0, now) {
		t.Fatalf("expected zero tolerance to skip the age check")
	}
}

func TestVerifySignatureMultipleV1(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_test"
	now := time.Now()

	valid := signPayload(t, payload, secret, now.Unix())
	header := fmt.Sprintf("t=%d,v1=deadbeef,%s", now.Unix(), valid[len(fmt.Sprintf("t=%d,", now.Unix())):])
	if !verifySignatureAt(payload, header, secret, DefaultSignatureTolerance, now) {
		t.Fatalf("expected one matching v1 among several to verify")
	}
}

func TestVerifySignatureMalformedHeader(t *testing.T) {
	payload := []byte(`{}`)
	for _, header := range []string{"", "v1=abcd", "t=notanumber,v1=abcd", "t=123"} {
		if VerifySignature(payload, header, "whsec_test") {
			t.Fatalf("expected malformed header %q to fail", header)
		}
	}
	if VerifySignature(payload, "t=1,v1=00", "") {
		t.Fatalf("expected empty secret to fail")
	}
}
