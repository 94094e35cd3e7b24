package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	TimestampHeader = "X-Webhook-Timestamp"
)

// CallbackVerifier checks gateway callbacks signed as
// base64(HMAC-SHA256(secret, timestamp + body)).
type CallbackVerifier struct {
	secret []byte
}

func NewCallbackVerifier(secret string) *CallbackVerifier {
	return &CallbackVerifier{secret: []byte(secret)}
}

func (v *CallbackVerifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

func (v *CallbackVerifier) mac(timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return mac.Sum(nil)
}

func (v *CallbackVerifier) Sign(timestamp string, body []byte) string {
	return base64.StdEncoding.EncodeToString(v.mac(timestamp, body))
}

// Verify accepts everything when no secret is configured.
func (v *CallbackVerifier) Verify(timestamp, signature string, body []byte) error {
	if !v.Enabled() {
		return nil
	}
	if signature == "" {
		return pkgerrors.ErrInvalidSignature
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return pkgerrors.ErrInvalidSignature
	}
	if !hmac.Equal(got, v.mac(timestamp, body)) {
		return pkgerrors.ErrInvalidSignature
	}
	return nil
}
