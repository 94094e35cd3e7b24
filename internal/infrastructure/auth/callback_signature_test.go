package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackVerifier(t *testing.T) {
	body := []byte(`{"order_id":"order_1","payment_id":"pay_1"}`)
	v := NewCallbackVerifier("webhook-secret")

	sig := v.Sign("1700000000", body)
	assert.NoError(t, v.Verify("1700000000", sig, body))
	assert.ErrorIs(t, v.Verify("1700000001", sig, body), pkgerrors.ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify("1700000000", sig, []byte(`{"order_id":"order_2"}`)), pkgerrors.ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify("1700000000", "", body), pkgerrors.ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify("1700000000", "%%%", body), pkgerrors.ErrInvalidSignature)

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	assert.Len(t, raw, sha256.Size)
	assert.ErrorIs(t, v.Verify("1700000000", base64.StdEncoding.EncodeToString(raw[:16]), body), pkgerrors.ErrInvalidSignature)

	other := NewCallbackVerifier("other-secret")
	assert.ErrorIs(t, v.Verify("1700000000", other.Sign("1700000000", body), body), pkgerrors.ErrInvalidSignature)

	disabled := NewCallbackVerifier("")
	assert.False(t, disabled.Enabled())
	assert.NoError(t, disabled.Verify("", "", body))
}
