package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pointsplane/pkg/config"
	"pointsplane/pkg/errutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const testSecret = "whsec_test_secret"

// signPayload builds a provider signature header: HMAC-SHA256 over
// "<timestamp>.<payload>".
func signPayload(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedPayload(meta string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test_1", "metadata": %s}}
	}`, meta))
}

func newTestVerifier() Verifier {
	cfg := &config.Config{}
	cfg.Stripe.WebhookSecret = testSecret
	return NewVerifier(cfg)
}

func TestVerifyValidSignature(t *testing.T) {
	v := newTestVerifier()
	payload := checkoutCompletedPayload(`{"user_id": "42"}`)

	event, err := v.Verify(payload, signPayload(testSecret, payload, time.Now()))
	require.NoError(t, err)
	require.Equal(t, "evt_test_1", event.ID)
	require.Equal(t, "checkout.session.completed", string(event.Type))
}

func TestVerifyAlteredPayload(t *testing.T) {
	v := newTestVerifier()
	payload := checkoutCompletedPayload(`{"user_id": "42"}`)
	header := signPayload(testSecret, payload, time.Now())

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = 'X'

	_, err := v.Verify(tampered, header)
	require.Error(t, err)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusInvalidSignature, be.Status())
	require.Equal(t, 400, be.Status().HTTPStatus())
}

func TestVerifyStaleTimestamp(t *testing.T) {
	v := newTestVerifier()
	payload := checkoutCompletedPayload(`{}`)

	// beyond the provider's standard tolerance window
	header := signPayload(testSecret, payload, time.Now().Add(-time.Hour))

	_, err := v.Verify(payload, header)
	require.Error(t, err)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusInvalidSignature, be.Status())
}

func TestVerifyGarbageHeader(t *testing.T) {
	v := newTestVerifier()
	payload := checkoutCompletedPayload(`{}`)

	_, err := v.Verify(payload, "not-a-signature")
	require.Error(t, err)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusInvalidSignature, be.Status())
}

func TestVerifyMalformedEnvelope(t *testing.T) {
	v := newTestVerifier()
	payload := []byte("this is not json")

	_, err := v.Verify(payload, signPayload(testSecret, payload, time.Now()))
	require.Error(t, err)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusMalformedPayload, be.Status())
}

func TestVerifyMissingSecret(t *testing.T) {
	v := NewVerifier(&config.Config{})
	payload := checkoutCompletedPayload(`{}`)

	_, err := v.Verify(payload, signPayload(testSecret, payload, time.Now()))
	require.Error(t, err)
}
