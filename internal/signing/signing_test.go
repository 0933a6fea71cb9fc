package signing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// throwaway key, never funded
const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestPayloadHashFormat(t *testing.T) {
	ph, err := PayloadHash(map[string]any{"type": "test", "id": "test-001"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ph, HashPrefix))
	require.Len(t, ph, len(HashPrefix)+64)
}

func TestPayloadHashIgnoresSig(t *testing.T) {
	a, err := PayloadHash(map[string]any{"x": "1"})
	require.NoError(t, err)
	b, err := PayloadHash(map[string]any{"x": "1", "sig": "eip191:0xff"})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSignRecoverRoundTrip(t *testing.T) {
	op, err := LoadOperator(testKey)
	require.NoError(t, err)

	payload := map[string]any{"type": "state", "pool": "swarmos.eth"}
	sig, err := op.Sign(payload)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sig, SigPrefix))

	addr, err := Recover(payload, sig)
	require.NoError(t, err)
	require.Equal(t, op.Address, addr)

	payload["sig"] = sig
	require.True(t, VerifyAddress(payload, op.Address))
}

func TestRecoverDetectsTamper(t *testing.T) {
	op, err := LoadOperator("0x" + testKey)
	require.NoError(t, err)

	payload := map[string]any{"reward": "1.00"}
	sig, err := op.Sign(payload)
	require.NoError(t, err)

	addr, err := Recover(map[string]any{"reward": "9.00"}, sig)
	require.NoError(t, err)
	require.NotEqual(t, op.Address, addr)
}

func TestVerifyAddressMissingSig(t *testing.T) {
	op, err := LoadOperator(testKey)
	require.NoError(t, err)
	require.False(t, VerifyAddress(map[string]any{"x": "1"}, op.Address))
}

func TestLoadOperatorRejectsGarbage(t *testing.T) {
	_, err := LoadOperator("")
	require.Error(t, err)
	_, err = LoadOperator("not-a-key")
	require.Error(t, err)
}
