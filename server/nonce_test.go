// SPDX-License-Identifier: ice License 1.0

package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonces(t *testing.T) {
	t.Parallel()
	nonces := NewNonces("some long random secret")
	nonce := nonces.IssueNonce("gforms_google_analytics_entry_meta")
	assert.NotEmpty(t, nonce)
	// Nonces are deterministic per (secret, action) pair.
	assert.Equal(t, nonce, nonces.IssueNonce("gforms_google_analytics_entry_meta"))
	assert.NotEqual(t, nonce, nonces.IssueNonce("gforms_google_analytics_logging"))

	require.NoError(t, nonces.Verify("gforms_google_analytics_entry_meta", nonce))
	require.Error(t, nonces.Verify("gforms_google_analytics_logging", nonce))
	require.Error(t, nonces.Verify("gforms_google_analytics_entry_meta", "bogus"))
	require.Error(t, NewNonces("another secret").Verify("gforms_google_analytics_entry_meta", nonce))
}

func TestVerifyNonce(t *testing.T) {
	t.Parallel()
	require.Error(t, VerifyNonce(context.Background(), "some_action", "whatever"))

	nonces := NewNonces("some long random secret")
	ctx := ContextWithNonces(context.Background(), nonces)
	require.NoError(t, VerifyNonce(ctx, "some_action", nonces.IssueNonce("some_action")))
	require.Error(t, VerifyNonce(ctx, "some_action", nonces.IssueNonce("another_action")))
}
