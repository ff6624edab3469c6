// SPDX-License-Identifier: ice License 1.0

package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

func NewNonces(secret string) *Nonces {
	return &Nonces{secret: []byte(secret)}
}

// IssueNonce returns the nonce authenticating the given action for the whole lifetime of the secret.
func (n *Nonces) IssueNonce(action string) string {
	mac := hmac.New(sha256.New, n.secret)
	mac.Write([]byte(action))

	return hex.EncodeToString(mac.Sum(nil))
}

func (n *Nonces) Verify(action, nonce string) error {
	if !hmac.Equal([]byte(n.IssueNonce(action)), []byte(nonce)) {
		return errors.Errorf("invalid nonce for action `%v`", action)
	}

	return nil
}

func VerifyNonce(ctx context.Context, action, nonce string) error {
	nonces, found := ctx.Value(noncesCtxValueKey).(*Nonces)
	if !found {
		return errors.New("nonce verification is not configured")
	}

	return nonces.Verify(action, nonce)
}

// ContextWithNonces is intended for tests and embedded routers that bypass ListenAndServe.
func ContextWithNonces(ctx context.Context, nonces *Nonces) context.Context {
	return context.WithValue(ctx, noncesCtxValueKey, nonces) //nolint:staticcheck,revive // .
}
