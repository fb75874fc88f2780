/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package credentials

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/golang-jwt/jwt/v4"
)

// NewSigner returns the signer of GitHub App JWTs for a key reference.
// Supported schemes:
//   - file://<path>: a PEM encoded RSA private key read from a file.
//   - gcpkms://<key>: a remote signer for a GCP KMS asymmetric signing key version.
func NewSigner(ctx context.Context, ref string) (ghinstallation.Signer, error) {
	scheme, key, ok := strings.Cut(ref, "://")
	if !ok {
		return nil, fmt.Errorf("invalid key reference: %q", ref)
	}

	switch scheme {
	case "file":
		pem, err := os.ReadFile(key)
		if err != nil {
			return nil, fmt.Errorf("reading private key: %w", err)
		}
		return NewPEMSigner(pem)

	case "gcpkms":
		client, err := kms.NewKeyManagementClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating kms client: %w", err)
		}
		return &kmsSigner{ctx: ctx, client: client, key: key}, nil
	}
	return nil, fmt.Errorf("unknown key scheme: %q", scheme)
}

// NewPEMSigner returns a signer for a PEM encoded RSA private key.
func NewPEMSigner(pem []byte) (ghinstallation.Signer, error) {
	rsa, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return ghinstallation.NewRSASigner(jwt.SigningMethodRS256, rsa), nil
}

// kmsSigner signs GitHub App JWTs with a GCP KMS key.
type kmsSigner struct {
	ctx    context.Context
	client *kms.KeyManagementClient
	key    string
}

// Sign implements ghinstallation.Signer.
func (s *kmsSigner) Sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(&kmsSigningMethod{s: s}, claims).SignedString(s.key)
}

// kmsSigningMethod adapts KMS AsymmetricSign to jwt.SigningMethod.
type kmsSigningMethod struct {
	s *kmsSigner
}

func (m *kmsSigningMethod) Verify(string, string, interface{}) error {
	return errors.New("not implemented")
}

func (m *kmsSigningMethod) Sign(signingString string, ikey interface{}) (string, error) {
	key, ok := ikey.(string)
	if !ok {
		return "", fmt.Errorf("invalid key reference type: %T", ikey)
	}
	resp, err := m.s.client.AsymmetricSign(m.s.ctx, &kmspb.AsymmetricSignRequest{
		Name: key,
		Data: []byte(signingString),
	})
	if err != nil {
		return "", fmt.Errorf("signing with kms: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(resp.GetSignature()), nil
}

func (m *kmsSigningMethod) Alg() string {
	return "RS256"
}
