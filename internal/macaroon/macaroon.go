// Package macaroon loads lnd macaroon files and attaches them to outgoing
// RPCs as the hex-encoded "macaroon" metadata header lnd expects.
package macaroon

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"google.golang.org/grpc/credentials"
)

// MetadataKey is the header lnd reads the macaroon from.
const MetadataKey = "macaroon"

// Encode returns the lowercase hex form of a raw macaroon.
func Encode(raw []byte) string {
	return hex.EncodeToString(raw)
}

// Decode reverses Encode.
func Decode(s string) ([]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode macaroon hex: %w", err)
	}
	return raw, nil
}

// Credential is a loaded macaroon ready to be sent with every request.
// It is immutable and safe for concurrent use.
type Credential struct {
	hex string
}

var _ credentials.PerRPCCredentials = Credential{}

// New wraps raw macaroon bytes.
func New(raw []byte) Credential {
	return Credential{hex: Encode(raw)}
}

// Load reads the whole file at path. The bytes are not validated; lnd is the
// authority on whether a macaroon is acceptable.
func Load(ctx context.Context, path string) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Credential{}, err
	}
	return New(raw), nil
}

// Hex returns the header value.
func (c Credential) Hex() string { return c.hex }

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (c Credential) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	return map[string]string{MetadataKey: c.hex}, nil
}

// RequireTransportSecurity is false so the credential also works against
// plaintext test daemons.
func (c Credential) RequireTransportSecurity() bool { return false }
