// Package signing implements the snapshot signature scheme: keccak256 over
// canonical payload bytes, then an EIP-191 personal-message signature over the
// payload hash string. Identities resolve to secp256k1 addresses via ENS.
package signing

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"swarmpool/internal/canon"
	"swarmpool/internal/utils"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	HashPrefix = "keccak256:"
	SigPrefix  = "eip191:0x"
)

type Operator struct {
	key     *ecdsa.PrivateKey
	Address common.Address
}

// LoadOperator parses a hex encoded secp256k1 private key, with or without
// the 0x prefix.
func LoadOperator(hexkey string) (*Operator, error) {
	hexkey = strings.TrimPrefix(strings.TrimSpace(hexkey), "0x")
	if hexkey == "" {
		return nil, errors.New("empty operator key")
	}
	key, err := crypto.HexToECDSA(hexkey)
	if err != nil {
		return nil, utils.Wrap("failed parsing operator key", err)
	}
	return &Operator{key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// PayloadHash computes "keccak256:<hex>" over the canonical payload bytes.
func PayloadHash(payload any) (string, error) {
	b, err := canon.Canonicalize(payload)
	if err != nil {
		return "", err
	}
	return HashPrefix + hex.EncodeToString(crypto.Keccak256(b)), nil
}

// Sign produces an "eip191:0x<hex>" signature over the payload hash string.
// The hash string itself is the EIP-191 personal message, matching what
// wallet verifiers expect.
func (o *Operator) Sign(payload any) (string, error) {
	ph, err := PayloadHash(payload)
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(ph)), o.key)
	if err != nil {
		return "", utils.Wrap("failed signing payload hash", err)
	}
	// Wallet tooling carries V as 27/28.
	sig[64] += 27
	return SigPrefix + hex.EncodeToString(sig), nil
}

// Recover returns the address that produced sig over payload.
func Recover(payload any, sig string) (common.Address, error) {
	raw := strings.TrimPrefix(sig, SigPrefix)
	raw = strings.TrimPrefix(raw, "0x")
	b, err := hex.DecodeString(raw)
	if err != nil {
		return common.Address{}, utils.Wrap("failed decoding signature hex", err)
	}
	if len(b) != 65 {
		return common.Address{}, fmt.Errorf("bad signature length %d", len(b))
	}
	if b[64] >= 27 {
		b[64] -= 27
	}
	ph, err := PayloadHash(payload)
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(ph)), b)
	if err != nil {
		return common.Address{}, utils.Wrap("failed recovering signer", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyAddress checks that the payload's own sig field recovers to addr.
func VerifyAddress(payload map[string]any, addr common.Address) bool {
	sig, ok := payload["sig"].(string)
	if !ok || sig == "" {
		return false
	}
	got, err := Recover(payload, sig)
	if err != nil {
		return false
	}
	return got == addr
}
