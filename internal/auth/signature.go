package auth

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vaultkeep/vaultkeep/internal/pda"
)

const (
	// SignerHeader carries the caller's address, which is its ed25519 public key.
	SignerHeader = "X-Vault-Signer"
	// TimestampHeader carries the signing time in unix seconds.
	TimestampHeader = "X-Vault-Timestamp"
	// SignatureHeader carries the base64 ed25519 signature.
	SignatureHeader = "X-Vault-Signature"
	// IdempotencyKeyHeader carries the client's retry key. It is covered by
	// the signature so a relay cannot re-key a signed request.
	IdempotencyKeyHeader = "Idempotency-Key"

	// SignerLocal is the fiber Locals key holding the verified caller.
	SignerLocal = "signer"

	defaultMaxSkew = 5 * time.Minute
)

var (
	ErrMissingSignature = errors.New("missing request signature")
	ErrMalformed        = errors.New("malformed request signature")
	ErrStaleTimestamp   = errors.New("request timestamp outside allowed window")
	ErrBadSignature     = errors.New("signature verification failed")
)

// CanonicalMessage returns the bytes a caller signs for one request:
//
//	METHOD\nPATH\nTIMESTAMP\nIDEMPOTENCY-KEY\nhex(sha256(body))
//
// An absent idempotency key contributes an empty line.
func CanonicalMessage(method, path, timestamp, idempotencyKey string, body []byte) []byte {
	digest := sha256.Sum256(body)
	return []byte(strings.Join([]string{
		strings.ToUpper(method), path, timestamp, idempotencyKey, hex.EncodeToString(digest[:]),
	}, "\n"))
}

// Headers holds the signature headers of a request together with the
// idempotency key they cover.
type Headers struct {
	Signer         string
	Timestamp      string
	Signature      string
	IdempotencyKey string
}

// Sign produces the headers for a request signed with key at time now.
func Sign(key ed25519.PrivateKey, method, path, idempotencyKey string, body []byte, now time.Time) Headers {
	pub := key.Public().(ed25519.PublicKey)
	signer, _ := pda.AddressFromBytes(pub)
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := ed25519.Sign(key, CanonicalMessage(method, path, ts, idempotencyKey, body))
	return Headers{
		Signer:         signer.String(),
		Timestamp:      ts,
		Signature:      base64.StdEncoding.EncodeToString(sig),
		IdempotencyKey: idempotencyKey,
	}
}

// Verifier checks request signatures.
type Verifier struct {
	MaxSkew time.Duration
	Now     func() time.Time
}

// NewVerifier builds a verifier accepting timestamps within maxSkew of now.
func NewVerifier(maxSkew time.Duration) *Verifier {
	if maxSkew <= 0 {
		maxSkew = defaultMaxSkew
	}
	return &Verifier{MaxSkew: maxSkew, Now: time.Now}
}

// Verify returns the signer of a request whose headers validate.
func (v *Verifier) Verify(method, path string, h Headers, body []byte) (pda.Address, error) {
	if h.Signer == "" || h.Timestamp == "" || h.Signature == "" {
		return pda.Address{}, ErrMissingSignature
	}
	signer, err := pda.ParseAddress(h.Signer)
	if err != nil {
		return pda.Address{}, fmt.Errorf("%w: signer: %v", ErrMalformed, err)
	}
	unix, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		return pda.Address{}, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
	}
	sig, err := base64.StdEncoding.DecodeString(h.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return pda.Address{}, fmt.Errorf("%w: signature encoding", ErrMalformed)
	}

	skew := v.Now().Sub(time.Unix(unix, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.MaxSkew {
		return pda.Address{}, ErrStaleTimestamp
	}

	if !ed25519.Verify(ed25519.PublicKey(signer.Bytes()), CanonicalMessage(method, path, h.Timestamp, h.IdempotencyKey, body), sig) {
		return pda.Address{}, ErrBadSignature
	}
	return signer, nil
}
