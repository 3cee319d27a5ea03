// Package attest signs exported reports as COSE_Sign1 messages so a third party
// holding the public key can check that an integrity summary or dossier was
// produced from a given load and has not been edited since.
package attest

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/opentender/core"
)

// Report kinds.
const (
	KindIntegrity = "integrity_report"
	KindDossier   = "tender_dossier"
	KindKPIs      = "general_kpis"
)

const contentType = "application/cbor"

// ErrDigestMismatch is returned when a statement body does not hash to its
// recorded digest.
var ErrDigestMismatch = errors.New("report digest mismatch")

// Statement is the signed payload.
type Statement struct {
	// Kind names the report type, e.g. "integrity_report"
	Kind string `cbor:"kind" json:"kind"`

	// Subject identifies the report instance (tender number, snapshot version)
	Subject string `cbor:"subject,omitempty" json:"subject,omitempty"`

	// IssuedAt is when the statement was signed
	IssuedAt time.Time `cbor:"issued_at" json:"issued_at"`

	// Digest is the hex SHA-256 of Body
	Digest string `cbor:"digest" json:"digest"`

	// Body is the deterministic CBOR encoding of the report
	Body []byte `cbor:"body" json:"body"`
}

// bodyDecoding decodes untyped maps with string keys so bodies can be
// re-encoded as JSON.
var bodyDecoding = mustDecMode()

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("attest: building CBOR decode mode: %v", err))
	}
	return dm
}

// Decode unmarshals the report body into v.
func (s *Statement) Decode(v any) error {
	if err := bodyDecoding.Unmarshal(s.Body, v); err != nil {
		return fmt.Errorf("decode %s body: %w", s.Kind, err)
	}
	return nil
}

// SignedBase64 is a base64-encoded COSE_Sign1 message for JSON transport.
type SignedBase64 string

// Decode returns the raw COSE bytes.
func (s SignedBase64) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(string(s))
}

// Encode wraps raw COSE bytes for JSON transport.
func Encode(coseBytes []byte) SignedBase64 {
	return SignedBase64(base64.StdEncoding.EncodeToString(coseBytes))
}

// Sign encodes report deterministically, wraps it in a Statement and signs it
// with ES256. The returned bytes are a tagged COSE_Sign1 message.
func Sign(kind, subject string, report any, key *ecdsa.PrivateKey, issuedAt time.Time) ([]byte, error) {
	if key == nil {
		return nil, errors.New("sign: nil key")
	}
	body, err := core.CanonicalBytes(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	digest := sha256.Sum256(body)
	stmt := Statement{
		Kind:     kind,
		Subject:  subject,
		IssuedAt: issuedAt.UTC(),
		Digest:   fmt.Sprintf("%x", digest),
		Body:     body,
	}
	payload, err := core.CanonicalBytes(stmt)
	if err != nil {
		return nil, fmt.Errorf("encode statement: %w", err)
	}

	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Headers.Protected[cose.HeaderLabelContentType] = contentType
	msg.Payload = payload

	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("sign statement: %w", err)
	}

	coseBytes, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("marshal COSE_Sign1: %w", err)
	}
	return coseBytes, nil
}

// ExtractPayload returns the statement from a COSE_Sign1 message without
// checking the signature.
func ExtractPayload(coseBytes []byte) (*Statement, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(coseBytes); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1: %w", err)
	}
	return decodeStatement(msg.Payload)
}

// Verify checks the ES256 signature with pub, then checks the body digest, and
// returns the statement.
func Verify(coseBytes []byte, pub *ecdsa.PublicKey) (*Statement, error) {
	if pub == nil {
		return nil, errors.New("verify: nil public key")
	}
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(coseBytes); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1: %w", err)
	}

	alg, err := msg.Headers.Protected.Algorithm()
	if err != nil {
		return nil, fmt.Errorf("read algorithm header: %w", err)
	}
	if alg != cose.AlgorithmES256 {
		return nil, fmt.Errorf("unexpected algorithm %v", alg)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, pub)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("COSE signature verification failed: %w", err)
	}

	stmt, err := decodeStatement(msg.Payload)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(stmt.Body)
	if fmt.Sprintf("%x", digest) != stmt.Digest {
		return nil, ErrDigestMismatch
	}
	return stmt, nil
}

func decodeStatement(payload []byte) (*Statement, error) {
	var stmt Statement
	if err := cbor.Unmarshal(payload, &stmt); err != nil {
		return nil, fmt.Errorf("decode statement: %w", err)
	}
	return &stmt, nil
}
