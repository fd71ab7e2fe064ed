// Package reference derives booking references from transaction ids and
// converts references between the two dialects the backend stores.
package reference

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"regexp"
	"strings"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
)

type Dialect string

const (
	// Manual references are issued for bookings entered by staff.
	Manual Dialect = "MAN"
	// Online references are issued for bookings paid through the gateway.
	Online Dialect = "PPT"
)

const (
	maxTransactionIDLen = 38
	referenceDigits     = 1_000_000_000
)

var (
	transactionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	referenceBodyPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	dialects             = []Dialect{Manual, Online}
)

func (d Dialect) Valid() bool {
	return d == Manual || d == Online
}

// Derive returns the online reference for transactionID. The result depends
// on nothing but the id, so the redirect and callback paths agree on it.
func Derive(transactionID string) (string, error) {
	if err := validateTransactionID(transactionID); err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(transactionID))
	n := binary.BigEndian.Uint64(sum[:8]) % referenceDigits

	return fmt.Sprintf("%s%09d", Online, n), nil
}

func validateTransactionID(id string) error {
	switch {
	case id == "":
		return apperr.E(apperr.InvalidInput, "reference.Derive", "transaction id is empty")
	case len(id) > maxTransactionIDLen:
		return apperr.Errorf(apperr.InvalidInput, "reference.Derive", "transaction id longer than %d characters", maxTransactionIDLen)
	case !transactionIDPattern.MatchString(id):
		return apperr.Errorf(apperr.InvalidInput, "reference.Derive", "transaction id %q contains invalid characters", id)
	}
	return nil
}

// Parse splits ref into its dialect and body.
func Parse(ref string) (Dialect, string, error) {
	ref = strings.TrimSpace(ref)
	for _, d := range dialects {
		prefix := string(d)
		if len(ref) > len(prefix) && strings.EqualFold(ref[:len(prefix)], prefix) {
			body := ref[len(prefix):]
			if !referenceBodyPattern.MatchString(body) {
				return "", "", apperr.Errorf(apperr.InvalidInput, "reference.Parse", "malformed reference %q", ref)
			}
			return d, body, nil
		}
	}
	return "", "", apperr.Errorf(apperr.InvalidInput, "reference.Parse", "unrecognized reference dialect in %q", ref)
}

// Convert rewrites the prefix of ref to target. A ref already in target is
// returned unchanged. Unknown dialects are rejected rather than guessed.
func Convert(ref string, target Dialect) (string, error) {
	if !target.Valid() {
		return "", apperr.Errorf(apperr.InvalidInput, "reference.Convert", "unknown target dialect %q", target)
	}

	d, body, err := Parse(ref)
	if err != nil {
		return "", err
	}
	if d == target {
		return strings.TrimSpace(ref), nil
	}
	return string(target) + body, nil
}

// Candidates lists the forms ref may be stored under, original first.
// Unrecognized refs yield only themselves.
func Candidates(ref string) []string {
	ref = strings.TrimSpace(ref)
	d, body, err := Parse(ref)
	if err != nil {
		return []string{ref}
	}

	out := []string{ref}
	for _, other := range dialects {
		if other != d {
			out = append(out, string(other)+body)
		}
	}
	return out
}
