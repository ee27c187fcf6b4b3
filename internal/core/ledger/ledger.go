package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/rentflow/payment-gateway/internal/port/output"
)

// CallbackID computes a deterministic content hash over the normalized
// payload: the JSON is decoded and re-encoded so that key order and
// insignificant whitespace do not change the id. The same logical callback
// therefore hashes identically no matter how many times or in what shape the
// provider delivers it. Payloads that are not valid JSON are hashed as raw
// bytes.
func CallbackID(payload []byte) string {
	var v interface{}
	if err := json.Unmarshal(payload, &v); err == nil {
		if norm, err := json.Marshal(v); err == nil {
			payload = norm
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Ledger answers "has this callback already produced an effect". Entries are
// written append-only by the repository inside the same transaction as the
// effect itself, so a positive answer is always backed by a committed outcome.
type Ledger struct {
	repo output.LedgerRepository
}

// New creates a ledger over the given repository.
func New(repo output.LedgerRepository) *Ledger {
	return &Ledger{repo: repo}
}

// IsProcessed reports whether the (externalRef, callbackID) pair already has
// a ledger entry.
func (l *Ledger) IsProcessed(ctx context.Context, externalRef, callbackID string) (bool, error) {
	return l.repo.IsCallbackProcessed(ctx, externalRef, callbackID)
}
