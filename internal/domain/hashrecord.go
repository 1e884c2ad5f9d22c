package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// GenesisHash is the sentinel previous-hash of the first record in a chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// HashRecord links one snapshot into a source's hash chain. Records are
// append-only and owned exclusively by the ledger; the chain's validity
// proof depends on them never being mutated or deleted.
type HashRecord struct {
	SequenceIndex int       `json:"sequence_index"`
	SourceID      string    `json:"source_id"`
	ContentHash   string    `json:"content_hash"`
	PreviousHash  string    `json:"previous_hash"`
	ChainHash     string    `json:"chain_hash"`
	SnapshotRef   string    `json:"snapshot_ref"`
	CreatedAt     time.Time `json:"created_at"`
}

// ComputeContentHash digests a canonical snapshot serialization.
func ComputeContentHash(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// ComputeChainHash links a content hash to its predecessor. The digest runs
// over the hex encodings so a record is verifiable from its fields alone.
func ComputeChainHash(previousHash, contentHash string) string {
	hasher := sha256.New()
	hasher.Write([]byte(previousHash))
	hasher.Write([]byte(contentHash))
	return hex.EncodeToString(hasher.Sum(nil))
}

// VerificationResult reports the outcome of walking a chain. FirstBreakIndex
// is -1 when the chain is intact; otherwise every record at and after that
// index is untrusted.
type VerificationResult struct {
	Valid           bool `json:"valid"`
	FirstBreakIndex int  `json:"first_break_index"`
}

// ChainTip is the exported head of a source's chain, consumed read-only by
// downstream collaborators such as the anchoring engine.
type ChainTip struct {
	SourceID      string `json:"source_id"`
	SequenceIndex int    `json:"sequence_index"`
	ContentHash   string `json:"content_hash"`
	ChainHash     string `json:"chain_hash"`
}
