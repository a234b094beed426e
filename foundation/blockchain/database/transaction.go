package database

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// Tx is the transactional information between two parties. The JSON keys are
// declared in sorted order since this encoding feeds the block content hash.
type Tx struct {
	Amounts   uint64         `json:"amounts"`    // Value moved from sender to receiver.
	Fee       uint64         `json:"fee"`        // Debited from the sender and burned.
	HashValue string         `json:"hash_value"` // Opaque reference or payload.
	Message   string         `json:"message"`    // Free text.
	Metadata  map[string]any `json:"metadata"`   // Arbitrary data anchored with the transaction.
	Receiver  Address        `json:"receiver"`   // Account receiving the amount.
	Sender    Address        `json:"sender"`     // Public key of the account paying.
	Timestamp int64          `json:"timestamp"`  // Unix seconds when the transaction was created.
}

// NewTx constructs a new transaction.
func NewTx(sender Address, receiver Address, amounts uint64, fee uint64, message string) Tx {
	return Tx{
		Sender:    sender,
		Receiver:  receiver,
		Amounts:   amounts,
		Fee:       fee,
		Message:   message,
		Timestamp: time.Now().UTC().Unix(),
		Metadata:  map[string]any{},
	}
}

// signingValue is the subset of the transaction covered by the signature.
type signingValue struct {
	Sender   Address `json:"sender"`
	Receiver Address `json:"receiver"`
	Amounts  uint64  `json:"amounts"`
	Fee      uint64  `json:"fee"`
	Message  string  `json:"message"`
}

// ID returns the identity of the transaction, a hash over every field. Two
// transactions with the same ID are the same transaction.
func (tx Tx) ID() string {
	data, err := json.Marshal(tx.normalize())
	if err != nil {
		return ""
	}
	return crypto.Keccak256Hash(data).Hex()
}

// Sign uses the specified private key to sign the transaction.
func (tx Tx) Sign(privateKey *rsa.PrivateKey) (SignedTx, error) {
	sig, err := signature.Sign(tx.signingValue(), privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	signedTx := SignedTx{
		Tx:        tx.normalize(),
		Signature: sig,
	}

	return signedTx, nil
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s->%s:%d:%d", tx.Sender, tx.Receiver, tx.Amounts, tx.Fee)
}

// signingValue returns the canonical form of the transaction signed by the
// sender. Timestamp, hash value and metadata are excluded.
func (tx Tx) signingValue() signingValue {
	return signingValue{
		Sender:   tx.Sender,
		Receiver: tx.Receiver,
		Amounts:  tx.Amounts,
		Fee:      tx.Fee,
		Message:  tx.Message,
	}
}

// normalize makes sure a nil metadata map encodes the same as an empty one.
func (tx Tx) normalize() Tx {
	if tx.Metadata == nil {
		tx.Metadata = map[string]any{}
	}
	return tx
}

// =============================================================================

// SignedTx is a transaction with the sender's signature. This is how clients
// like a wallet provide transactions for admission into the mempool.
type SignedTx struct {
	Tx        `json:"transaction"`
	Signature []byte `json:"signature"`
}

// Validate verifies the transaction has a proper signature from the sender.
func (tx SignedTx) Validate() error {
	if tx.Sender.IsMint() {
		return fmt.Errorf("%w: mint address can't sign", signature.ErrMalformedKey)
	}

	if len(tx.Signature) == 0 {
		return fmt.Errorf("%w: missing signature", signature.ErrBadSignature)
	}

	return signature.Verify(tx.signingValue(), tx.Signature, string(tx.Sender))
}
