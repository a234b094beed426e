package public

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/nameservice"
)

type balance struct {
	Address database.Address `json:"address"`
	Name    string           `json:"name"`
	Balance int64            `json:"balance"`
}

type submitResult struct {
	Result  bool   `json:"result"`
	Message string `json:"message"`
}

type mineRequest struct {
	Miner database.Address `json:"miner"`
}

type mineResult struct {
	Mined             bool   `json:"mined"`
	BlockHash         string `json:"block_hash,omitempty"`
	CurrentDifficulty uint   `json:"current_difficulty"`
	Message           string `json:"message,omitempty"`
}

type verifyResult struct {
	VerifyResult bool   `json:"verify_result"`
	Error        string `json:"error,omitempty"`
}

type newAddress struct {
	Address    database.Address `json:"address"`
	PrivateKey string           `json:"private_key"`
}

type peerRequest struct {
	Host string `json:"host" validate:"required,hostport"`
}

type peerResult struct {
	Host  string `json:"host"`
	Added bool   `json:"added"`
}

type tx struct {
	ID           string           `json:"id"`
	Sender       database.Address `json:"sender"`
	SenderName   string           `json:"sender_name"`
	Receiver     database.Address `json:"receiver"`
	ReceiverName string           `json:"receiver_name"`
	Amounts      uint64           `json:"amounts"`
	Fee          uint64           `json:"fee"`
	Message      string           `json:"message"`
	Timestamp    int64            `json:"timestamp"`
	HashValue    string           `json:"hash_value"`
	Metadata     map[string]any   `json:"metadata"`
}

type block struct {
	Number       int              `json:"number"`
	PreviousHash string           `json:"previous_hash"`
	Hash         string           `json:"hash"`
	Difficulty   uint             `json:"difficulty"`
	Nonce        uint64           `json:"nonce"`
	Timestamp    int64            `json:"timestamp"`
	Miner        database.Address `json:"miner"`
	MinerName    string           `json:"miner_name"`
	MinerReward  uint64           `json:"miner_reward"`
	Transactions []tx             `json:"transactions"`
}

type chain struct {
	Length     int     `json:"length"`
	Difficulty uint    `json:"difficulty"`
	Chain      []block `json:"chain"`
}

func toTx(ns *nameservice.NameService, t database.Tx) tx {
	return tx{
		ID:           t.ID(),
		Sender:       t.Sender,
		SenderName:   ns.Lookup(t.Sender),
		Receiver:     t.Receiver,
		ReceiverName: ns.Lookup(t.Receiver),
		Amounts:      t.Amounts,
		Fee:          t.Fee,
		Message:      t.Message,
		Timestamp:    t.Timestamp,
		HashValue:    t.HashValue,
		Metadata:     t.Metadata,
	}
}

func toBlock(ns *nameservice.NameService, number int, b database.Block) block {
	trans := make([]tx, len(b.Transactions))
	for i, t := range b.Transactions {
		trans[i] = toTx(ns, t)
	}

	return block{
		Number:       number,
		PreviousHash: b.PreviousHash,
		Hash:         b.Hash,
		Difficulty:   b.Difficulty,
		Nonce:        b.Nonce,
		Timestamp:    b.Timestamp,
		Miner:        b.Miner,
		MinerName:    ns.Lookup(b.Miner),
		MinerReward:  b.MinerReward,
		Transactions: trans,
	}
}
