package network

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/validate"
)

// dispatch routes an inbound message to the handler. A nil response means
// nothing is written back to the peer.
func (n *Network) dispatch(msg Message) (any, error) {
	if err := validate.Check(msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	switch msg.Request {
	case RequestGetBalance:
		var req BalanceRequest
		if err := decodeCheck(msg, &req); err != nil {
			return nil, err
		}

		resp := BalanceResponse{
			Address: req.Address,
			Balance: n.cfg.Handler.Balance(req.Address),
		}
		return resp, nil

	case RequestTransaction:
		var tx database.SignedTx
		if err := msg.Decode(&tx); err != nil {
			return nil, err
		}

		if err := n.cfg.Handler.SubmitTransaction(tx); err != nil {
			resp := TransactionResponse{
				Result:  false,
				Message: err.Error(),
			}
			return resp, nil
		}

		resp := TransactionResponse{
			Result:  true,
			Message: "transaction added to mempool",
		}
		return resp, nil

	case RequestCloneBlockchain:
		snap, err := n.cfg.Handler.Snapshot()
		if err != nil {
			return nil, err
		}

		resp, err := NewMessage(requestUploadBlockchain, snap)
		if err != nil {
			return nil, err
		}
		return resp, nil

	case RequestBroadcastBlock:
		var block database.Block
		if err := msg.Decode(&block); err != nil {
			return nil, err
		}

		if err := n.cfg.Handler.ProposeBlock(block); err != nil {
			return nil, fmt.Errorf("block[%s] rejected: %w", block.Hash, err)
		}
		return nil, nil

	case RequestBroadcastTransaction:
		var tx database.SignedTx
		if err := msg.Decode(&tx); err != nil {
			return nil, err
		}

		if err := n.cfg.Handler.RelayTransaction(tx); err != nil {
			return nil, fmt.Errorf("tx[%s] rejected: %w", tx, err)
		}
		return nil, nil

	case RequestAddNode:
		var req nodeRequest
		if err := msg.Decode(&req.Host); err != nil {
			return nil, err
		}
		if err := validate.Check(req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
		}

		n.cfg.Handler.AddPeer(req.Host)
		return nil, nil
	}

	return unknownResponse{Message: "unknown command"}, nil
}

// decodeCheck decodes the message data and validates the result.
func decodeCheck(msg Message, v any) error {
	if err := msg.Decode(v); err != nil {
		return err
	}

	if err := validate.Check(v); err != nil {
		return fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	return nil
}
