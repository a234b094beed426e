package network

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// Set of request kinds understood by a node.
const (
	RequestGetBalance           = "get_balance"
	RequestTransaction          = "transaction"
	RequestCloneBlockchain      = "clone_blockchain"
	RequestBroadcastBlock       = "broadcast_block"
	RequestBroadcastTransaction = "broadcast_transaction"
	RequestAddNode              = "add_node"
)

// requestUploadBlockchain tags the snapshot sent back for a clone request.
const requestUploadBlockchain = "upload_blockchain"

// Message is the tagged record exchanged between nodes. Exactly one message
// travels in each direction of a connection.
type Message struct {
	Request string          `json:"request" validate:"required"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewMessage constructs a message for the request kind with the data encoded.
func NewMessage(request string, data any) (Message, error) {
	msg := Message{
		Request: request,
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Message{}, fmt.Errorf("encoding %s data: %w", request, err)
		}
		msg.Data = raw
	}

	return msg, nil
}

// Decode unmarshals the message data into the value. Numbers inside
// arbitrary metadata are kept in their literal form so hashes computed by
// the sender are reproduced exactly.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%w: %s: missing data", ErrParseFailed, m.Request)
	}

	if err := unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrParseFailed, m.Request, err)
	}

	return nil
}

// =============================================================================

// BalanceRequest is the data of a get_balance request.
type BalanceRequest struct {
	Address database.Address `json:"address" validate:"required"`
}

// BalanceResponse is the answer to a get_balance request.
type BalanceResponse struct {
	Address database.Address `json:"address"`
	Balance int64            `json:"balance"`
}

// TransactionResponse is the answer to a transaction request.
type TransactionResponse struct {
	Result  bool   `json:"result"`
	Message string `json:"message"`
}

// nodeRequest validates the host carried by an add_node request.
type nodeRequest struct {
	Host string `json:"host" validate:"required,hostport"`
}

// unknownResponse is the answer to a request kind this node doesn't serve.
type unknownResponse struct {
	Message string `json:"message"`
}

// =============================================================================

// writeMessage encodes the value and signals the end of the message by
// closing the write side of the connection.
func writeMessage(conn net.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.CloseWrite(); err != nil {
			return fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
	}

	return nil
}

// readMessage reads until the peer closes its write side and decodes the
// bytes into the value. Messages larger than max bytes are rejected.
func readMessage(conn net.Conn, max int64, v any) error {
	data, err := io.ReadAll(io.LimitReader(conn, max+1))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}

	switch {
	case len(data) == 0:
		return fmt.Errorf("%w: empty message", ErrDisconnected)
	case int64(len(data)) > max:
		return fmt.Errorf("%w: message exceeds %d bytes", ErrParseFailed, max)
	}

	if err := unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	return nil
}

// unmarshal decodes a single JSON document with numbers kept as literals.
func unmarshal(data []byte, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(v); err != nil {
		return err
	}

	if decoder.More() {
		return fmt.Errorf("trailing data after message")
	}

	return nil
}
