// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/worker"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"github.com/ardanlabs/powchain/foundation/node"
	"github.com/ardanlabs/powchain/foundation/validate"
	"github.com/ardanlabs/powchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log  *zap.SugaredLogger
	Node *node.Node
	NS   *nameservice.NameService
	WS   websocket.Upgrader
	Evts *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Need this to handle CORS on the websocket.
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	// This upgrades the HTTP connection to a websocket connection.
	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// This provides a channel for receiving events from the node.
	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	// Starting a ticker to send a ping message over the websocket.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	// Block waiting for events from the node or ticker.
	for {
		select {
		case msg, wd := <-ch:

			// If the channel is closed, release the websocket.
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the consensus parameters of the ledger.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Node.Genesis(), http.StatusOK)
}

// Balance returns the balance of the address derived from the chain.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := database.Address(strings.TrimPrefix(web.Param(r, "address"), "/"))
	if address == "" {
		return errs.BadRequest(errors.New("address is required"))
	}

	resp := balance{
		Address: address,
		Name:    h.NS.Lookup(address),
		Balance: h.Node.GetBalance(address),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitTransaction adds a new signed transaction to the mempool. The node
// shares an admitted transaction with its peers.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var signedTx database.SignedTx
	if err := web.Decode(r, &signedTx); err != nil {
		return errs.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
	}

	h.Log.Infow("submit tran", "traceid", web.GetTraceID(ctx), "tx", signedTx, "id", signedTx.ID())

	ok, message := h.Node.AddTransaction(signedTx)

	resp := submitResult{
		Result:  ok,
		Message: message,
	}

	status := http.StatusOK
	if !ok {
		status = http.StatusBadRequest
	}

	return web.Respond(ctx, w, resp, status)
}

// Mempool returns the set of admitted transactions not yet mined.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mempool := h.Node.Mempool()

	trans := make([]tx, len(mempool))
	for i, signedTx := range mempool {
		trans[i] = toTx(h.NS, signedTx.Tx)
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// MineBlock mines one block on request. The miner in the request is paid
// the reward, the node's miner address when left empty.
func (h Handlers) MineBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req mineRequest
	if r.ContentLength != 0 {
		if err := web.Decode(r, &req); err != nil {
			return errs.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
	}

	miner := req.Miner
	if miner == "" {
		miner = h.Node.MinerAddress()
	}

	block, err := h.Node.MineBlock(ctx, miner)
	if err != nil {
		if errors.Is(err, worker.ErrInterrupted) {
			resp := mineResult{
				Mined:             false,
				CurrentDifficulty: h.Node.Difficulty(),
				Message:           "a peer block arrived first, mining interrupted",
			}
			return web.Respond(ctx, w, resp, http.StatusConflict)
		}
		return fmt.Errorf("mining: %w", err)
	}

	resp := mineResult{
		Mined:             true,
		BlockHash:         block.Hash,
		CurrentDifficulty: h.Node.Difficulty(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Chain returns every block from genesis to the tip.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.Node.Chain()

	resp := chain{
		Length:     len(blocks),
		Difficulty: h.Node.Difficulty(),
		Chain:      make([]block, len(blocks)),
	}
	for i, b := range blocks {
		resp.Chain[i] = toBlock(h.NS, i, b)
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// VerifyChain checks the hash and link of every block.
func (h Handlers) VerifyChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := verifyResult{
		VerifyResult: true,
	}

	if err := h.Node.VerifyBlockchain(); err != nil {
		resp.VerifyResult = false
		resp.Error = err.Error()
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// NewAddress generates a key pair for a wallet.
func (h Handlers) NewAddress(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address, privateKey, err := h.Node.GenerateAddress()
	if err != nil {
		return err
	}

	resp := newAddress{
		Address:    address,
		PrivateKey: privateKey,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Peers returns the known peers.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Node.KnownPeers(), http.StatusOK)
}

// AddPeer adds a host to the known peers.
func (h Handlers) AddPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req peerRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	resp := peerResult{
		Host:  req.Host,
		Added: h.Node.AddPeer(req.Host),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// RemovePeer removes a host from the known peers.
func (h Handlers) RemovePeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req peerRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	h.Node.RemovePeer(req.Host)

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}
