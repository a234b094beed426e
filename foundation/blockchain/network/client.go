package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"golang.org/x/sync/errgroup"
)

// Client sends messages to peers. The zero value uses the default timeouts
// and message size.
type Client struct {
	DialTimeout    time.Duration
	IOTimeout      time.Duration
	MaxMessageSize int64
}

// Send delivers a message that has no response.
func (c Client) Send(ctx context.Context, host string, msg Message) error {
	conn, stop, err := c.dial(ctx, host)
	if err != nil {
		return err
	}
	defer stop()
	defer conn.Close()

	return writeMessage(conn, msg)
}

// Request delivers a message and decodes the single response into resp.
func (c Client) Request(ctx context.Context, host string, msg Message, resp any) error {
	conn, stop, err := c.dial(ctx, host)
	if err != nil {
		return err
	}
	defer stop()
	defer conn.Close()

	if err := writeMessage(conn, msg); err != nil {
		return err
	}

	if err := readMessage(conn, c.maxMessageSize(), resp); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrDisconnected, ctx.Err())
		}
		return err
	}

	return nil
}

// GetBalance asks the node at host for the balance of the address.
func (c Client) GetBalance(ctx context.Context, host string, address database.Address) (BalanceResponse, error) {
	msg, err := NewMessage(RequestGetBalance, BalanceRequest{Address: address})
	if err != nil {
		return BalanceResponse{}, err
	}

	var resp BalanceResponse
	if err := c.Request(ctx, host, msg, &resp); err != nil {
		return BalanceResponse{}, err
	}

	return resp, nil
}

// SubmitTransaction hands a signed transaction to the node at host for
// admission. A rejected transaction is reported in the response, not as an
// error.
func (c Client) SubmitTransaction(ctx context.Context, host string, tx database.SignedTx) (TransactionResponse, error) {
	msg, err := NewMessage(RequestTransaction, tx)
	if err != nil {
		return TransactionResponse{}, err
	}

	var resp TransactionResponse
	if err := c.Request(ctx, host, msg, &resp); err != nil {
		return TransactionResponse{}, err
	}

	return resp, nil
}

// CloneBlockchain requests the full state of the node at host.
func (c Client) CloneBlockchain(ctx context.Context, host string) (state.Snapshot, error) {
	msg, err := NewMessage(RequestCloneBlockchain, nil)
	if err != nil {
		return state.Snapshot{}, err
	}

	var resp Message
	if err := c.Request(ctx, host, msg, &resp); err != nil {
		return state.Snapshot{}, err
	}

	if resp.Request != requestUploadBlockchain {
		return state.Snapshot{}, fmt.Errorf("%w: unexpected response %q", ErrParseFailed, resp.Request)
	}

	var snap state.Snapshot
	if err := resp.Decode(&snap); err != nil {
		return state.Snapshot{}, err
	}

	return snap, nil
}

// =============================================================================

// dial connects to the host and sets the I/O deadline. The returned stop
// function releases the context watch that closes the connection when ctx
// is canceled.
func (c Client) dial(ctx context.Context, host string) (net.Conn, func() bool, error) {
	dialer := net.Dialer{
		Timeout: c.dialTimeout(),
	}

	conn, err := dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrConnectFailed, host, err)
	}

	deadline := time.Now().Add(c.ioTimeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})

	return conn, stop, nil
}

func (c Client) dialTimeout() time.Duration {
	if c.DialTimeout <= 0 {
		return defaultDialTimeout
	}
	return c.DialTimeout
}

func (c Client) ioTimeout() time.Duration {
	if c.IOTimeout <= 0 {
		return defaultIOTimeout
	}
	return c.IOTimeout
}

func (c Client) maxMessageSize() int64 {
	if c.MaxMessageSize <= 0 {
		return defaultMaxMessageSize
	}
	return c.MaxMessageSize
}

// =============================================================================

// Broadcast sends the message to every peer except this node. Peers are
// contacted concurrently and a failing peer never stops delivery to the
// others. The returned error joins every per peer failure.
func (n *Network) Broadcast(ctx context.Context, peers []peer.Peer, msg Message) error {
	self := n.Addr()

	var g errgroup.Group
	g.SetLimit(n.cfg.MaxConcurrentSends)

	var mu sync.Mutex
	var errs []error

	for _, p := range peers {
		if p.Match(self) || p.Match(n.cfg.Host) {
			continue
		}

		p := p
		g.Go(func() error {
			if err := n.Send(ctx, p.Host, msg); err != nil {
				n.evHandler("network: Broadcast: request[%s]: peer[%s]: ERROR: %s", msg.Request, p.Host, err)

				mu.Lock()
				errs = append(errs, fmt.Errorf("peer %s: %w", p.Host, err))
				mu.Unlock()
				return nil
			}

			n.evHandler("network: Broadcast: request[%s]: peer[%s]: sent", msg.Request, p.Host)
			return nil
		})
	}

	g.Wait()

	return errors.Join(errs...)
}

// BroadcastBlock sends a newly mined block to the peers.
func (n *Network) BroadcastBlock(ctx context.Context, peers []peer.Peer, block database.Block) error {
	msg, err := NewMessage(RequestBroadcastBlock, block)
	if err != nil {
		return err
	}
	return n.Broadcast(ctx, peers, msg)
}

// BroadcastTransaction relays an admitted transaction to the peers.
func (n *Network) BroadcastTransaction(ctx context.Context, peers []peer.Peer, tx database.SignedTx) error {
	msg, err := NewMessage(RequestBroadcastTransaction, tx)
	if err != nil {
		return err
	}
	return n.Broadcast(ctx, peers, msg)
}

// AnnounceNode tells the peers this node exists at host.
func (n *Network) AnnounceNode(ctx context.Context, peers []peer.Peer, host string) error {
	msg, err := NewMessage(RequestAddNode, host)
	if err != nil {
		return err
	}
	return n.Broadcast(ctx, peers, msg)
}
