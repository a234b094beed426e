// Package network implements the peer to peer protocol between nodes. Each
// connection carries one tagged JSON message and, for the request kinds that
// have one, a single response before it is closed.
package network

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/google/uuid"
)

// Set of error variables for peer communication.
var (
	ErrConnectFailed = errors.New("connect failed")
	ErrSendFailed    = errors.New("send failed")
	ErrParseFailed   = errors.New("parse failed")
	ErrDisconnected  = errors.New("disconnected")
)

// Default settings used when the configuration leaves them empty.
const (
	defaultDialTimeout        = 5 * time.Second
	defaultIOTimeout          = 30 * time.Second
	defaultMaxMessageSize     = 32 << 20
	defaultMaxConns           = 64
	defaultMaxConcurrentSends = 8
)

// Handler represents the node behavior the network dispatches inbound
// requests to.
type Handler interface {
	Balance(address database.Address) int64
	SubmitTransaction(tx database.SignedTx) error
	Snapshot() (state.Snapshot, error)
	ProposeBlock(block database.Block) error
	RelayTransaction(tx database.SignedTx) error
	AddPeer(host string) bool
}

// Config represents the configuration of the peer network.
type Config struct {
	Host               string
	Handler            Handler
	DialTimeout        time.Duration
	IOTimeout          time.Duration
	MaxMessageSize     int64
	MaxConns           int
	MaxConcurrentSends int
	UPnP               bool
	EvHandler          state.EventHandler
}

// =============================================================================

// Network listens for peer connections and sends messages to peers.
type Network struct {
	Client

	cfg       Config
	evHandler state.EventHandler

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	sem      chan struct{}
	shut     chan struct{}
	wg       sync.WaitGroup
}

// New constructs a network value. Nothing is bound until Listen is called.
func New(cfg Config) *Network {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = defaultIOTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = defaultMaxConns
	}
	if cfg.MaxConcurrentSends <= 0 {
		cfg.MaxConcurrentSends = defaultMaxConcurrentSends
	}

	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	return &Network{
		Client: Client{
			DialTimeout:    cfg.DialTimeout,
			IOTimeout:      cfg.IOTimeout,
			MaxMessageSize: cfg.MaxMessageSize,
		},
		cfg:       cfg,
		evHandler: ev,
		conns:     make(map[net.Conn]struct{}),
		sem:       make(chan struct{}, cfg.MaxConns),
		shut:      make(chan struct{}),
	}
}

// Listen binds the configured host and starts accepting connections. This
// is the only network failure that is fatal to a node.
func (n *Network) Listen() error {
	listener, err := net.Listen("tcp", n.cfg.Host)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.listener = listener
	n.mu.Unlock()

	n.evHandler("network: Listen: host[%s]", listener.Addr())

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.acceptConnections(listener)
	}()

	if n.cfg.UPnP {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.mapPort(listener.Addr())
		}()
	}

	return nil
}

// Addr returns the address the listener is bound to.
func (n *Network) Addr() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.listener == nil {
		return n.cfg.Host
	}
	return n.listener.Addr().String()
}

// Shutdown closes the listener and every open connection and waits for the
// connection goroutines to finish.
func (n *Network) Shutdown() {
	n.evHandler("network: shutdown: started")
	defer n.evHandler("network: shutdown: completed")

	n.mu.Lock()
	select {
	case <-n.shut:
		n.mu.Unlock()
		return
	default:
		close(n.shut)
	}

	if n.listener != nil {
		n.listener.Close()
	}
	for conn := range n.conns {
		conn.Close()
	}
	n.mu.Unlock()

	n.wg.Wait()
}

// =============================================================================

// acceptConnections accepts peer connections until the listener is closed.
func (n *Network) acceptConnections(listener net.Listener) {
	n.evHandler("network: acceptConnections: G started")
	defer n.evHandler("network: acceptConnections: G completed")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-n.shut:
				return
			default:
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}

			n.evHandler("network: acceptConnections: ERROR: %s", err)
			return
		}

		// Bound the number of connections served at the same time.
		select {
		case n.sem <- struct{}{}:
		case <-n.shut:
			conn.Close()
			return
		}

		if !n.track(conn) {
			conn.Close()
			<-n.sem
			return
		}

		n.wg.Add(1)
		go func() {
			defer func() {
				n.untrack(conn)
				conn.Close()
				<-n.sem
				n.wg.Done()
			}()
			n.handleConnection(conn)
		}()
	}
}

// handleConnection reads one message, dispatches it and writes the response
// when the request kind has one. Failures only affect this connection.
func (n *Network) handleConnection(conn net.Conn) {
	traceID := uuid.NewString()
	remote := conn.RemoteAddr().String()

	conn.SetDeadline(time.Now().Add(n.cfg.IOTimeout))

	var msg Message
	if err := readMessage(conn, n.cfg.MaxMessageSize, &msg); err != nil {
		n.evHandler("network: handleConnection: traceid[%s]: remote[%s]: dropped: %s", traceID, remote, err)
		return
	}

	n.evHandler("network: handleConnection: traceid[%s]: remote[%s]: request[%s]", traceID, remote, msg.Request)

	resp, err := n.dispatch(msg)
	if err != nil {
		n.evHandler("network: handleConnection: traceid[%s]: request[%s]: ERROR: %s", traceID, msg.Request, err)
	}

	if resp == nil {
		return
	}

	if err := writeMessage(conn, resp); err != nil {
		n.evHandler("network: handleConnection: traceid[%s]: request[%s]: response: ERROR: %s", traceID, msg.Request, err)
	}
}

func (n *Network) track(conn net.Conn) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	select {
	case <-n.shut:
		return false
	default:
	}

	n.conns[conn] = struct{}{}
	return true
}

func (n *Network) untrack(conn net.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.conns, conn)
}
