package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/powchain/app/services/node/handlers"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/logger"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"github.com/ardanlabs/powchain/foundation/node"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:120s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			CORSOrigin      string        `conf:"default:*"`
		}
		P2P struct {
			Host               string        `conf:"default:127.0.0.1:9080"`
			DialTimeout        time.Duration `conf:"default:5s"`
			IOTimeout          time.Duration `conf:"default:30s"`
			MaxMessageSize     int64         `conf:"default:33554432"`
			MaxConns           int           `conf:"default:64"`
			MaxConcurrentSends int           `conf:"default:8"`
			UPnP               bool          `conf:"default:false"`
			KnownPeers         []string      `conf:"default:127.0.0.1:9180"`
			Seed               string
		}
		State struct {
			GenesisPath    string `conf:"default:zblock/genesis.json"`
			MinerName      string `conf:"default:miner1"`
			SelectStrategy string `conf:"default:fee"`
		}
		Mining struct {
			Enabled      bool          `conf:"default:true"`
			AllowEmpty   bool          `conf:"default:true"`
			IdleInterval time.Duration `conf:"default:5s"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "proof of work ledger node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Miner Key Support

	// The miner key file is created on first start so a fresh node can mine
	// right away. The address is credited with the reward of mined blocks.
	path := nameservice.KeyPath(cfg.NameService.Folder, cfg.State.MinerName)
	privateKey, err := signature.LoadKey(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if privateKey, err = signature.GenerateKey(signature.DefaultKeyBits); err != nil {
			return fmt.Errorf("generating miner key: %w", err)
		}
		if err := os.MkdirAll(cfg.NameService.Folder, 0700); err != nil {
			return fmt.Errorf("creating accounts folder: %w", err)
		}
		if err := signature.SaveKey(path, privateKey); err != nil {
			return fmt.Errorf("saving miner key: %w", err)
		}
		log.Infow("startup", "status", "miner key generated", "path", path)

	case err != nil:
		return fmt.Errorf("unable to load private key for node: %w", err)
	}
	minerAddress := database.PublicKeyToAddress(&privateKey.PublicKey)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides name resolution for addresses.
	// The names come from the file names in the zblock/accounts folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	// Logging the accounts for documentation in the logs.
	for address, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "address", address)
	}

	// =========================================================================
	// Blockchain Support

	gen, err := genesis.Load(cfg.State.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis: %w", err)
	}

	// A genesis file without an address pays the genesis reward to this
	// node's miner. Nodes joining an existing chain take the seed's genesis
	// when they clone.
	if gen.GenesisAddress == "" {
		gen = gen.WithFallbackAddress(string(minerAddress))
		log.Infow("startup", "status", "genesis address defaulted to miner", "miner", cfg.State.MinerName)
	}

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The node owns the ledger, the miner and the peer network.
	nd, err := node.New(node.Config{
		Genesis:            gen,
		Host:               cfg.P2P.Host,
		KnownPeers:         cfg.P2P.KnownPeers,
		Seed:               cfg.P2P.Seed,
		SelectStrategy:     cfg.State.SelectStrategy,
		MinerAddress:       minerAddress,
		Mining:             cfg.Mining.Enabled,
		AllowEmpty:         cfg.Mining.AllowEmpty,
		IdleInterval:       cfg.Mining.IdleInterval,
		DialTimeout:        cfg.P2P.DialTimeout,
		IOTimeout:          cfg.P2P.IOTimeout,
		MaxMessageSize:     cfg.P2P.MaxMessageSize,
		MaxConns:           cfg.P2P.MaxConns,
		MaxConcurrentSends: cfg.P2P.MaxConcurrentSends,
		UPnP:               cfg.P2P.UPnP,
		EvHandler:          ev,
	})
	if err != nil {
		return err
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.P2P.IOTimeout)
	defer cancelStart()

	if err := nd.Start(startCtx); err != nil {
		return err
	}
	defer nd.Shutdown()

	log.Infow("startup", "status", "node started", "peerhost", nd.Addr(), "miner", cfg.State.MinerName)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.
	debugMux := handlers.DebugMux(build, log, nd)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Node:     nd,
		NS:       ns,
		Evts:     evts,
		Origin:   cfg.Web.CORSOrigin,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
