// This program performs administrative tasks against a running node. It
// clones the node's chain over the peer protocol and audits it locally.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/powchain/app/tooling/admin/commands"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/network"
	"github.com/ardanlabs/powchain/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
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
	if len(os.Args) < 3 {
		return errors.New("usage: admin <peer host> <bals|trans|verify> [address]")
	}
	host := os.Args[1]

	log.Infow("startup", "version", build, "status", "cloning chain", "host", host)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var client network.Client
	snap, err := client.CloneBlockchain(ctx, host)
	if err != nil {
		return fmt.Errorf("cloning chain: %w", err)
	}

	if len(snap.Chain) == 0 {
		return errors.New("node returned an empty chain")
	}

	db := database.New(snap.Chain[0])
	if err := db.Reset(snap.Chain); err != nil {
		log.Infow("audit", "status", "chain failed verification", "ERROR", err)
	}

	return processCommands(os.Args[2:], db, snap.Chain)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args []string, db *database.Database, chain []database.Block) error {
	switch args[0] {
	case "bals":
		if err := commands.Balances(args, db, chain); err != nil {
			return fmt.Errorf("getting balances: %w", err)
		}
	case "trans":
		if err := commands.Transactions(args, chain); err != nil {
			return fmt.Errorf("getting transactions: %w", err)
		}
	case "verify":
		if err := commands.Verify(chain); err != nil {
			return fmt.Errorf("verifying chain: %w", err)
		}
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	return nil
}
