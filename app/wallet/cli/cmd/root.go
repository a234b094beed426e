// Package cmd contains the wallet app commands.
package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/network"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"github.com/spf13/cobra"
)

var (
	accountName string
	accountPath string
	node        string
	timeout     time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private", "Name of the private key file.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&node, "node", "n", "127.0.0.1:9080", "Peer address of the node.")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Time allowed for a node request.")
}

var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Your simple wallet",
}

// Execute runs the wallet command selected on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	return nameservice.KeyPath(accountPath, strings.TrimSuffix(accountName, nameservice.KeyExt))
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func client() network.Client {
	return network.Client{
		IOTimeout: timeout,
	}
}
