package cmd

import (
	"fmt"
	"log"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var address string

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringVar(&address, "address", "", "Address to query instead of the wallet's own.")
}

func balanceRun(cmd *cobra.Command, args []string) {
	addr := database.Address(address)
	if addr == "" {
		privateKey, err := signature.LoadKey(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}
		addr = database.PublicKeyToAddress(&privateKey.PublicKey)
	}

	ctx, cancel := requestContext()
	defer cancel()

	resp, err := client().GetBalance(ctx, node, addr)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("For Address:", resp.Address)
	fmt.Println("Balance:    ", resp.Balance)
}
