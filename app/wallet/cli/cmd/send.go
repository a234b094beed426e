package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var (
	to      string
	amounts uint64
	fee     uint64
	message string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send transaction",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Address of the receiver.")
	sendCmd.Flags().Uint64VarP(&amounts, "amounts", "v", 0, "Amount to send.")
	sendCmd.Flags().Uint64VarP(&fee, "fee", "f", 0, "Fee to pay, it is burned.")
	sendCmd.Flags().StringVarP(&message, "message", "m", "", "Message for the receiver.")
	sendCmd.MarkFlagRequired("to")
}

func sendRun(cmd *cobra.Command, args []string) {
	privateKey, err := signature.LoadKey(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	sender := database.PublicKeyToAddress(&privateKey.PublicKey)
	tx := database.NewTx(sender, database.Address(to), amounts, fee, message)

	signedTx, err := tx.Sign(privateKey)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := requestContext()
	defer cancel()

	resp, err := client().SubmitTransaction(ctx, node, signedTx)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Result: ", resp.Result)
	fmt.Println("Message:", resp.Message)

	if !resp.Result {
		os.Exit(1)
	}
}
