package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var keyBits int

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new key pair",
	Run:   generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().IntVarP(&keyBits, "bits", "b", signature.DefaultKeyBits, "Size of the RSA key.")
}

func generateRun(cmd *cobra.Command, args []string) {
	path := getPrivateKeyPath()
	if _, err := os.Stat(path); err == nil {
		log.Fatalf("key file %s already exists", path)
	}

	privateKey, err := signature.GenerateKey(keyBits)
	if err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(accountPath, 0700); err != nil {
		log.Fatal(err)
	}

	if err := signature.SaveKey(path, privateKey); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Key:    ", path)
	fmt.Println("Address:", database.PublicKeyToAddress(&privateKey.PublicKey))
}
