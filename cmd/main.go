package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func check(e error) {
	if e != nil {
		fmt.Printf("%v\n", e.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "sigilo",
	Short:   "Sigilo is a signed document and certificate issuance server",
	Long:    `Sigilo is a signed document and certificate issuance server. It keeps per-user signing keys in custody, runs multi signer workflows and issues certificates in bulk.`,
	Version: "0.1.0",
	Run: func(cmd *cobra.Command, args []string) {
		// empty
	},
}

func main() {
	Execute()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
