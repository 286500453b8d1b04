package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sigilo/go-sigilo-server/util"
	"github.com/spf13/cobra"
)

var outputFile string
var keySize int

func init() {
	keysCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file for the private key (default is stdout)")
	keysCmd.Flags().IntVarP(&keySize, "size", "s", 2048, "RSA modulus size in bits")
	rootCmd.AddCommand(keysCmd)
}

// keysCmd generates an RSA key pair for operator use, for example a service
// account that signs templates
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate an RSA key pair",
	Long:  "Generate an RSA key pair in PEM encoding for use with Sigilo Server",
	Run: func(cmd *cobra.Command, args []string) {
		privPem, pubPem, err := util.GenerateRSAKeyPair(keySize)
		check(err)
		fingerprint, fErr := util.Fingerprint(pubPem)
		check(fErr)

		if outputFile != "" {
			// save keys to disk, fail if the file already exists
			if _, sErr := os.Stat(outputFile); !errors.Is(sErr, os.ErrNotExist) {
				fmt.Printf("File already exists: %s\n", outputFile)
				os.Exit(1)
			}
			check(os.WriteFile(outputFile, privPem, 0600))
			check(os.WriteFile(outputFile+".pub", pubPem, 0644))
			fmt.Printf("Private key: %s\nPublic key: %s.pub\nFingerprint: %s\n", outputFile, outputFile, fingerprint)
		} else {
			fmt.Printf("%s\n%s\nFingerprint: %s\n", privPem, pubPem, fingerprint)
		}
	},
}
