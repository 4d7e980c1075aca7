// file: cmd/bsonrpcecho/main.go
package main

import (
	"github.com/spf13/cobra"
)

func main() {
	cobra.CheckErr(rootCmd.Execute())
}
