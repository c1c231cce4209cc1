package main

import (
	"os"

	"github.com/vbp1/pgdbcopy/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}
