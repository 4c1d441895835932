package main

import (
	"fmt"
	"os"

	"csvpulse/internal/cli"
	"csvpulse/pkg/contracts"
)

func main() {
	if err := cli.Run(contracts.Version); err != nil {
		fmt.Fprintf(os.Stderr, "dashcli: %v\n", err)
		os.Exit(1)
	}
}
