package main

import (
	"fmt"
	"os"

	"github.com/rclabs/etlmonitor/cmd/etlmonitor/commands"
)

func main() {
	if err := commands.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
