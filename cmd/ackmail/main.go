package main

import (
	"fmt"
	"os"
	"strings"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	// Dispatch to a subcommand before flag.Parse() so the chosen function
	// owns flag parsing. Strip the subcommand from os.Args so flag.Parse
	// sees only flags.
	var subcommand string
	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[1], "-") {
		subcommand = os.Args[1]
		os.Args = append(os.Args[:1], os.Args[2:]...)
	}

	switch subcommand {
	case "", "send":
		runSend()
	case "set-password":
		runSetPassword()
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\nusage: ackmail [send|set-password|version] [flags]\n", subcommand)
		os.Exit(1)
	}
}
