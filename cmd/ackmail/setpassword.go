package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ackmail/ackmail/internal/credential"
)

// runSetPassword stores the SMTP password in the system keyring under the
// given username, so the config file can use password_source = "keyring".
func runSetPassword() {
	var username string
	flag.StringVar(&username, "username", "", "SMTP username the password belongs to")
	flag.Parse()

	if username == "" {
		fmt.Fprintln(os.Stderr, "usage: ackmail set-password -username <name>")
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading password: %v\n", err)
		os.Exit(1)
	}
	password = strings.TrimRight(password, "\r\n")
	if password == "" {
		fmt.Fprintln(os.Stderr, "password must not be empty")
		os.Exit(1)
	}

	store := credential.KeyringStore{}
	if err := store.Set(username, password); err != nil {
		fmt.Fprintf(os.Stderr, "error storing password: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "password stored")
}
