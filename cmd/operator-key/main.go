package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/vaultkeep/vaultkeep/internal/auth"
)

// Reads an operator key from stdin and prints the bcrypt hash to set as
// OPERATOR_KEY_HASH.
func main() {
	key, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && key == "" {
		fmt.Fprintln(os.Stderr, "Usage: echo <operator key> | operator-key")
		os.Exit(1)
	}
	key = strings.TrimRight(key, "\r\n")
	if key == "" {
		fmt.Fprintln(os.Stderr, "operator key must not be empty")
		os.Exit(1)
	}

	hash, err := auth.HashOperatorKey(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash operator key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
