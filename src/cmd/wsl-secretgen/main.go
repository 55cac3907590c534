// FILE: src/cmd/wsl-secretgen/main.go
// wsl-secretgen provisions the pre-shared secret the bridge's
// handshake authenticates against. Grounded on cmd/auth-gen's flag
// parsing and hidden-password-prompt style, adapted from "hash a
// password for HTTP auth" to "derive or generate raw bridge key
// material and write it to the installation's secret file".
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/crypto/argon2"
	"golang.org/x/term"
)

const (
	secretLength = 32
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
)

func main() {
	var (
		output        = flag.String("o", "", "Path to write the secret (required)")
		fromPassphrase = flag.Bool("passphrase", false, "Derive the secret from a prompted passphrase instead of random bytes")
		force         = flag.Bool("f", false, "Overwrite an existing secret file")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Bridge secret provisioning utility\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  Generate a random secret:      %s -o <path>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  Derive from a passphrase:      %s -o <path> -passphrase\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *output == "" {
		fmt.Fprintf(os.Stderr, "Error: -o <path> is required\n")
		flag.Usage()
		os.Exit(1)
	}

	if !*force {
		if _, err := os.Stat(*output); err == nil {
			fmt.Fprintf(os.Stderr, "Error: %s already exists, pass -f to overwrite\n", *output)
			os.Exit(1)
		}
	}

	var secret []byte
	if *fromPassphrase {
		pass := promptPassphrase("Enter passphrase: ")
		confirm := promptPassphrase("Confirm passphrase: ")
		if pass != confirm {
			fmt.Fprintf(os.Stderr, "Error: passphrases don't match\n")
			os.Exit(1)
		}
		salt := make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating salt: %v\n", err)
			os.Exit(1)
		}
		secret = argon2.IDKey([]byte(pass), salt, argonTime, argonMemory, argonThreads, secretLength)
	} else {
		secret = make([]byte, secretLength)
		if _, err := rand.Read(secret); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating secret: %v\n", err)
			os.Exit(1)
		}
	}

	if err := os.MkdirAll(filepath.Dir(*output), 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory for %s: %v\n", *output, err)
		os.Exit(1)
	}
	if err := os.WriteFile(*output, secret, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing secret to %s: %v\n", *output, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d-byte secret to %s\n", len(secret), *output)
	fmt.Println("Copy this file to both the host and guest sides' configured bridge.secret_path.")
}

func promptPassphrase(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading passphrase: %v\n", err)
		os.Exit(1)
	}
	return string(pass)
}
