package cli

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"rdcp/internal/config"
	"rdcp/internal/crypto/random"
)

// Reads a secret from the terminal without echo. Falls back to an error
// when stdin is not a terminal rather than echoing the secret.
func PromptPassword(prompt string) (password string, err error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		err = fmt.Errorf("no password given and stdin is not a terminal")
		return
	}

	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		err = fmt.Errorf("failed to read password: %w", err)
		return
	}

	password = string(raw)
	return
}

// Stores a new server password with a fresh salt so connecting peers
// derive keys against a stable value across restarts
func SetupMode(cfg *config.Config, opts Options) (err error) {
	password := opts.Password
	if password == "" {
		password, err = PromptPassword("New server password (empty for open server): ")
		if err != nil {
			return
		}
	}

	salt, err := random.Salt(16)
	if err != nil {
		return
	}

	cfg.SetServerPassword(password, salt)
	err = cfg.Save()
	if err != nil {
		return
	}

	fmt.Fprintf(os.Stdout, "Server password updated in %s\n", cfg.Path())
	return
}
