package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/dohr-michael/crew/internal/config"
	"github.com/dohr-michael/crew/internal/secrets"
)

// NewSecretCommand returns the secret subcommand.
func NewSecretCommand() *cli.Command {
	return &cli.Command{
		Name:  "secret",
		Usage: "Manage encrypted config secrets",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Generate the age key pair",
				Action: runSecretInit,
			},
			{
				Name:      "set",
				Usage:     "Encrypt a secret and store it in .env",
				ArgsUsage: "<name>",
				Action:    runSecretSet,
			},
			{
				Name:      "show",
				Usage:     "Decrypt and print a stored secret",
				ArgsUsage: "<name>",
				Action:    runSecretShow,
			},
		},
	}
}

func runSecretInit(_ context.Context, _ *cli.Command) error {
	path := secrets.KeyPath()
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Key already exists at %s.\n", path)
		return nil
	}
	if err := secrets.GenerateIdentity(path); err != nil {
		return err
	}
	fmt.Printf("Key created at %s.\nKeep it safe: secrets cannot be recovered without it.\n", path)
	return nil
}

func runSecretSet(_ context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: crew secret set <name>")
	}

	if err := secrets.GenerateIdentity(secrets.KeyPath()); err != nil {
		return err
	}
	identity, err := secrets.LoadIdentity(secrets.KeyPath())
	if err != nil {
		return err
	}

	value, err := readSecretValue()
	if err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("empty value")
	}

	blob, err := secrets.Encrypt(value, identity.Recipient())
	if err != nil {
		return err
	}

	if err := secrets.SetEntry(config.DotenvPath(), name, blob); err != nil {
		return fmt.Errorf("write .env: %w", err)
	}

	// The blob goes to stdout so it can be pasted into config.jsonc too.
	fmt.Fprintf(os.Stderr, "Stored %s in %s.\n", name, config.DotenvPath())
	fmt.Println(blob)
	return nil
}

// readSecretValue reads the secret without echo on a terminal and from
// stdin otherwise (pipes, heredocs).
func readSecretValue() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Value: ")
		data, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", nil
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func runSecretShow(_ context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: crew secret show <name>")
	}

	value, ok, err := secrets.GetEntry(config.DotenvPath(), name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no entry %q in %s", name, config.DotenvPath())
	}

	plain, err := secrets.Resolve(value)
	if err != nil {
		return err
	}
	fmt.Println(plain)
	return nil
}
