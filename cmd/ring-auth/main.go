// Command ring-auth acquires a Ring refresh token with email/password
// and interactive two-factor login, and prints it in the wrapped form
// the client consumes. The token can optionally be written to the
// config file, persisted in the local credential store, or displayed
// as a QR code for transfer to another device.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/ringclient/ring-client-go/internal/api"
	"github.com/ringclient/ring-client-go/internal/config"
	ringerrors "github.com/ringclient/ring-client-go/internal/errors"
	"github.com/ringclient/ring-client-go/internal/rest"
	"github.com/ringclient/ring-client-go/internal/storage"
)

const usage = `ring-auth - acquire a Ring refresh token

Usage:
  ring-auth [options]

Options are listed below. With no -email/-password flags the command
prompts interactively. Accounts with two-factor enabled are prompted
for the verification code.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// authClient is the slice of the rest client the login flow drives.
type authClient interface {
	GetToken(ctx context.Context) (*api.AuthTokenResponse, error)
	GetAuth(ctx context.Context, twoFactorCode string) (*api.AuthTokenResponse, error)
	PromptFor2FA() string
	Credential() string
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ring-auth", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		email      = fs.String("email", "", "Ring account email (prompted if empty)")
		password   = fs.String("password", "", "Ring account password (prompted if empty)")
		configPath = fs.String("config", "", "Write the token to this config file (default: none)")
		store      = fs.Bool("store", false, "Persist the token in the local credential store")
		storePath  = fs.String("store-path", "", "Credential store path (default: ~/.ringclient/ringclient.db)")
		qr         = fs.Bool("qr", false, "Display the token as a terminal QR code")
		systemID   = fs.String("system-id", "", "Stable system id for the hardware identity (default: machine id)")
	)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage+"\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	in := bufio.NewReader(stdin)
	if *email == "" {
		*email = promptLine(in, stdout, "Email: ")
	}
	if *password == "" {
		*password = promptLine(in, stdout, "Password: ")
	}
	if *email == "" || *password == "" {
		fmt.Fprintln(stderr, "Error: email and password are required")
		return 1
	}

	client := rest.NewClient(rest.ClientConfig{
		Email:    *email,
		Password: *password,
		SystemID: *systemID,
	})
	defer client.ClearTimers()

	token, err := authenticate(context.Background(), client, in, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", ringerrors.GetMessage(err))
		return 1
	}

	fmt.Fprintln(stdout, "")
	fmt.Fprintln(stdout, "Successfully logged in. Your refresh token:")
	fmt.Fprintln(stdout, "")
	fmt.Fprintln(stdout, token)

	if *qr {
		displayTokenQR(stdout, token)
	}

	if *configPath != "" {
		if err := config.SaveRefreshToken(*configPath, token); err != nil {
			fmt.Fprintf(stderr, "Error: failed to write config: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "\nToken written to %s\n", *configPath)
	}

	if *store {
		path := *storePath
		if path == "" {
			defaultPath, err := config.DefaultStorePath()
			if err != nil {
				fmt.Fprintf(stderr, "Error: cannot resolve store path: %v\n", err)
				return 1
			}
			path = defaultPath
		}
		if err := persistToken(path, token); err != nil {
			fmt.Fprintf(stderr, "Error: failed to persist token: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "\nToken stored in %s\n", path)
	}
	return 0
}

// authenticate runs the login flow, re-prompting for two-factor codes
// until one is accepted. Only the CLI loops on a wrong code; the
// client itself fails fast.
func authenticate(ctx context.Context, client authClient, in *bufio.Reader, stdout io.Writer) (string, error) {
	_, err := client.GetToken(ctx)
	for err != nil {
		code := ringerrors.GetCode(err)
		if code != ringerrors.CodeAuth2FARequired && code != ringerrors.CodeAuth2FAInvalidCode {
			return "", err
		}
		if code == ringerrors.CodeAuth2FAInvalidCode {
			fmt.Fprintln(stdout, "Incorrect code, try again.")
		} else if prompt := client.PromptFor2FA(); prompt != "" {
			fmt.Fprintln(stdout, prompt)
		}
		twoFactorCode := promptLine(in, stdout, "Code: ")
		if twoFactorCode == "" {
			return "", err
		}
		_, err = client.GetAuth(ctx, twoFactorCode)
	}
	return client.Credential(), nil
}

func promptLine(in *bufio.Reader, out io.Writer, prompt string) string {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}

// displayTokenQR renders the token as a terminal QR code so it can be
// scanned into another device instead of copied.
func displayTokenQR(w io.Writer, token string) {
	code, err := qrcode.New(token, qrcode.Medium)
	if err != nil {
		fmt.Fprintf(w, "Error generating QR code: %v\n", err)
		return
	}
	fmt.Fprintln(w, "")
	fmt.Fprint(w, code.ToSmallString(false))
}

func persistToken(path string, token string) error {
	db, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.SaveCredential(token)
}
