package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fivetwenty-io/amocrm/internal/auth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// LoginOptions holds the options for the login command.
type LoginOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Code         string
}

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var opts LoginOptions

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to an amoCRM account",
		Long: `Log in to an amoCRM account.

With --token the long-lived token of a private integration is stored in the
config file. Otherwise the authorization code of an OAuth2 integration is
exchanged for a token pair, which is refreshed automatically afterwards.
Missing values are prompted for.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())

			return runLogin(cmd.Context(), cmd.OutOrStdout(), prompt, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ClientID, "client-id", "", "integration ID")
	cmd.Flags().StringVar(&opts.ClientSecret, "client-secret", "", "integration secret key")
	cmd.Flags().StringVar(&opts.RedirectURI, "redirect-uri", "", "integration redirect URI")
	cmd.Flags().StringVar(&opts.Code, "code", "", "authorization code")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out of the current account",
		Long:  "Remove the stored access token and OAuth2 token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			config.AccessToken = ""

			err := saveConfigStruct(config)
			if err != nil {
				return err
			}

			path, err := tokenFilePath()
			if err != nil {
				return err
			}

			err = os.Remove(path)
			if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove token file: %w", err)
			}

			printSuccess(cmd.OutOrStdout(), "Logged out")

			return nil
		},
	}
}

func runLogin(ctx context.Context, w io.Writer, prompt *prompter, opts LoginOptions) error {
	config := loadConfig()
	applyLoginOptions(config, opts)

	if config.Subdomain == "" && config.BaseURL == "" {
		config.Subdomain = prompt.line("Subdomain")
		if config.Subdomain == "" {
			return ErrSubdomainRequired
		}
	}

	if config.AccessToken != "" && config.ClientID == "" {
		err := saveConfigStruct(config)
		if err != nil {
			return err
		}

		printSuccess(w, "Stored long-lived token for %s", accountName(config))

		return nil
	}

	return loginOAuth(ctx, w, prompt, config, opts.Code)
}

func loginOAuth(ctx context.Context, w io.Writer, prompt *prompter, config *Config, code string) error {
	if config.ClientID == "" {
		config.ClientID = prompt.line("Integration ID")
	}

	if config.ClientSecret == "" {
		config.ClientSecret = prompt.secret("Secret key")
	}

	if config.RedirectURI == "" {
		config.RedirectURI = prompt.line("Redirect URI")
	}

	if code == "" {
		code = prompt.secret("Authorization code")
	}

	if code == "" {
		return ErrCodeRequired
	}

	session := &ClientSession{}
	defer session.Close()

	storage, err := session.tokenStorage(config)
	if err != nil {
		return err
	}

	manager := auth.NewPersistentTokenManager(&auth.OAuth2Config{
		TokenURL:     tokenURL(config),
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURI:  config.RedirectURI,
	}, storage, nil)

	token, err := manager.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	// The pair lives in token storage from now on.
	config.AccessToken = ""

	err = saveConfigStruct(config)
	if err != nil {
		return err
	}

	printSuccess(w, "Logged in to %s, access token expires %s", accountName(config), humanize.Time(token.ExpiresAt))

	return nil
}

func applyLoginOptions(config *Config, opts LoginOptions) {
	if opts.ClientID != "" {
		config.ClientID = opts.ClientID
	}

	if opts.ClientSecret != "" {
		config.ClientSecret = opts.ClientSecret
	}

	if opts.RedirectURI != "" {
		config.RedirectURI = opts.RedirectURI
	}
}

// prompter asks for missing login values.
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, reader: bufio.NewReader(in), out: out}
}

func (p *prompter) line(label string) string {
	_, _ = fmt.Fprintf(p.out, "%s: ", label)

	text, _ := p.reader.ReadString('\n')

	return strings.TrimSpace(text)
}

// secret reads without echo when the input is a terminal.
func (p *prompter) secret(label string) string {
	file, ok := p.in.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) { //nolint:gosec
		return p.line(label)
	}

	_, _ = fmt.Fprintf(p.out, "%s: ", label)

	data, err := term.ReadPassword(int(file.Fd())) //nolint:gosec
	_, _ = fmt.Fprintln(p.out)

	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}
