package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	auth "github.com/flexmon/console-auth"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	verbose bool
	tenant  string
}

// NewRootCommand builds the flexmon-console command tree
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "flexmon-console",
		Short: "FlexMON operator console",
		Long: `flexmon-console signs operators into the FlexMON platform API and serves
the web console.

Configuration is read from the environment:
  FLEXMON_API_BASE_URL     platform API root (default http://localhost:8080/api)
  FLEXMON_TENANT_ID        tenant scope sent with every request
  FLEXMON_CREDENTIALS_DSN  SQLite file holding the bearer token
  FLEXMON_REQUEST_TIMEOUT  per request timeout (default 30s)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "print debug output")
	root.PersistentFlags().StringVar(&flags.tenant, "tenant", "", "tenant scope, overrides FLEXMON_TENANT_ID")

	root.AddCommand(
		newLoginCommand(flags),
		newLogoutCommand(flags),
		newWhoamiCommand(flags),
		newServeCommand(flags),
	)

	return root
}

// ExecuteContext runs the command tree
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (f *globalFlags) options() (*auth.Options, error) {
	opts, err := auth.LoadOptions()
	if err != nil {
		return nil, err
	}
	if f.tenant != "" {
		opts.TenantID = f.tenant
	}
	return opts, nil
}

func (f *globalFlags) logger() auth.Logger {
	return leveledLogger{Logger: auth.DefaultLogger(), verbose: f.verbose}
}

// open builds the app for a one shot command and restores the session.
// Commands that sit on the login surface do not print the sign in hint.
func (f *globalFlags) open(cmd *cobra.Command, onLoginSurface bool) (*App, error) {
	opts, err := f.options()
	if err != nil {
		return nil, err
	}

	nav := &terminalNavigator{out: cmd.ErrOrStderr(), path: "/"}
	if onLoginSurface {
		nav.path = opts.GetLoginPath()
	}
	app, err := NewApp(cmd.Context(), opts, nav, f.logger())
	if err != nil {
		return nil, err
	}

	app.Store().Bootstrap(cmd.Context())
	return app, nil
}

func newLoginCommand(flags *globalFlags) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the platform",
		Long: `Sign in with a platform username and password. The bearer token is
stored in the credential database and reused by later commands.

Examples:
  flexmon-console login --username admin
  echo "$PASSWORD" | flexmon-console login --username admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := flags.open(cmd, true)
			if err != nil {
				return err
			}
			defer app.Close()

			if password == "" {
				password, err = readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}

			if err := app.Store().Login(cmd.Context(), username, password); err != nil {
				return errors.New(auth.ErrorMessage(err))
			}

			user := app.Store().User()
			if user == nil {
				return auth.ErrLoginFailed
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", user.Username, user.DisplayRole())
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "platform username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password, read from stdin when omitted")

	return cmd
}

func newLogoutCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := flags.open(cmd, true)
			if err != nil {
				return err
			}
			defer app.Close()

			user := app.Store().User()
			app.Store().Logout(cmd.Context())

			if user != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Logged out %s\n", user.Username)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCommand(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := flags.open(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			state := app.Store().State()
			out := cmd.OutOrStdout()

			if !state.IsAuthenticated || state.User == nil {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}

			if asJSON {
				fmt.Fprintln(out, print.MaybePrettyJSON(state.User))
				return nil
			}

			user := state.User
			fmt.Fprintf(out, "[%s] %s\n", user.Initials(), user.Username)
			fmt.Fprintf(out, "Role:   %s\n", user.DisplayRole())
			if user.Email != "" {
				fmt.Fprintf(out, "Email:  %s\n", user.Email)
			}
			if tenant := state.TenantID(); tenant != "" {
				fmt.Fprintf(out, "Tenant: %s\n", tenant)
			}
			if claims, err := app.Store().TokenInfo(); err == nil && !claims.Expires().IsZero() {
				fmt.Fprintf(out, "Token expires: %s\n", claims.Expires().Local().Format(time.RFC1123))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the profile as JSON")
	return cmd
}

func newServeCommand(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}

			logger := flags.logger()
			app, err := NewApp(cmd.Context(), opts, logNavigator{logger: logger}, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Serving console on %s\n", addr)
			return Serve(cmd.Context(), app, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":3000", "listen address")
	return cmd
}

func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
