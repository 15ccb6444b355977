package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/ec-admin-console/internal/session"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var email, password string
	c := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			form := session.LoginForm{Email: email, Password: password}
			if err := form.Validate(); err != nil {
				return errors.New(session.LoginMessage(session.SignInResult{}, err))
			}

			return opts.run(cmd, func(ctx context.Context, a *app) error {
				res, err := a.session.SignIn(ctx, form.Email, form.Password)
				if msg := session.LoginMessage(res, err); msg != "" {
					return errors.New(msg)
				}
				name := form.Email
				if u := a.session.User(); u != nil && u.Name != "" {
					name = u.Name
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", name)
				return nil
			})
		},
	}
	c.Flags().StringVar(&email, "email", "", "account email")
	c.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	_ = c.MarkFlagRequired("email")
	return c
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.session.SignOut(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				out, err := json.MarshalIndent(a.session, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			})
		},
	}
}
