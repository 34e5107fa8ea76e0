package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"evolv/internal/evolve"
	"evolv/internal/session"
)

func newWhoamiCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			out := cmd.OutOrStdout()

			user, err := evolve.FetchCurrentUser(cmd.Context(), a.cache, a.client)
			if err != nil {
				return err
			}
			if user == nil {
				fmt.Fprintln(out, "Not signed in.")
				return nil
			}
			fmt.Fprintf(out, "%s <%s>\n", titleStyle.Render(user.Name), user.Email)
			fmt.Fprintf(out, "id: %s\n", user.ID)
			if user.Username != "" {
				fmt.Fprintf(out, "username: %s\n", user.Username)
			}
			return nil
		},
	}
}

func newLoginCmd(get func() *app) *cobra.Command {
	var (
		email      string
		password   string
		provider   string
		redirectTo string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password, or get an OAuth sign-in link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if provider != "" {
				link, err := a.session.SignInWithOAuth(ctx, session.OAuthProvider(provider), redirectTo)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "Open this link to continue signing in:")
				fmt.Fprintln(out, link)
				return nil
			}

			if email == "" {
				return errors.New("--email is required")
			}
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			s, err := a.session.SignIn(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, successStyle.Render("Signed in as "+s.User.Email))
			fmt.Fprintln(out, s.AccessToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when empty)")
	cmd.Flags().StringVar(&provider, "provider", "", "OAuth provider: google or github")
	cmd.Flags().StringVar(&redirectTo, "redirect-to", "", "where the provider sends the browser afterwards")
	return cmd
}

func newLogoutCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := get().session.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}
