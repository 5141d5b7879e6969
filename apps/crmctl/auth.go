package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/admitflow/client"
)

func newLoginCmd(a *app) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:     "login",
		Short:   "Log in and remember the session",
		Args:    cobra.NoArgs,
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if username == "" {
				if username, err = a.readLine("Username or email: "); err != nil {
					return err
				}
			}
			pwd, err := a.promptPassword()
			if err != nil {
				return err
			}
			if username == "" || pwd == "" {
				return errors.New("username and password are required")
			}

			sess, err := a.api.Login(cmd.Context(), username, pwd)
			if err != nil {
				return err
			}
			if err = a.prefs.SetSession(sess); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s (%s)\n", sess.User.DisplayName(), sess.User.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username or email")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "logout",
		Short:   "Forget the session",
		Args:    cobra.NoArgs,
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = a.api.Logout(cmd.Context()) // the local session goes regardless
			if err := a.prefs.SetSession(client.Session{}); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}
