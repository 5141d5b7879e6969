package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/user"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, uname, email, role, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if !core.ContainsString(user.AllRoles, role) {
		return fmt.Errorf("invalid role %q", role)
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	exists := err == nil
	if err != nil && !core.IsNotFound(err) {
		return err
	}
	if !exists {
		if err = cli.usrRepo.CheckUniqueness(ctx, uname, email); err != nil {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{Username: uname, Email: email, CreatedAt: now}
	}

	usr.Name = core.FirstNonEmpty(core.CleanString(name), usr.Name, uname)
	usr.Email = email
	usr.Role = role
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %q saved as %s\n", uname, role)
	return nil
}
