package main

import (
	"context"

	"github.com/trezcool/mazoezi/core"
	"github.com/trezcool/mazoezi/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(email, name, pwd string, isAdmin bool) error {
	var usr user.User
	var err error
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)

	if usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email}); err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Email: email,
			Role:  user.RoleStudent,
		}
	}
	if name != "" {
		usr.Name = name
	}
	if isAdmin {
		usr.Role = user.RoleAdmin
	}
	usr.SetActive(true)
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
