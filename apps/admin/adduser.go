package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if name = core.CleanString(name); name == "" {
		name = uname
	}

	var roles []string
	if isAdmin {
		roles = []string{user.RoleAdminOwner}
	}

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if errors.Cause(err) == user.ErrNotFound {
		usr, err = cli.usrSvc.GetByEmail(ctx, email)
	}

	switch {
	case err == nil:
		active := true
		uu := user.UpdateUser{
			Name:            name,
			Username:        uname,
			Email:           email,
			IsActive:        &active,
			Roles:           roles,
			Password:        pwd,
			PasswordConfirm: pwd,
		}
		if err = uu.Validate(ctx, usr, cli.validate, cli.usrSvc); err != nil {
			return err
		}
		if _, err = cli.usrSvc.Update(ctx, usr, uu); err != nil {
			return errors.Wrap(err, "updating user")
		}
		cli.printf("user %q updated\n", uname)
		return nil

	case errors.Cause(err) == user.ErrNotFound:
		nu := user.NewUser{
			Name:            name,
			Username:        uname,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           roles,
		}
		if err = nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
			return err
		}
		if _, err = cli.usrSvc.Create(ctx, nu); err != nil {
			return errors.Wrap(err, "creating user")
		}
		cli.printf("user %q created\n", uname)
		return nil

	default:
		return err
	}
}
