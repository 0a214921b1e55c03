package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if err = user.ValidatePassword(pwd, usr.Name, usr.Username, usr.Email); err != nil {
		return err
	}
	uu := user.UpdateUser{
		Name:     usr.Name,
		Username: usr.Username,
		Email:    usr.Email,
		Password: pwd,
	}
	if _, err = cli.usrSvc.Update(ctx, usr, uu); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return nil
}
