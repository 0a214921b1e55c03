package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/school"
)

func (cli *commandLine) addSchool(name, code, email string) error {
	ctx := context.Background()
	ns := school.NewSchool{Name: name, Code: code, Email: email}
	if err := ns.Validate(ctx, cli.validate, cli.schoolSvc); err != nil {
		return err
	}
	s, err := cli.schoolSvc.Create(ctx, ns)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	cli.printf("school %q created with id %s\n", s.Code, s.ID)
	return nil
}
