package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	"github.com/trezcool/shule/testutil"
)

const strongPwd = "xK9#mTq2!vLp"

var (
	usrRepo    user.Repository
	schoolRepo school.Repository
)

func setup(t *testing.T) *commandLine {
	conf := core.NewTestConfig()

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)

	db := inmemdb.NewDB()
	usrRepo = inmemdb.NewUserRepository(db)
	schoolRepo = inmemdb.NewSchoolRepository(db)

	return &commandLine{
		usrSvc:    user.NewService(usrRepo, nil, conf),
		schoolSvc: school.NewService(schoolRepo),
		validate:  validate,
		out:       io.Discard,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	t.Run("memory engine", func(t *testing.T) {
		err := cli.run([]string{"admin", "migrate", "up"})
		assert.Equal(t, errNoSQLEngine, err)
	})

	cli.db = new(sql.DB)
	runMigrationsFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "fee_payments", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: strongPwd}, wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}, wantErrStr: "validation error"},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: strongPwd}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "Lm@o-2024!zz"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.False(t, bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash), "failed to update password")
				assert.NoError(t, refreshedUsr.CheckPassword(tt.extra.(extra).pwd))
				usr = refreshedUsr
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)

	existing := testutil.CreateUser(t, usrRepo, "Inactive", "inactive", "inactive@test.cd", "mdr", nil, false)

	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(strongPwd), nil
	}

	tests := []struct {
		cliTest
		wantUname string
		wantAdmin bool
	}{
		{cliTest: cliTest{name: "no args", args: []string{"adduser"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "missing email", args: []string{"adduser", "-username", "joe"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "unknown flag", args: []string{"adduser", "-lol"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "invalid email", args: []string{"adduser", "-username", "joe", "-email", "joe"}, wantErrStr: "validation"}},
		{
			cliTest:   cliTest{name: "create admin", args: []string{"adduser", "-username", "Joe", "-email", "joe@test.cd", "-admin"}},
			wantUname: "joe",
			wantAdmin: true,
		},
		{
			cliTest:   cliTest{name: "create plain user", args: []string{"adduser", "-username", "jane", "-email", "jane@test.cd", "-name", "Jane Doe"}},
			wantUname: "jane",
		},
		{
			cliTest:   cliTest{name: "update existing by email", args: []string{"adduser", "-username", "active", "-email", existing.Email, "-admin"}},
			wantUname: "active",
			wantAdmin: true,
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{Username: tt.wantUname})
				require.NoError(t, err)
				assert.True(t, usr.IsActive)
				assert.Equal(t, tt.wantAdmin, usr.IsAdmin())
				assert.NoError(t, usr.CheckPassword(strongPwd))
			}
		})
	}

	usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.Equal(t, "active", usr.Username)
}

func Test_commandLine_addSchool(t *testing.T) {
	cli := setup(t)

	testutil.CreateSchool(t, schoolRepo, "Lycée Wima", "WIMA")

	tests := []cliTest{
		{name: "no args", args: []string{"addschool"}, wantErr: errHelp},
		{name: "missing code", args: []string{"addschool", "-name", "Institut Kitoko"}, wantErr: errHelp},
		{name: "invalid code", args: []string{"addschool", "-name", "Institut Kitoko", "-code", "k"}, wantErrStr: "validation"},
		{name: "duplicate code", args: []string{"addschool", "-name", "Institut Kitoko", "-code", "wima"}, wantErrStr: "validation"},
		{name: "create", args: []string{"addschool", "-name", "Institut Kitoko", "-code", "kit01", "-email", "info@kitoko.cd"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				assert.Error(t, err)
			default:
				require.NoError(t, err)
			}
		})
	}

	schools, total, err := schoolRepo.QuerySchools(context.Background(), &school.QueryFilter{Search: "kitoko"}, nil, nil)
	require.NoError(t, err)
	if assert.Equal(t, 1, total) {
		assert.Equal(t, "KIT01", schools[0].Code)
		assert.Equal(t, "info@kitoko.cd", schools[0].Email)
	}
}
