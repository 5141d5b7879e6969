package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admitflow/core/user"
	testutil "github.com/trezcool/admitflow/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv(t)
	return &commandLine{
		usrRepo:  env.UserRepo,
		commsSvc: env.CommsSvc,
		validate: env.Validate,
		out:      &bytes.Buffer{},
	}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
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
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_adduser(t *testing.T) {
	cli, env := setup(t)
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("Adm1ss!ons2026"), nil }

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "missing email", args: []string{"adduser", "-username", "root"}, wantErr: errHelp},
		{name: "bad role", args: []string{"adduser", "-username", "root", "-email", "root@example.com", "-role", "dean"}, wantErrStr: `invalid role "dean"`},
		{name: "create", args: []string{"adduser", "-name", "Root", "-username", "Root", "-email", "ROOT@example.com"}},
		{name: "update", args: []string{"adduser", "-username", "root", "-email", "root@example.com", "-role", "manager"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}

	usr, err := env.UserRepo.GetUser(context.Background(), user.GetFilter{Username: "root"})
	require.NoError(t, err)
	assert.Equal(t, "Root", usr.Name)
	assert.Equal(t, "root@example.com", usr.Email)
	assert.Equal(t, user.RoleManager, usr.Role)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("Adm1ss!ons2026"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)

	usr := testutil.CreateUser(t, env.UserRepo, "User", "awe", "awe@test.cd", "mdr", user.RoleUser, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
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
			if err != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			refreshedUsr, err := env.UserRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.NoError(t, refreshedUsr.CheckPassword(tt.extra.(extra).pwd))
		})
	}
}

func Test_commandLine_loadtemplates(t *testing.T) {
	cli, env := setup(t)
	dir := t.TempDir()

	valid := filepath.Join(dir, "templates.yaml")
	require.NoError(t, os.WriteFile(valid, []byte(`
- name: welcome
  dltTemplateId: "1107160000000000001"
  content: "Dear {#var#}, thank you for your enquiry."
- name: reminder
  dltTemplateId: "1107160000000000002"
  content: "Reminder: counselling on {#var#} at {#var#}."
  isActive: false
`), 0o600))

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte(`
- name: broken
  dltTemplateId: "not-numeric"
  content: "x"
`), 0o600))

	tests := []cliTest{
		{name: "no file", args: []string{"loadtemplates"}, wantErr: errHelp},
		{name: "missing file", args: []string{"loadtemplates", "-file", filepath.Join(dir, "nope.yaml")}, wantErrStr: "x"},
		{name: "invalid template", args: []string{"loadtemplates", "-file", invalid}, wantErrStr: "x"},
		{name: "load", args: []string{"loadtemplates", "-file", valid}},
		{name: "reload", args: []string{"loadtemplates", "-file", valid}},
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
				assert.NoError(t, err)
			}
		})
	}

	tmpls, err := env.CommsSvc.ListTemplates(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, tmpls, 2, "reload updates instead of duplicating")

	active, err := env.CommsSvc.ListTemplates(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	assert.Contains(t, cli.out.(*bytes.Buffer).String(), "0 template(s) created, 2 updated")
}
