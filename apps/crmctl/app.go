package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/admitflow/client"
	"github.com/trezcool/admitflow/core"
)

var readPasswordFunc = term.ReadPassword // mockable

type app struct {
	conf      *core.Config
	in        *bufio.Reader
	out       io.Writer
	prefsPath string
	baseURL   string

	prefs *client.Prefs
	api   *client.Client
}

func newApp(conf *core.Config, in io.Reader, out io.Writer) *app {
	return &app{conf: conf, in: bufio.NewReader(in), out: out}
}

// setup loads the preferences file and builds the API client from it.
func (a *app) setup(*cobra.Command, []string) error {
	path := a.prefsPath
	if path == "" {
		var err error
		if path, err = client.DefaultPrefsPath(); err != nil {
			return err
		}
	}
	prefs, err := client.LoadPrefs(path)
	if err != nil {
		return err
	}
	a.prefs = prefs

	baseURL := core.FirstNonEmpty(a.baseURL, prefs.BaseURL, a.conf.Client.BaseURL)
	if baseURL == "" {
		return errors.New("no API URL: pass --url")
	}
	prefs.BaseURL = baseURL

	ttl := a.conf.Client.CacheTTL
	if ttl <= 0 {
		ttl = client.DefaultCacheTTL
	}
	a.api = client.New(baseURL, client.WithToken(prefs.Token), client.WithCache(client.NewCache(ttl)))
	return nil
}

func (a *app) requireLogin(cmd *cobra.Command, args []string) error {
	if err := a.setup(cmd, args); err != nil {
		return err
	}
	if a.prefs.Token == "" {
		return errors.New("not logged in: run `crmctl login` first")
	}
	return nil
}

func (a *app) readLine(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) promptPassword() (string, error) {
	fmt.Fprint(a.out, "Password: ")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(a.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	return string(pwd), nil
}

// confirm asks a yes/no question; anything but y/yes is a no.
func (a *app) confirm(question string) (bool, error) {
	answer, err := a.readLine(question + " [y/N] ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// errorMessage is what the user sees for err.
func errorMessage(err error) string {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	msg := client.MessageOf(err)
	if apiErr.Unauthorized() {
		msg += " (run `crmctl login`)"
	}
	for field, fErr := range apiErr.Fields {
		msg += fmt.Sprintf("\n  %s: %s", field, fErr)
	}
	return msg
}
