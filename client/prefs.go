package client

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Prefs is the on-disk session & preferences of a client user.
type Prefs struct {
	BaseURL  string    `yaml:"baseUrl"`
	Token    string    `yaml:"token,omitempty"`
	User     PrefsUser `yaml:"user,omitempty"`
	PageSize int       `yaml:"pageSize,omitempty"`

	path string
}

// PrefsUser is the part of the logged in user kept for role based decisions.
type PrefsUser struct {
	ID       string `yaml:"id,omitempty"`
	Name     string `yaml:"name,omitempty"`
	Username string `yaml:"username,omitempty"`
	Role     string `yaml:"role,omitempty"`
}

// DefaultPrefsPath is <user config dir>/admitflow/prefs.yaml.
func DefaultPrefsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "finding user config dir")
	}
	return filepath.Join(dir, "admitflow", "prefs.yaml"), nil
}

// LoadPrefs reads the file at path; a missing file yields empty preferences.
func LoadPrefs(path string) (*Prefs, error) {
	p := &Prefs{path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading preferences")
	}
	if err = yaml.Unmarshal(data, p); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return p, nil
}

func (p *Prefs) Save() error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encoding preferences")
	}
	if err = os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return errors.Wrap(err, "creating preferences dir")
	}
	return errors.Wrap(os.WriteFile(p.path, data, 0o600), "writing preferences")
}

// SetSession stores the logged in session; an empty session logs out.
func (p *Prefs) SetSession(s Session) error {
	p.Token = s.Token
	p.User = PrefsUser{ID: s.User.ID, Name: s.User.Name, Username: s.User.Username, Role: s.User.Role}
	return p.Save()
}

// PreferredPageSize returns the saved page size or def.
func (p *Prefs) PreferredPageSize(def int) int {
	if p.PageSize > 0 {
		return p.PageSize
	}
	return def
}

func (p *Prefs) SavePageSize(n int) error {
	p.PageSize = n
	return p.Save()
}
