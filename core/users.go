package core

import (
	"os"

	"emperror.dev/errors"
	"github.com/goccy/go-yaml"
)

type Users struct {
	FilePath string
	Users    []User `yaml:"users"`
}

type User struct {
	Name     string `yaml:"name"`
	FullName string `yaml:"fullname"`
}

func ReadUsersYaml(path string) (Users, error) {
	var users Users
	users.FilePath = path

	data, err := os.ReadFile(path)
	if err != nil {
		return Users{}, errors.Wrapf(err, "failed to read %s", path)
	}

	if err := yaml.Unmarshal(data, &users); err != nil {
		return Users{}, errors.Wrapf(err, "failed to parse %s", path)
	}

	// Editors sign content, so at least one is required
	if len(users.Users) == 0 {
		return Users{}, errors.Errorf("no users found in %s", path)
	}

	return users, nil
}

// Author returns the first user, who signs the site
func (u Users) Author() User {
	if len(u.Users) == 0 {
		return User{}
	}
	return u.Users[0]
}
