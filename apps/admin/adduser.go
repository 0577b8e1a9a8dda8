package main

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ensinoverso/backend/core"
	"github.com/ensinoverso/backend/core/user"
)

// addUser updates or creates an active user.User, bypassing the
// registration bootstrap rule. Useful to seed the first admin.
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	role := user.RoleTeacher
	if isAdmin {
		role = user.RoleAdmin
	}
	active := true
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUserByEmail(email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Name:      name,
			Email:     email,
			Role:      role,
			IsActive:  active,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.usrRepo.CreateUser(usr)
		return err
	}

	usr.Name = name
	usr.Role = role
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateUser(usr, &active)
	return err
}
