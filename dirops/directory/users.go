package directory

import (
	"context"
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"

	cr "github.com/accountops/dirops/dirops/commandrunner"
	"github.com/accountops/dirops/dirops/domainerr"
	"github.com/accountops/dirops/dirops/validator"
)

// User is one directory account. Password is carried only on create and
// edit requests; read operations never return it.
type User struct {
	Username string `json:"-"`
	FullName string `json:"fullname"`
	Shell    string `json:"shell"`
	Expiry   string `json:"expiry"` // password expiry date, empty when expiry is disabled
	Locked   bool   `json:"locked"`
	New      bool   `json:"new"`
	Password string `json:"-"`
}

// ListUsers returns all accounts keyed by username, re-queried from the
// external source of truth on every call.
func (d *Directory) ListUsers(ctx context.Context) (map[string]User, error) {
	raw, err := d.runQuery(ctx, d.scripts.Users, "")
	if err != nil {
		return nil, err
	}
	return parseUserDoc(raw)
}

// GetUser queries one account. A username with no record resolves to an
// empty map; only transport and parse failures are errors.
func (d *Directory) GetUser(ctx context.Context, username string) (map[string]User, error) {
	raw, err := d.runQuery(ctx, d.scripts.Users, username)
	if err != nil {
		return nil, err
	}
	return parseUserDoc(raw)
}

// UserGroups lists the groups username belongs to, in whatever order the
// membership script reports them. Callers must treat the order as
// unspecified.
func (d *Directory) UserGroups(ctx context.Context, username string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.queryTimeout(ctx))
	defer cancel()

	result, err := d.runner.Run(ctx, cr.CommandConfig{
		Command: d.scripts.UserGroups,
		Args:    []string{username},
	})
	if err != nil {
		return nil, err
	}

	var groups []string
	if err := json.Unmarshal([]byte(result.STDOUT), &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// AddUser requests a new account. It rejects with NotValid when the
// username is already taken or the password fails the strength rule; in
// both cases no signal is emitted.
func (d *Directory) AddUser(ctx context.Context, user User) error {
	existing, err := d.GetUser(ctx, user.Username)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return domainerr.New(errIDUserExists, domainerr.NotValid, "username",
			fmt.Sprintf("user %q already exists", user.Username))
	}

	spec := validator.ErrorSpec{
		ID:      errIDWeakPassword,
		Kind:    domainerr.NotValid,
		Field:   "password",
		Message: "password does not meet strength requirements",
	}
	if err := d.validator.Check(ctx, PasswordStrengthRule, []string{user.Password}, spec); err != nil {
		return err
	}

	user.New = true
	return d.emit(ctx, SignalUserModify, userParams(user))
}

// EditUser requests changes to an existing account. Rejects with NotFound
// when the username has no record.
func (d *Directory) EditUser(ctx context.Context, user User) error {
	existing, err := d.GetUser(ctx, user.Username)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return domainerr.New(errIDEditUserMissing, domainerr.NotFound, "username",
			fmt.Sprintf("user %q does not exist", user.Username))
	}

	user.New = false
	return d.emit(ctx, SignalUserModify, userParams(user))
}

// DeleteUser requests removal of an account. Rejects with NotFound when the
// username has no record.
func (d *Directory) DeleteUser(ctx context.Context, username string) error {
	existing, err := d.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return domainerr.New(errIDDeleteUserMissing, domainerr.NotFound, "username",
			fmt.Sprintf("user %q does not exist", username))
	}

	return d.emit(ctx, SignalUserDelete, []string{username})
}

// userParams flattens an account request into the positional list the
// mutation subsystem expects: key first, then the fixed attribute schema.
// The order is part of the signal contract; never build it by reflection.
func userParams(u User) []string {
	return []string{
		u.Username,
		u.FullName,
		u.Password,
		u.Shell,
		u.Expiry,
		strconv.FormatBool(u.Locked),
		strconv.FormatBool(u.New),
	}
}

func parseUserDoc(raw string) (map[string]User, error) {
	var doc map[string]User
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}

	users := make(map[string]User, len(doc))
	for username, user := range doc {
		user.Username = username
		users[username] = user
	}
	return users, nil
}
