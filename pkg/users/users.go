// Package users answers questions about the accounts a package or
// service should run as.
package users

import (
	"os/user"
	"runtime"
	"strconv"

	"github.com/rotisserie/eris"
)

// CurrentUsername returns the name of the effective user.
func CurrentUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", eris.Wrap(err, "failed to look up the current user")
	}
	return u.Username, nil
}

// CurrentGroupname returns the name of the effective primary group.
func CurrentGroupname() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", eris.Wrap(err, "failed to look up the current user")
	}

	g, err := user.LookupGroupId(u.Gid)
	if err != nil {
		return "", eris.Wrapf(err, "failed to look up group %s", u.Gid)
	}
	return g.Name, nil
}

// UIDByName resolves a username to its numeric uid. The second return
// value reports whether the user exists.
func UIDByName(name string) (int, bool, error) {
	u, err := user.Lookup(name)
	if err != nil {
		if _, unknown := err.(user.UnknownUserError); unknown {
			return 0, false, nil
		}
		return 0, false, eris.Wrapf(err, "failed to look up user %s", name)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, false, eris.Wrapf(err, "user %s has a non-numeric uid %q", name, u.Uid)
	}
	return uid, true, nil
}

// GIDByName resolves a group name to its numeric gid. The second
// return value reports whether the group exists.
func GIDByName(name string) (int, bool, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		if _, unknown := err.(user.UnknownGroupError); unknown {
			return 0, false, nil
		}
		return 0, false, eris.Wrapf(err, "failed to look up group %s", name)
	}

	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, false, eris.Wrapf(err, "group %s has a non-numeric gid %q", name, g.Gid)
	}
	return gid, true, nil
}

// HomeDir returns the home directory of the named user, or "" if the
// user does not exist.
func HomeDir(name string) (string, error) {
	u, err := user.Lookup(name)
	if err != nil {
		if _, unknown := err.(user.UnknownUserError); unknown {
			return "", nil
		}
		return "", eris.Wrapf(err, "failed to look up user %s", name)
	}
	return u.HomeDir, nil
}

// IsRoot reports whether the process runs with root privileges. On
// Windows this is always false; elevation is checked elsewhere.
func IsRoot() bool {
	if runtime.GOOS == "windows" {
		return false
	}
	u, err := user.Current()
	if err != nil {
		return false
	}
	return u.Uid == "0"
}

// AssertPkgUserAndGroup verifies that the user and group a package
// declares actually exist on this host.
func AssertPkgUserAndGroup(username, groupname string) error {
	if _, ok, err := UIDByName(username); err != nil {
		return err
	} else if !ok {
		return eris.Errorf("package requires user %s to exist, but it does not", username)
	}

	if _, ok, err := GIDByName(groupname); err != nil {
		return err
	} else if !ok {
		return eris.Errorf("package requires group %s to exist, but it does not", groupname)
	}
	return nil
}
