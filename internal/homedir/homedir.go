package homedir

import (
	"os"
	"os/user"
)

// Get returns the current user's home directory. It panics when no
// home can be determined; every caller needs it for state paths
// (token cache, run history, outbox) and there is no sane fallback.
func Get() string {
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return h
	}

	usr, err := user.Current()
	if err != nil {
		panic(err)
	}
	return usr.HomeDir
}
