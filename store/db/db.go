package db

import (
	"github.com/pkg/errors"

	"github.com/anastasijaprogramer/chatgpt-clone/internal/profile"
	"github.com/anastasijaprogramer/chatgpt-clone/store"
	"github.com/anastasijaprogramer/chatgpt-clone/store/db/postgres"
	"github.com/anastasijaprogramer/chatgpt-clone/store/db/sqlite"
)

// NewDBDriver creates the store driver based on the instance profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "sqlite":
		return sqlite.NewDB(profile)
	case "postgres":
		return postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q", profile.Driver)
	}
}
