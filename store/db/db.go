// Package db provides the database driver factory.
package db

import (
	"github.com/pkg/errors"

	"github.com/etcop/copilot-gateway/internal/profile"
	"github.com/etcop/copilot-gateway/store"
	"github.com/etcop/copilot-gateway/store/db/postgres"
	"github.com/etcop/copilot-gateway/store/db/sqlite"
)

// NewDBDriver creates a new database driver based on the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver: %s", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
