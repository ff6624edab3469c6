// SPDX-License-Identifier: ice License 1.0

package storage

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Public API.

type (
	DB interface {
		redis.Cmdable
		io.Closer
		Ping(ctx context.Context) *redis.StatusCmd
	}
)

var (
	ErrNotFound = errors.New("not found")
)

// Private API.

type (
	config struct {
		Storage struct {
			Credentials struct {
				User     string `yaml:"user" mapstructure:"user"`
				Password string `yaml:"password" mapstructure:"password"`
			} `yaml:"credentials" mapstructure:"credentials"`
			URL                string `yaml:"url" mapstructure:"url"`
			ConnectionsPerCore int    `yaml:"connectionsPerCore" mapstructure:"connectionsPerCore"`
		} `yaml:"ganalytics/storage" mapstructure:"ganalytics/storage"` //nolint:tagliatelle // Nope.
	}
)
