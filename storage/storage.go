// SPDX-License-Identifier: ice License 1.0

package storage

import (
	"context"
	"runtime"
	stdlibtime "time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	appcfg "github.com/gravityflow/ganalytics/config"
	"github.com/gravityflow/ganalytics/log"
)

//nolint:gomnd,mnd // Static connection tuning.
func MustConnect(ctx context.Context, applicationYAMLKey string) DB {
	var cfg config
	appcfg.MustLoadFromKey(applicationYAMLKey, &cfg)
	if cfg.Storage.ConnectionsPerCore == 0 {
		cfg.Storage.ConnectionsPerCore = 10
	}
	if cfg.Storage.URL == "" {
		log.Panic(errors.New("at least one url is required"))
	}
	opts, err := redis.ParseURL(cfg.Storage.URL)
	log.Panic(err) //nolint:revive // That's intended.
	if opts.Username == "" {
		opts.Username = cfg.Storage.Credentials.User
	}
	if opts.Password == "" {
		opts.Password = cfg.Storage.Credentials.Password
	}
	opts.ClientName = applicationYAMLKey

	opts.MaxRetries = 25
	opts.MinRetryBackoff = 10 * stdlibtime.Millisecond
	opts.MaxRetryBackoff = 1 * stdlibtime.Second
	opts.DialTimeout = 30 * stdlibtime.Second
	opts.ReadTimeout = 30 * stdlibtime.Second
	opts.WriteTimeout = 30 * stdlibtime.Second
	opts.ConnMaxIdleTime = 60 * stdlibtime.Second
	opts.ContextTimeoutEnabled = true
	opts.PoolFIFO = true
	opts.PoolSize = cfg.Storage.ConnectionsPerCore * runtime.GOMAXPROCS(-1)
	opts.MinIdleConns = 1
	opts.MaxIdleConns = 1
	client := redis.NewClient(opts)
	result, err := client.Ping(ctx).Result()
	log.Panic(err)
	if result != "PONG" {
		log.Panic(errors.Errorf("unexpected ping response: %v", result))
	}

	return client
}
