// SPDX-License-Identifier: ice License 1.0

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const maxParentHops = 5

//nolint:gochecknoinits // Configs are loaded once, for the whole runtime.
func init() {
	mustLoadApplicationConfig()
	dotEnvPath := `.env`
	for hop := 0; hop < maxParentHops; hop++ {
		if err := godotenv.Load(dotEnvPath); err == nil {
			break
		}
		dotEnvPath = fmt.Sprintf(`../%v`, dotEnvPath)
	}
}

func MustLoadFromKey(key string, cfg any) {
	if err := viper.UnmarshalKey(key, cfg); err != nil {
		log.Panic(errors.Wrapf(err, "failed to load config by key %q", key))
	}
}

func mustLoadApplicationConfig() {
	for _, candidate := range applicationConfigCandidates() {
		viper.SetConfigFile(candidate)
		if err := viper.ReadInConfig(); err == nil {
			return
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Panic(errors.Wrapf(err, "malformed application config file `%v`", candidate))
		}
	}

	log.Panic(errors.New("could not find any application.yaml files"))
}

func applicationConfigCandidates() []string {
	var roots []string
	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for hop := 0; hop < maxParentHops; hop++ {
			roots = append(roots, dir)
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	if executable, err := os.Executable(); err == nil {
		roots = append(roots, filepath.Dir(executable))
	}
	candidates := make([]string, 0, 2*len(roots)) //nolint:mnd,gomnd // 2 candidates per root.
	for _, root := range roots {
		candidates = append(candidates, filepath.Join(root, ".testdata", "application.yaml"), filepath.Join(root, "application.yaml"))
	}

	return candidates
}
