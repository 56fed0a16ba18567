package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
)

// envFiles are read in order; later files override earlier ones.
var envFiles = []string{".env", ".env.local"}

// LoadDotEnv reads .env and .env.local from dir and returns the variables that
// are not already set in the process environment. The process environment is
// never modified; the result is meant for the generator's child environment.
func LoadDotEnv(dir string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, foundation.WrapError(err, foundation.CategoryConfig, "cannot parse env file").
				WithContext("path", path).
				Build()
		}
		for k, v := range values {
			merged[k] = v
		}
	}
	for k := range merged {
		if _, set := os.LookupEnv(k); set {
			delete(merged, k)
		}
	}
	return merged, nil
}
