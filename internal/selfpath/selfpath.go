// Package selfpath resolves where the running docgen binary lives on disk.
//
// The documentation build always runs next to the binary, so the result must
// not depend on the caller's working directory.
package selfpath

import (
	"os"
	"path/filepath"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
)

// executable is swapped out in tests.
var executable = os.Executable

// Location is the absolute, symlink-resolved path of the running program and
// the directory that contains it.
type Location struct {
	Executable string
	Dir        string
}

// Locate resolves the running program's own location.
func Locate() (Location, error) {
	exe, err := executable()
	if err != nil {
		return Location{}, foundation.WrapError(err, foundation.CategoryRuntime, "cannot determine executable path").
			Fatal().
			Build()
	}
	return Resolve(exe)
}

// Resolve turns an executable path into a Location. Relative paths are made
// absolute against the process working directory before symlinks are followed.
func Resolve(exe string) (Location, error) {
	abs, err := filepath.Abs(exe)
	if err != nil {
		return Location{}, foundation.WrapError(err, foundation.CategoryRuntime, "cannot make executable path absolute").
			WithContext("path", exe).
			Fatal().
			Build()
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Location{}, foundation.WrapError(err, foundation.CategoryRuntime, "cannot resolve executable symlinks").
			WithContext("path", abs).
			Fatal().
			Build()
	}
	return Location{Executable: resolved, Dir: filepath.Dir(resolved)}, nil
}
