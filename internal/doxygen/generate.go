package doxygen

import (
	"context"

	"git.home.luguber.info/inful/docgen/internal/selfpath"
)

// locate is swapped out in tests.
var locate = selfpath.Locate

// Generate runs `doxygen Doxyfile` in the directory that contains the running
// program. The caller's working directory plays no part.
func Generate(ctx context.Context) error {
	loc, err := locate()
	if err != nil {
		return err
	}
	return NewInvocation(loc.Dir).Run(ctx)
}
