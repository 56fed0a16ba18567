package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/docgen/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	path := root.Config
	if path == "" {
		loc, err := g.locate()
		if err != nil {
			return err
		}
		path = filepath.Join(loc.Dir, config.DefaultFileName)
	}

	out := g.stdout()
	_, _ = fmt.Fprintf(out, "Writing configuration to %s\n", path)
	if err := config.Init(path, i.Force); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "initialized successfully")
	return nil
}
