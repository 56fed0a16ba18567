// Package artifacts summarizes the HTML tree a documentation build produced.
package artifacts

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
)

// Summary describes an HTML output directory.
type Summary struct {
	Dir     string `json:"dir"`
	Present bool   `json:"present"`
	Files   int    `json:"files"`
	Bytes   int64  `json:"bytes"`
	// Title is the <title> of index.html, if any.
	Title string `json:"title,omitempty"`
}

// Summarize walks dir. A missing directory is reported with Present=false.
func Summarize(dir string) (Summary, error) {
	s := Summary{Dir: dir}
	if dir == "" {
		return s, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return s, foundation.WrapError(err, foundation.CategoryFileSystem, "stat output directory").
			WithContext("dir", dir).
			Build()
	}
	if !info.IsDir() {
		return s, foundation.FileSystemError("output path is not a directory").
			WithContext("dir", dir).
			Build()
	}
	s.Present = true

	err = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			s.Files++
			s.Bytes += fi.Size()
		}
		return nil
	})
	if err != nil {
		return s, foundation.WrapError(err, foundation.CategoryFileSystem, "walk output directory").
			WithContext("dir", dir).
			Build()
	}

	if title, err := indexTitle(filepath.Join(dir, "index.html")); err == nil {
		s.Title = title
	}
	return s, nil
}

func indexTitle(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	z := html.NewTokenizer(f)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", z.Err()
		case html.StartTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) != atom.Title {
				continue
			}
			if z.Next() != html.TextToken {
				return "", nil
			}
			return strings.Join(strings.Fields(string(z.Text())), " "), nil
		}
	}
}
