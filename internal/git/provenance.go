// Package git reads the revision that a documentation build was produced from.
package git

import (
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
)

// ErrNotRepository is matched (errors.Is) when dir is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Provenance identifies the commit a build ran against.
type Provenance struct {
	Commit string
	// Branch is the short branch name, empty when HEAD is detached.
	Branch string
	// Dirty is set when the work tree has uncommitted or untracked changes.
	Dirty bool
}

// ShortCommit returns the first 12 characters of the commit hash.
func (p Provenance) ShortCommit() string {
	if len(p.Commit) > 12 {
		return p.Commit[:12]
	}
	return p.Commit
}

// Head returns the provenance of the repository containing dir.
func Head(dir string) (Provenance, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Provenance{}, foundation.GitError("no git repository found").
				WithCause(ErrNotRepository).
				WithContext("dir", dir).
				Build()
		}
		return Provenance{}, foundation.WrapError(err, foundation.CategoryGit, "open repository").
			Warning().
			WithContext("dir", dir).
			Build()
	}

	ref, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// Freshly initialised repository without commits.
			return Provenance{}, nil
		}
		return Provenance{}, foundation.WrapError(err, foundation.CategoryGit, "resolve HEAD").
			Warning().
			WithContext("dir", dir).
			Build()
	}

	p := Provenance{Commit: ref.Hash().String()}
	if ref.Name().IsBranch() {
		p.Branch = ref.Name().Short()
	}

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no work tree and cannot be dirty.
		if errors.Is(err, git.ErrIsBareRepository) {
			return p, nil
		}
		return p, foundation.WrapError(err, foundation.CategoryGit, "open worktree").
			Warning().
			WithContext("dir", dir).
			Build()
	}
	status, err := wt.Status()
	if err != nil {
		return p, foundation.WrapError(err, foundation.CategoryGit, "worktree status").
			Warning().
			WithContext("dir", dir).
			Build()
	}
	p.Dirty = !status.IsClean()
	return p, nil
}
