package config

import (
	stderrors "errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Revision returns the HEAD commit of the git repository holding the config
// file, so reports can be traced to the table list that produced them. An
// empty string means the file is not under version control.
func Revision(configFile string) (string, error) {
	repo, err := git.PlainOpenWithOptions(filepath.Dir(configFile), &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		if stderrors.Is(err, git.ErrRepositoryNotExists) {
			return "", nil
		}
		return "", fmt.Errorf("failed to open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			// repository without commits
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	rev := head.Hash().String()

	wt, err := repo.Worktree()
	if err != nil {
		return rev, nil
	}
	status, err := wt.Status()
	if err != nil {
		return rev, nil
	}
	if rel, err := filepath.Rel(wt.Filesystem.Root(), configFile); err == nil {
		fs, ok := status[filepath.ToSlash(rel)]
		if ok && (fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified) {
			rev += "-dirty"
		}
	}
	return rev, nil
}
