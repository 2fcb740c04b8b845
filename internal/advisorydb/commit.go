package advisorydb

import (
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Commit holds metadata about the latest commit of an advisory database
// checkout.
type Commit struct {
	// Hash is the hex commit id.
	Hash string

	// Author in "Name <email>" form.
	Author string

	// Summary is the first line of the commit message.
	Summary string

	// CommitTime is the committer timestamp, used for freshness checks.
	CommitTime time.Time
}

// LatestCommit returns information about the commit HEAD points at.
func (r *Repository) LatestCommit() (*Commit, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, Wrap(KindRepo, err, "unable to locate HEAD")
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, Wrap(KindRepo, err, "failed to find commit %s", head.Hash())
	}
	summary, _, _ := strings.Cut(commit.Message, "\n")
	return &Commit{
		Hash:       head.Hash().String(),
		Author:     commit.Author.String(),
		Summary:    strings.TrimSpace(summary),
		CommitTime: commit.Committer.When,
	}, nil
}

// IsFresh reports whether the commit is younger than the staleness window.
func (c *Commit) IsFresh(now time.Time, window time.Duration) bool {
	return c.CommitTime.After(now.Add(-window))
}

// reset makes the worktree match the commit exactly, discarding local
// modifications left behind by earlier runs.
func (r *Repository) reset(c *Commit) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return Wrap(KindRepo, err, "failed to open worktree")
	}
	opts := &git.ResetOptions{Mode: git.HardReset, Commit: plumbing.NewHash(c.Hash)}
	if err := wt.Reset(opts); err != nil {
		return Wrap(KindRepo, err, "failed to reset worktree to %s", c.Hash)
	}
	return nil
}
