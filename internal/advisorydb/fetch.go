package advisorydb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// performFetch updates an existing checkout from its upstream: it fetches
// the remote HEAD, records it in FETCH_HEAD and moves the local HEAD to the
// fetched commit. The repository committer identity is set for the duration
// of the fetch and restored afterwards, also on failure.
func (r *Repository) performFetch(ctx context.Context, opts FetchOptions) error {
	restore, err := r.setCommitter()
	if err != nil {
		return err
	}
	err = r.fetchAndReconcile(ctx, opts)
	if rerr := restore(); rerr != nil && err == nil {
		err = Wrap(KindRepo, rerr, "failed to restore committer")
	}
	return err
}

func (r *Repository) fetchAndReconcile(ctx context.Context, opts FetchOptions) error {
	err := r.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Force:      true,
		Progress:   opts.Progress,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return Wrap(KindRepo, err, "failed to fetch")
	}
	if err == git.NoErrAlreadyUpToDate {
		r.log.Debugf("advisory database at %s already up to date", r.path)
	}

	// Cancellation checkpoint before any local ref is touched.
	if err := ctx.Err(); err != nil {
		return Wrap(KindRepo, err, "sync of %s aborted before ref update", r.path)
	}

	ref, err := r.repo.Reference(plumbing.ReferenceName(originHEAD), true)
	if err != nil {
		return Wrap(KindRepo, err, "failed to resolve %s", originHEAD)
	}
	remoteHead := ref.Hash()

	if err := r.writeFetchHead(remoteHead, opts.URL); err != nil {
		return err
	}
	return r.reconcileHead(remoteHead)
}

// setCommitter writes the committer identity to the repository config and
// returns a function restoring the previous values.
func (r *Repository) setCommitter() (func() error, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return nil, Wrap(KindRepo, err, "failed to read repository config")
	}
	prevName, prevEmail := cfg.Committer.Name, cfg.Committer.Email
	cfg.Committer.Name = committerName
	cfg.Committer.Email = ""
	if err := r.repo.SetConfig(cfg); err != nil {
		return nil, Wrap(KindRepo, err, "failed to set committer")
	}

	return func() error {
		cfg, err := r.repo.Config()
		if err != nil {
			return err
		}
		cfg.Committer.Name, cfg.Committer.Email = prevName, prevEmail
		return r.repo.SetConfig(cfg)
	}, nil
}

// reconcileHead points the local HEAD at the freshly fetched remote HEAD.
// In the usual case HEAD is a symbolic reference to a branch holding a
// commit id, and the branch is moved so the checkout stays on it. A detached
// HEAD is repointed directly, and an unborn branch is created.
func (r *Repository) reconcileHead(remoteHead plumbing.Hash) error {
	head, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return Wrap(KindRepo, err, "unable to locate HEAD")
	}

	if head.Type() != plumbing.SymbolicReference {
		if err := r.repo.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, remoteHead)); err != nil {
			return Wrap(KindRepo, err, "failed to update HEAD")
		}
		return r.appendReflog(plumbing.HEAD, head.Hash(), remoteHead)
	}

	branchName := head.Target()
	branch, err := r.repo.Storer.Reference(branchName)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// Unborn branch. An update through HEAD creates it.
		if err := r.repo.Storer.SetReference(plumbing.NewHashReference(branchName, remoteHead)); err != nil {
			return Wrap(KindRepo, err, "failed to create %s", branchName)
		}
		if err := r.appendReflog(branchName, plumbing.ZeroHash, remoteHead); err != nil {
			return err
		}
		return r.appendReflog(plumbing.HEAD, plumbing.ZeroHash, remoteHead)
	case err != nil:
		return Wrap(KindRepo, err, "failed to resolve %s", branchName)
	}

	if branch.Type() == plumbing.SymbolicReference {
		// The branch is itself symbolic. Update the reference it points
		// to, which must already exist.
		finalName := branch.Target()
		final, err := r.repo.Storer.Reference(finalName)
		if err != nil {
			return Wrap(KindRepo, err, "failed to resolve %s", finalName)
		}
		if err := r.repo.Storer.CheckAndSetReference(plumbing.NewHashReference(finalName, remoteHead), final); err != nil {
			return Wrap(KindRepo, err, "failed to update %s", finalName)
		}
		return r.appendReflog(finalName, final.Hash(), remoteHead)
	}

	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(branchName, remoteHead)); err != nil {
		return Wrap(KindRepo, err, "failed to update %s", branchName)
	}
	if err := r.appendReflog(branchName, branch.Hash(), remoteHead); err != nil {
		return err
	}
	return r.appendReflog(plumbing.HEAD, branch.Hash(), remoteHead)
}

// gitdir returns the filesystem rooted at the repository's .git directory.
func (r *Repository) gitdir() (billy.Filesystem, error) {
	st, ok := r.repo.Storer.(*filesystem.Storage)
	if !ok {
		return nil, Errorf(KindRepo, "repository storage is not filesystem backed")
	}
	return st.Filesystem(), nil
}

// writeFetchHead records the fetched commit in .git/FETCH_HEAD, which go-git
// does not maintain itself.
func (r *Repository) writeFetchHead(hash plumbing.Hash, url string) error {
	fs, err := r.gitdir()
	if err != nil {
		return err
	}
	line := fmt.Sprintf("%s\t\t%s\n", hash.String(), url)
	if err := util.WriteFile(fs, "FETCH_HEAD", []byte(line), 0644); err != nil {
		return Wrap(KindRepo, err, "failed to write FETCH_HEAD")
	}
	return nil
}

// appendReflog appends a reference update line to .git/logs, which go-git
// does not maintain itself. The identity matches the committer set during
// the fetch.
func (r *Repository) appendReflog(name plumbing.ReferenceName, old, new plumbing.Hash) error {
	fs, err := r.gitdir()
	if err != nil {
		return err
	}
	logPath := path.Join("logs", name.String())
	if err := fs.MkdirAll(path.Dir(logPath), 0755); err != nil {
		return Wrap(KindRepo, err, "failed to create reflog directory")
	}
	f, err := fs.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return Wrap(KindRepo, err, "failed to open reflog for %s", name)
	}
	defer f.Close()

	now := time.Now()
	line := fmt.Sprintf("%s %s %s <> %d %s\t\n", old.String(), new.String(), committerName, now.Unix(), tzOffset(now))
	if _, err := f.Write([]byte(line)); err != nil {
		return Wrap(KindRepo, err, "failed to append reflog for %s", name)
	}
	return nil
}

func tzOffset(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("%s%02d%02d", sign, offset/3600, offset%3600/60)
}
