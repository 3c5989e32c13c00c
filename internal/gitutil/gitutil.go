// Package gitutil wraps go-git with the narrow set of operations sprocket's Acquirer needs:
// cloning a source at some selector (branch/tag/rev/default), fetching and re-checking out an
// already-cloned source, and resolving whatever commit ends up checked out to its canonical
// 40-character hash for the lock artifact.
package gitutil

import (
	"io"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/pkg/errors"

	"github.com/sprocket-run/sprocket/pkg/plugin"
)

// Repo is a narrow handle on a cloned git repository.
type Repo struct {
	repository *git.Repository
}

// Open opens an already-cloned repository at local.
func Open(local string) (*Repo, error) {
	repo, err := git.PlainOpen(local)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't open git repo at %s", local)
	}
	return &Repo{repository: repo}, nil
}

// Clone clones remote into local and checks out ref, reporting clone progress (if progress is
// non-nil) through progress.
func Clone(remote string, ref plugin.Ref, submodules bool, local string, progress io.Writer) (*Repo, error) {
	normalized, err := normalizeRemote(remote)
	if err != nil {
		return nil, err
	}

	recurse := git.NoRecurseSubmodules
	if submodules {
		recurse = git.DefaultSubmoduleRecursionDepth
	}
	repository, err := git.PlainClone(local, false, &git.CloneOptions{
		URL:               normalized,
		Progress:          progress,
		RecurseSubmodules: recurse,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't clone %s to %s", normalized, local)
	}
	r := &Repo{repository: repository}
	if err := r.checkout(ref); err != nil {
		return nil, errors.Wrapf(err, "cloned %s but couldn't check out %s", normalized, ref)
	}
	return r, nil
}

// Update fetches new refs into an already-cloned repository and re-checks out ref, reporting
// fetch progress (if progress is non-nil) through progress.
func (r *Repo) Update(ref plugin.Ref, submodules bool, progress io.Writer) error {
	err := r.repository.Fetch(&git.FetchOptions{
		Progress: progress,
		Tags:     git.AllTags,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return errors.Wrap(err, "couldn't fetch changes")
	}
	if err := r.checkout(ref); err != nil {
		return errors.Wrapf(err, "couldn't check out %s", ref)
	}
	if submodules {
		worktree, err := r.repository.Worktree()
		if err != nil {
			return err
		}
		submods, err := worktree.Submodules()
		if err != nil {
			return errors.Wrap(err, "couldn't list submodules")
		}
		if err := submods.Update(&git.SubmoduleUpdateOptions{
			Init:              true,
			RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
		}); err != nil {
			return errors.Wrap(err, "couldn't update submodules")
		}
	}
	return nil
}

// AlreadyAt reports whether ref is a pinned commit hash that resolves locally (no fetch needed)
// and already matches the repository's currently checked-out commit, letting the caller skip
// Update's network fetch entirely (spec.md §4.2 step 2: "if the plugin carries a pinned commit
// hash that is already reachable and checked out"). Branch/tag/default refs always need a fetch
// to learn whether upstream has moved, so this only ever applies to RefRev.
func (r *Repo) AlreadyAt(ref plugin.Ref) bool {
	if ref.Kind != plugin.RefRev {
		return false
	}
	hash, err := r.resolveRevision(ref.Value)
	if err != nil {
		return false // not reachable without a fetch
	}
	head, err := r.repository.Head()
	if err != nil {
		return false
	}
	return head.Hash() == *hash
}

// checkout resolves ref to a concrete revision per the rev > tag > branch > HEAD precedence
// (spec.md §4.2) and checks it out.
func (r *Repo) checkout(ref plugin.Ref) error {
	worktree, err := r.repository.Worktree()
	if err != nil {
		return err
	}

	var opts git.CheckoutOptions
	switch ref.Kind {
	case plugin.RefRev:
		hash, err := r.resolveRevision(ref.Value)
		if err != nil {
			return err
		}
		opts = git.CheckoutOptions{Hash: *hash}
	case plugin.RefTag:
		opts = git.CheckoutOptions{Branch: plumbing.NewTagReferenceName(ref.Value)}
	case plugin.RefBranch:
		opts = git.CheckoutOptions{Branch: plumbing.NewRemoteReferenceName("origin", ref.Value)}
	default:
		head, err := r.repository.Head()
		if err != nil {
			return errors.Wrap(err, "couldn't determine default branch")
		}
		opts = git.CheckoutOptions{Hash: head.Hash()}
	}
	return worktree.Checkout(&opts)
}

// resolveRevision resolves an abbreviated or full commit hash (or any other git revision
// expression go-git supports) to a *plumbing.Hash.
func (r *Repo) resolveRevision(revision string) (*plumbing.Hash, error) {
	hash, err := r.repository.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't resolve %s as a commit", revision)
	}
	return hash, nil
}

// Head returns the canonical 40-character hash currently checked out, for recording as the lock
// artifact's source_commit.
func (r *Repo) Head() (string, error) {
	ref, err := r.repository.Head()
	if err != nil {
		return "", errors.Wrap(err, "couldn't determine checked-out commit")
	}
	return ref.Hash().String(), nil
}

// normalizeRemote defaults a scheme-less remote URL to https, matching the shorthand expansion
// Config normalization already applies to github/gist sources; this additionally covers a bare
// "git" source field written without a scheme.
func normalizeRemote(remote string) (string, error) {
	u, err := url.Parse(remote)
	if err != nil {
		return "", errors.Wrapf(err, "couldn't parse %s as a url", remote)
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + strings.TrimPrefix(remote, "//"))
		if err != nil {
			return "", errors.Wrapf(err, "couldn't parse %s as a url", remote)
		}
	}
	return u.String(), nil
}
