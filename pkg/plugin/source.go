package plugin

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// SourceKind identifies which of the three closed Source variants a Source holds. The set of
// kinds is small and fixed, so we dispatch on this tag rather than building an open-ended
// polymorphic hierarchy for what is, in practice, three concrete cases.
type SourceKind int

const (
	SourceGit SourceKind = iota
	SourceRemote
	SourceLocal
)

func (k SourceKind) String() string {
	switch k {
	case SourceGit:
		return "git"
	case SourceRemote:
		return "remote"
	case SourceLocal:
		return "local"
	default:
		return "unknown"
	}
}

// RefKind identifies which (if any) of branch/tag/rev selects a Git source's checked-out state.
type RefKind int

const (
	RefDefault RefKind = iota
	RefBranch
	RefTag
	RefRev
)

// Source describes where a plugin's content comes from: a git repository, a single remote file,
// or a local directory. Two sources are equivalent (and so share cached storage on disk) iff
// their Kind and canonicalized URL/path match; the Ref does not affect storage identity, only
// which commit ends up checked out within that shared storage.
type Source struct {
	Kind SourceKind
	// URL is the git remote URL (SourceGit) or the file URL (SourceRemote). Unused for SourceLocal.
	URL string
	// Submodules controls recursive submodule checkout for SourceGit. Defaults to true.
	Submodules bool
	// Path is the local directory for SourceLocal, as written in the config (not yet
	// tilde-expanded, not necessarily absolute); ExpandHome is applied where it is used. Unused
	// otherwise.
	Path string
	// Ref selects the branch/tag/rev to resolve for SourceGit. Zero value means "default HEAD of
	// the remote".
	Ref Ref
}

// Ref names a Git reference selector. At most one of branch/tag/rev may be set on a plugin; see
// Config normalization rule 2.
type Ref struct {
	Kind  RefKind
	Value string
}

func (r Ref) String() string {
	if r.Kind == RefDefault {
		return "HEAD"
	}
	return r.Value
}

// CanonicalKey returns the storage-identity key for a Source: two Sources sharing a CanonicalKey
// share cached on-disk storage. It deliberately ignores Ref.
func (s Source) CanonicalKey() (string, error) {
	switch s.Kind {
	case SourceGit, SourceRemote:
		host, segments, err := hostAndPathSegments(s.URL)
		if err != nil {
			return "", errors.Wrapf(err, "couldn't canonicalize source url %s", s.URL)
		}
		prefix := "repos"
		if s.Kind == SourceRemote {
			prefix = "downloads"
		}
		return path.Join(prefix, host, segments), nil
	case SourceLocal:
		expanded, err := ExpandHome(s.Path)
		if err != nil {
			return "", errors.Wrapf(err, "couldn't expand local source path %s", s.Path)
		}
		return "local:" + filepath.Clean(expanded), nil
	default:
		return "", errors.Errorf("unknown source kind %d", s.Kind)
	}
}

// hostAndPathSegments splits a URL into its authority (host) and a slash-joined, cleaned path,
// defaulting the scheme to https the way forklift's git client does when cloning a bare
// "host/path" reference.
func hostAndPathSegments(rawURL string) (host, segments string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", errors.Wrapf(err, "couldn't parse %s as a url", rawURL)
	}
	if u.Scheme == "" {
		// support bare "github.com/user/repo" shorthand expansions
		u, err = url.Parse("https://" + rawURL)
		if err != nil {
			return "", "", errors.Wrapf(err, "couldn't parse %s as a url", rawURL)
		}
	}
	if u.Host == "" {
		return "", "", errors.Errorf("url %s is missing a host", rawURL)
	}
	trimmed := strings.TrimSuffix(strings.TrimPrefix(u.Path, "/"), ".git")
	return u.Host, path.Clean(trimmed), nil
}

// ExpandHome expands a leading "~" or "~/" in p to the current user's home directory.
func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := osUserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "couldn't determine home directory")
	}
	if p == "~" {
		return home, nil
	}
	return filepath.Join(home, p[2:]), nil
}
