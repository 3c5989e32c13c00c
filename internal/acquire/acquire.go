// Package acquire materializes each plugin's Source onto local disk: cloning or updating git
// repositories, downloading single remote files, and validating local directories. It is the
// second stage of sprocket's one-way Config -> Acquirer -> Resolver -> Renderer pipeline.
package acquire

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sprocket-run/sprocket/internal/gitutil"
	"github.com/sprocket-run/sprocket/pkg/fs"
	"github.com/sprocket-run/sprocket/pkg/plugin"
)

// Result is what acquiring a single plugin's source yields: the filesystem rooted at the
// materialized source (for SourceGit/SourceLocal, the checkout/directory root; for SourceRemote,
// the directory containing the downloaded file), and, for git sources, the canonical commit hash
// that ended up checked out.
type Result struct {
	Plugin       string
	FS           fs.PathedFS
	SourceCommit string // only set for SourceGit
	DownloadedAs string // only set for SourceRemote: the downloaded file's name
}

// Acquirer materializes Sources onto disk under a root cache directory. Plugins that share a
// canonical source are coalesced to a single acquisition (spec.md §4.2), and failures are
// isolated to the plugins whose source caused them.
type Acquirer struct {
	CacheDir string
	Client   *http.Client
	Log      Logger
	Parallel int // maximum concurrent acquisitions; 0 means no limit (New substitutes runtime.NumCPU())
}

// Logger is the narrow logging surface the Acquirer needs; internal/sprocketlog.Logger satisfies
// it, and tests can substitute a no-op.
type Logger interface {
	Status(format string, args ...any)
	Progress() io.Writer
}

func New(cacheDir string, client *http.Client, log Logger, parallel int) *Acquirer {
	if client == nil {
		client = http.DefaultClient
	}
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}
	return &Acquirer{
		CacheDir: cacheDir,
		Client:   client,
		Log:      log,
		Parallel: parallel,
	}
}

// AcquireAll acquires every distinct canonical source exactly once, in parallel (bounded by
// a.Parallel), then fans each result out to every plugin that shares it. It returns one Result per
// input Plugin in the same order, and an error aggregating every per-plugin failure rather than
// aborting on the first one (spec.md §7's error-isolation requirement).
func (a *Acquirer) AcquireAll(ctx context.Context, plugins []plugin.Plugin) ([]Result, error) {
	results := make([]Result, len(plugins))
	errs := make([]error, len(plugins))

	// Group plugin indices by canonical source key so N plugins sharing one source run acquire()
	// exactly once between them (spec.md §4.2: "plugins that share a source are coalesced to a
	// single acquisition"), rather than once per plugin.
	var order []string
	group := make(map[string][]int)
	leader := make(map[string]plugin.Plugin)
	for i, p := range plugins {
		if p.External == nil {
			continue // inline plugins have nothing to acquire
		}
		key, err := p.External.Source.CanonicalKey()
		if err != nil {
			errs[i] = errors.Wrapf(err, "couldn't acquire source for plugin %s", p.Name)
			continue
		}
		if _, ok := group[key]; !ok {
			order = append(order, key)
			leader[key] = p
		}
		group[key] = append(group[key], i)
	}

	eg, egctx := errgroup.WithContext(ctx)
	if a.Parallel > 0 {
		eg.SetLimit(a.Parallel)
	}
	for _, key := range order {
		key, indices, p := key, group[key], leader[key]
		eg.Go(func() error {
			result, err := a.acquire(egctx, p)
			if err != nil {
				wrapped := errors.Wrapf(err, "couldn't acquire source %s", key)
				for _, i := range indices {
					errs[i] = wrapped
				}
				return nil // isolate: don't cancel siblings or short-circuit errgroup
			}
			for _, i := range indices {
				r := result
				r.Plugin = plugins[i].Name
				results[i] = r
			}
			return nil
		})
	}
	_ = eg.Wait() // acquire never returns a non-nil error itself; failures are captured in errs

	var list plugin.ErrorList
	for _, err := range errs {
		if err != nil {
			list = append(list, err)
		}
	}
	if len(list) > 0 {
		return results, list
	}
	return results, nil
}

// acquire materializes a single external plugin's source. Called at most once per distinct
// canonical source by AcquireAll.
func (a *Acquirer) acquire(ctx context.Context, p plugin.Plugin) (Result, error) {
	source := p.External.Source
	key, err := source.CanonicalKey()
	if err != nil {
		return Result{}, err
	}

	switch source.Kind {
	case plugin.SourceGit:
		return a.acquireGit(ctx, p.Name, source, key)
	case plugin.SourceRemote:
		return a.acquireRemote(ctx, p.Name, source, key)
	case plugin.SourceLocal:
		return a.acquireLocal(p.Name, source)
	default:
		return Result{}, errors.Errorf("unknown source kind %d", source.Kind)
	}
}

func (a *Acquirer) acquireGit(ctx context.Context, name string, source plugin.Source, key string) (Result, error) {
	local := filepath.Join(a.CacheDir, filepath.FromSlash(key))

	var repo *gitutil.Repo
	if fs.DirExists(local) {
		var err error
		repo, err = gitutil.Open(local)
		if err != nil {
			return Result{}, errors.Wrapf(err, "cache directory %s is corrupt; "+
				"remove it and run lock again to re-clone", local)
		}
		if repo.AlreadyAt(source.Ref) {
			// Pinned to a commit hash that's already reachable and checked out locally: spec.md
			// §4.2 step 2 skips the fetch entirely rather than hitting the network for nothing.
			a.Log.Status("%s already at %s, skipping fetch", name, source.Ref.Value)
		} else {
			a.Log.Status("Fetching %s (%s)...", name, source.URL)
			if err := repo.Update(source.Ref, source.Submodules, a.Log.Progress()); err != nil {
				return Result{}, err
			}
		}
	} else {
		a.Log.Status("Cloning %s (%s)...", name, source.URL)
		if err := fs.EnsureExists(filepath.Dir(local)); err != nil {
			return Result{}, err
		}
		var err error
		repo, err = gitutil.Clone(source.URL, source.Ref, source.Submodules, local, a.Log.Progress())
		if err != nil {
			return Result{}, err
		}
	}

	commit, err := repo.Head()
	if err != nil {
		return Result{}, err
	}
	return Result{Plugin: name, FS: fs.DirFS(local), SourceCommit: commit}, nil
}

func (a *Acquirer) acquireRemote(ctx context.Context, name string, source plugin.Source, key string) (Result, error) {
	dir := filepath.Join(a.CacheDir, filepath.FromSlash(key))
	filename := filepath.Base(source.URL)
	outputPath := filepath.Join(dir, filename)

	a.Log.Status("Fetching %s (%s)...", name, source.URL)
	if err := downloadFile(ctx, source.URL, outputPath, a.Client); err != nil {
		return Result{}, err
	}
	return Result{Plugin: name, FS: fs.DirFS(dir), DownloadedAs: filename}, nil
}

func (a *Acquirer) acquireLocal(name string, source plugin.Source) (Result, error) {
	dir, err := plugin.ExpandHome(source.Path)
	if err != nil {
		return Result{}, err
	}
	if !fs.DirExists(dir) {
		return Result{}, errors.Errorf("local source directory %s does not exist", dir)
	}
	return Result{Plugin: name, FS: fs.DirFS(dir)}, nil
}

// downloadMeta persists the conditional-request validators from a download's most recent 200
// response, alongside the downloaded file, so the next acquisition can ask the server "has this
// changed?" instead of re-downloading unconditionally.
type downloadMeta struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

func metaPath(outputPath string) string {
	return outputPath + ".meta.json"
}

func readDownloadMeta(outputPath string) downloadMeta {
	data, err := os.ReadFile(metaPath(outputPath))
	if err != nil {
		return downloadMeta{}
	}
	var meta downloadMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return downloadMeta{}
	}
	return meta
}

func writeDownloadMeta(outputPath string, meta downloadMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, "couldn't serialize download metadata")
	}
	return os.WriteFile(metaPath(outputPath), data, 0o644)
}

// downloadFile performs a conditional GET against url (spec.md §4.2's remote source algorithm):
// if a cached copy exists, its last-seen ETag/Last-Modified are sent as If-None-Match/
// If-Modified-Since. A 304 or a failed request leaves the cached copy untouched; a 200 atomically
// replaces it (temp file in the same directory, then rename) and records the new validators.
// Adapted from forklift's DownloadFile (internal/app/forklift/caching-downloads-files.go).
func downloadFile(ctx context.Context, url, outputPath string, client *http.Client) error {
	if err := fs.EnsureExists(filepath.Dir(outputPath)); err != nil {
		return err
	}

	_, statErr := os.Stat(outputPath)
	hadCache := statErr == nil

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "couldn't make http request for %s", url)
	}
	if hadCache {
		meta := readDownloadMeta(outputPath)
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	res, err := client.Do(req)
	if err != nil {
		if hadCache {
			return nil // retain the previously cached copy rather than fail a warm lock
		}
		return errors.Wrapf(err, "couldn't download %s", url)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotModified {
		return nil
	}
	if res.StatusCode >= 400 {
		if hadCache {
			return nil
		}
		return errors.Errorf("couldn't download %s: http status %s", url, res.Status)
	}

	tmpPath := outputPath + ".sprocketdownload"
	file, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "couldn't create temporary download file at %s", tmpPath)
	}
	if _, err := io.Copy(file, res.Body); err != nil {
		file.Close()
		return errors.Wrapf(err, "couldn't download %s to %s", url, tmpPath)
	}
	if err := file.Close(); err != nil {
		return errors.Wrapf(err, "couldn't finalize temporary download file %s", tmpPath)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return errors.Wrapf(err, "couldn't commit completed download from %s to %s", tmpPath, outputPath)
	}

	return writeDownloadMeta(outputPath, downloadMeta{
		ETag:         res.Header.Get("ETag"),
		LastModified: res.Header.Get("Last-Modified"),
	})
}
