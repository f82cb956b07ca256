// Package gitsync keeps each app's clone in step with its remote: cloning,
// fetching, release discovery and version checkouts. All repository access is
// serialized per path.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pyappify/pyappify/internal/events"
	"github.com/pyappify/pyappify/internal/logging"
)

var fetchAllRefSpecs = []gitconfig.RefSpec{
	"+refs/heads/*:refs/remotes/origin/*",
	"+refs/tags/*:refs/tags/*",
}

const tagsRefSpec = gitconfig.RefSpec("+refs/tags/*:refs/tags/*")

// Service performs all git operations for managed apps.
type Service struct {
	log   *logging.Logger
	sink  events.Sink
	locks sync.Map // repo path -> *sync.Mutex
}

// New creates a synchronizer reporting through the given sink.
func New(log *logging.Logger, sink events.Sink) *Service {
	return &Service{log: log, sink: sink}
}

func (s *Service) lock(repoPath string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(repoPath, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Ensure makes repoPath a valid clone of url. An existing clone is fetched
// and its origin URL reconciled; a directory that is not a repository is
// removed and recloned. A fresh clone is left on the newest release tag, or
// on the default branch when the repository has none.
func (s *Service) Ensure(ctx context.Context, app, url, repoPath string) error {
	mu := s.lock(repoPath)
	mu.Lock()
	defer mu.Unlock()

	s.sink.Info(app, fmt.Sprintf("Syncing %s from %s", app, url))

	if _, err := os.Stat(repoPath); err == nil {
		repo, err := git.PlainOpen(repoPath)
		if err == nil {
			return s.refresh(ctx, app, url, repo)
		}
		s.log.Warn("directory is not a valid repository, recloning",
			zap.String("path", repoPath), zap.Error(err))
		if err := os.RemoveAll(repoPath); err != nil {
			return fmt.Errorf("failed to remove invalid repository at %s: %w", repoPath, err)
		}
	}

	return s.clone(ctx, app, url, repoPath)
}

// refresh reconciles the origin URL and fetches branches and tags.
func (s *Service) refresh(ctx context.Context, app, url string, repo *git.Repository) error {
	cfg, err := repo.Config()
	if err != nil {
		return fmt.Errorf("failed to read repository config: %w", err)
	}
	origin, ok := cfg.Remotes[git.DefaultRemoteName]
	if !ok || len(origin.URLs) == 0 || origin.URLs[0] != url {
		s.sink.Info(app, fmt.Sprintf("Updating remote origin URL to %s", url))
		if origin == nil {
			origin = &gitconfig.RemoteConfig{Name: git.DefaultRemoteName}
			cfg.Remotes[git.DefaultRemoteName] = origin
		}
		origin.URLs = []string{url}
		if err := repo.Storer.SetConfig(cfg); err != nil {
			return fmt.Errorf("failed to update remote url: %w", err)
		}
	}

	auth, err := authFor(url)
	if err != nil {
		return err
	}

	s.sink.Info(app, "Fetching updates for existing repository...")
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		RefSpecs:   fetchAllRefSpecs,
		Prune:      true,
		Force:      true,
		Tags:       git.AllTags,
		Auth:       auth,
		Progress:   s.transferRelay(app, "Fetching objects"),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch updates: %w", err)
	}
	s.sink.Info(app, "Fetch complete.")
	return nil
}

func (s *Service) clone(ctx context.Context, app, url, repoPath string) error {
	auth, err := authFor(url)
	if err != nil {
		return err
	}

	s.sink.Info(app, fmt.Sprintf("Cloning %s into %s", url, repoPath))
	repo, err := git.PlainCloneContext(ctx, repoPath, false, &git.CloneOptions{
		URL:      url,
		Auth:     auth,
		Tags:     git.AllTags,
		Progress: s.transferRelay(app, "Receiving objects"),
	})
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", url, err)
	}

	s.sink.Info(app, "Clone successful. Checking for latest version tag...")

	tags, err := tagCommits(repo)
	if err != nil {
		return err
	}
	sorted := SortTags(tagNames(tags))
	if len(sorted) == 0 {
		s.sink.Info(app, "No tags found. Repository will remain on default branch.")
		return s.updateSubmodules(ctx, app, repo)
	}

	latest := sorted[0]
	s.sink.Info(app, fmt.Sprintf("Latest tag found: %s. Attempting checkout.", latest))
	if err := s.checkoutDetached(repo, tags[latest]); err != nil {
		return fmt.Errorf("failed to checkout tag %s: %w", latest, err)
	}
	s.sink.Info(app, fmt.Sprintf("Successfully checked out tag %s.", latest))
	return s.updateSubmodules(ctx, app, repo)
}

// Checkout fetches one release tag and force-checks it out with a detached
// HEAD, then cascades into submodules. It returns the commit the tag
// resolved to.
func (s *Service) Checkout(ctx context.Context, app, repoPath, tag string) (plumbing.Hash, error) {
	mu := s.lock(repoPath)
	mu.Lock()
	defer mu.Unlock()

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to open repository at %s: %w", repoPath, err)
	}

	if err := s.fetchTag(ctx, app, repo, tag); err != nil {
		return plumbing.ZeroHash, err
	}

	hash, err := resolveTag(repo, tag)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if err := s.checkoutDetached(repo, hash); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to checkout tag %s: %w", tag, err)
	}
	s.sink.Info(app, fmt.Sprintf("Successfully checked out tag %s (%s).", tag, hash))
	return hash, s.updateSubmodules(ctx, app, repo)
}

// fetchTag fetches one tag ref from origin. Repositories without an origin
// remote (local fixtures) skip the fetch and rely on what is already there.
func (s *Service) fetchTag(ctx context.Context, app string, repo *git.Repository, tag string) error {
	remote, err := repo.Remote(git.DefaultRemoteName)
	if errors.Is(err, git.ErrRemoteNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find remote origin: %w", err)
	}

	url := ""
	if urls := remote.Config().URLs; len(urls) > 0 {
		url = urls[0]
	}
	auth, err := authFor(url)
	if err != nil {
		return err
	}

	spec := gitconfig.RefSpec(fmt.Sprintf("+refs/tags/%s:refs/tags/%s", tag, tag))
	s.sink.Info(app, fmt.Sprintf("Fetching refspec %s", spec))
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		RefSpecs:   []gitconfig.RefSpec{spec},
		Force:      true,
		Auth:       auth,
		Progress:   s.transferRelay(app, "Fetching objects for tag"),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch tag %s: %w", tag, err)
	}
	return nil
}

func (s *Service) checkoutDetached(repo *git.Repository, commit plumbing.Hash) error {
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	return wt.Checkout(&git.CheckoutOptions{Hash: commit, Force: true})
}

func (s *Service) updateSubmodules(ctx context.Context, app string, repo *git.Repository) error {
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	subs, err := wt.Submodules()
	if err != nil {
		return fmt.Errorf("failed to list submodules: %w", err)
	}
	for _, sub := range subs {
		s.sink.Info(app, fmt.Sprintf("Updating submodule %s", sub.Config().Name))
		err := sub.UpdateContext(ctx, &git.SubmoduleUpdateOptions{
			Init:              true,
			RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to update submodule %s: %w", sub.Config().Name, err)
		}
	}
	return nil
}

// transferRelay adapts server-side transfer progress lines to throttled sink
// updates.
func (s *Service) transferRelay(app, prefix string) *sidebandRelay {
	return &sidebandRelay{
		sink:    s.sink,
		app:     app,
		prefix:  prefix,
		limiter: rate.NewLimiter(rate.Limit(4), 1),
	}
}

type sidebandRelay struct {
	sink    events.Sink
	app     string
	prefix  string
	limiter *rate.Limiter
}

func (w *sidebandRelay) Write(p []byte) (int, error) {
	line := strings.TrimSpace(string(p))
	if line != "" && w.limiter.Allow() {
		w.sink.Update(w.app, fmt.Sprintf("%s: %s", w.prefix, line))
	}
	return len(p), nil
}
