package gitsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// diffNoteLimit caps how many distinct changelog lines an upgrade preview
// collects.
const diffNoteLimit = 10

// FetchVersions refreshes tags from origin and returns the offered versions
// newest first, plus the version currently checked out. When HEAD does not
// sit on a release tag the raw commit hash is reported instead.
func (s *Service) FetchVersions(ctx context.Context, app, repoPath string) ([]string, string, error) {
	mu := s.lock(repoPath)
	mu.Lock()
	defer mu.Unlock()

	s.sink.Info(app, fmt.Sprintf("Fetching all tags for repository at %s", repoPath))

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open repository at %s: %w", repoPath, err)
	}

	if err := s.fetchAllTags(ctx, repo); err != nil {
		return nil, "", err
	}

	tags, err := tagCommits(repo)
	if err != nil {
		return nil, "", err
	}
	sorted := SortTags(tagNames(tags))

	head, err := repo.Head()
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	headHash := head.Hash()

	current := headHash.String()
	for _, tag := range sorted {
		if tags[tag] == headHash {
			current = tag
			break
		}
	}

	hashes := make(map[string]string, len(tags))
	for name, h := range tags {
		hashes[name] = h.String()
	}
	sorted = ClipToLTS(sorted, hashes, hashes[LTSTag])

	return sorted, current, nil
}

func (s *Service) fetchAllTags(ctx context.Context, repo *git.Repository) error {
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

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		RefSpecs:   []gitconfig.RefSpec{tagsRefSpec},
		Prune:      true,
		Force:      true,
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch tags: %w", err)
	}
	return nil
}

// DiffNotes collects changelog lines between HEAD and a target version:
// the first distinct non-empty message lines of commits reachable from the
// target but not from HEAD, newest first, skipping merge commits. When the
// target is HEAD itself or one of its ancestors, the target commit's own
// message lines are returned.
func (s *Service) DiffNotes(ctx context.Context, app, repoPath, targetTag string) ([]string, error) {
	mu := s.lock(repoPath)
	mu.Lock()
	defer mu.Unlock()

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", repoPath, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	if _, err := resolveTag(repo, targetTag); err != nil {
		if err := s.fetchTag(ctx, app, repo, targetTag); err != nil {
			return nil, err
		}
	}
	targetHash, err := resolveTag(repo, targetTag)
	if err != nil {
		return nil, err
	}
	target, err := repo.CommitObject(targetHash)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit for tag %s: %w", targetTag, err)
	}

	seen, err := reachableFrom(repo, head.Hash())
	if err != nil {
		return nil, err
	}

	var candidates []*object.Commit
	iter := object.NewCommitPreorderIter(target, seen, nil)
	err = iter.ForEach(func(c *object.Commit) error {
		candidates = append(candidates, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history of %s: %w", targetTag, err)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Committer.When.After(candidates[j].Committer.When)
	})

	messages := make([]string, 0, diffNoteLimit)
	unique := make(map[string]struct{})
	for _, c := range candidates {
		if c.NumParents() > 1 {
			continue
		}
		if !collectLines(c.Message, &messages, unique, diffNoteLimit) {
			break
		}
	}

	s.log.Info("collected upgrade notes",
		zap.String("app", app),
		zap.String("target", targetTag),
		zap.Int("count", len(messages)))

	if len(messages) == 0 {
		for _, line := range strings.Split(target.Message, "\n") {
			if t := strings.TrimSpace(line); t != "" {
				messages = append(messages, t)
			}
		}
	}
	return messages, nil
}

// collectLines appends the distinct non-empty trimmed lines of one message.
// It reports false once the limit is reached.
func collectLines(message string, out *[]string, unique map[string]struct{}, limit int) bool {
	for _, line := range strings.Split(message, "\n") {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if _, dup := unique[t]; dup {
			continue
		}
		unique[t] = struct{}{}
		*out = append(*out, t)
		if len(*out) >= limit {
			return false
		}
	}
	return true
}

// reachableFrom returns the set of commits reachable from start.
func reachableFrom(repo *git.Repository, start plumbing.Hash) (map[plumbing.Hash]bool, error) {
	commit, err := repo.CommitObject(start)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", start, err)
	}
	seen := make(map[plumbing.Hash]bool)
	iter := object.NewCommitPreorderIter(commit, nil, nil)
	err = iter.ForEach(func(c *object.Commit) error {
		seen[c.Hash] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history of %s: %w", start, err)
	}
	return seen, nil
}

// tagCommits maps every tag name to the commit it points at, peeling
// annotated tags.
func tagCommits(repo *git.Repository) (map[string]plumbing.Hash, error) {
	iter, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	tags := make(map[string]plumbing.Hash)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		tags[ref.Name().Short()] = peel(repo, ref.Hash())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return tags, nil
}

func tagNames(tags map[string]plumbing.Hash) []string {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	return names
}

// resolveTag returns the commit hash a tag points at.
func resolveTag(repo *git.Repository, tag string) (plumbing.Hash, error) {
	ref, err := repo.Tag(tag)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("tag %q not found: %w", tag, err)
	}
	return peel(repo, ref.Hash()), nil
}

// peel resolves an annotated tag object down to its commit; lightweight tags
// already point at one.
func peel(repo *git.Repository, h plumbing.Hash) plumbing.Hash {
	if tagObj, err := repo.TagObject(h); err == nil {
		return tagObj.Target
	}
	return h
}
