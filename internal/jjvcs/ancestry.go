package jjvcs

import (
	"errors"
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ancestryWalker answers merge-detection and ancestor-set questions
// over the commit graph stored in a jj workspace's backing git repo,
// the same way the teacher opens a repository directly with go-git
// instead of shelling out for every rev-parse/for-each-ref query.
type ancestryWalker struct {
	repo *git.Repository
}

func newAncestryWalker(gitDir string) (*ancestryWalker, error) {
	repo, err := git.PlainOpen(gitDir)
	if err != nil {
		return nil, fmt.Errorf("open jj git backend at %s: %w", gitDir, err)
	}
	return &ancestryWalker{repo: repo}, nil
}

// hasMergeBetween reports whether any commit between trunkHash
// (exclusive) and headHash (inclusive) has more than one parent.
func (w *ancestryWalker) hasMergeBetween(trunkHash, headHash string) (bool, error) {
	trunk := plumbing.NewHash(trunkHash)
	head := plumbing.NewHash(headHash)
	if head.IsZero() {
		return false, errors.New("empty head commit hash")
	}

	visited := make(map[plumbing.Hash]bool)
	stack := []plumbing.Hash{head}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] || cur == trunk {
			continue
		}
		visited[cur] = true

		commit, err := w.repo.CommitObject(cur)
		if err != nil {
			return false, fmt.Errorf("load commit %s: %w", cur, err)
		}
		if len(commit.ParentHashes) > 1 {
			return true, nil
		}
		for _, p := range commit.ParentHashes {
			if !visited[p] {
				stack = append(stack, p)
			}
		}
	}
	return false, nil
}

// ancestorCommitSet returns the set of commit hashes (as hex strings)
// reachable by walking parents from headHash, stopping at roots. Used
// to decide which other candidate bookmarks are ancestors of a given
// bookmark's commit.
func (w *ancestryWalker) ancestorCommitSet(headHash string) (map[string]bool, error) {
	head := plumbing.NewHash(headHash)
	if head.IsZero() {
		return nil, errors.New("empty head commit hash")
	}
	out := make(map[string]bool)
	visited := make(map[plumbing.Hash]bool)
	stack := []plumbing.Hash{head}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		out[cur.String()] = true

		commit, err := w.repo.CommitObject(cur)
		if err != nil {
			return out, nil // best-effort: stop at the edge of the available history
		}
		for _, p := range commit.ParentHashes {
			if !visited[p] {
				stack = append(stack, p)
			}
		}
	}
	delete(out, head.String())
	return out, nil
}
