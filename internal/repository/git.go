package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func cloneRepo(ctx context.Context, url, dir, branch string) error {
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           url,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	})
	return err
}

func initRepo(dir string) error {
	_, err := git.PlainInit(dir, false)
	return err
}

// PullResult is the structured outcome of pull — it never raises, per the
// Registry's failure model.
type PullResult struct {
	OK    bool
	Error string
}

// Pull fails if the alias is untracked or has no remote; otherwise
// updates the working tree and stamps last_pull.
func (r *Registry) Pull(ctx context.Context, alias string) PullResult {
	b, err := r.Get(alias)
	if err != nil {
		return PullResult{Error: err.Error()}
	}
	if b.RemoteURL == "" {
		return PullResult{Error: "repository is untracked or has no remote"}
	}

	repo, err := git.PlainOpen(b.WorkingDir)
	if err != nil {
		return PullResult{Error: fmt.Sprintf("open repository: %v", err)}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return PullResult{Error: fmt.Sprintf("open worktree: %v", err)}
	}

	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return PullResult{Error: fmt.Sprintf("pull: %v", err)}
	}

	r.touchLastPull(alias, time.Now())
	return PullResult{OK: true}
}

// CommitResult is the structured outcome of commit_and_push.
type CommitResult struct {
	OK         bool
	Commit     string
	Noop       bool
	Remoteless bool
	Error      string
}

// CommitAndPush stages all changes, commits iff the working tree is
// dirty, and pushes if a remote exists. A missing remote is reported as
// {OK: true, Remoteless: true}, not as an error.
func (r *Registry) CommitAndPush(ctx context.Context, alias, message string) CommitResult {
	b, err := r.Get(alias)
	if err != nil {
		return CommitResult{Error: err.Error()}
	}

	repo, err := git.PlainOpen(b.WorkingDir)
	if err != nil {
		return CommitResult{Error: fmt.Sprintf("open repository: %v", err)}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return CommitResult{Error: fmt.Sprintf("open worktree: %v", err)}
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return CommitResult{Error: fmt.Sprintf("stage changes: %v", err)}
	}

	status, err := wt.Status()
	if err != nil {
		return CommitResult{Error: fmt.Sprintf("status: %v", err)}
	}
	if status.IsClean() {
		return CommitResult{OK: true, Noop: true}
	}

	if message == "" {
		message = "agentcore: automated commit"
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "agentcore",
			Email: "agent@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return CommitResult{Error: fmt.Sprintf("commit: %v", err)}
	}
	commitID := hash.String()

	if _, err := repo.Remote("origin"); err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return CommitResult{OK: true, Commit: commitID, Remoteless: true}
		}
		return CommitResult{OK: true, Commit: commitID, Error: fmt.Sprintf("check remote: %v", err)}
	}

	if err := repo.PushContext(ctx, &git.PushOptions{RemoteName: "origin"}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return CommitResult{OK: true, Commit: commitID, Error: fmt.Sprintf("push: %v", err)}
	}

	return CommitResult{OK: true, Commit: commitID}
}
