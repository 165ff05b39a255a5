package controlapi

import (
	"github.com/cohesivestack/valgo"
)

// taskRequest is the POST /task body.
type taskRequest struct {
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

func (r taskRequest) validate() error {
	v := valgo.Is(valgo.String(r.Description, "description").Not().Blank())
	if !v.Valid() {
		return v.Error()
	}
	return nil
}

// taskWithRepoRequest is the POST /task/with-repo body.
type taskWithRepoRequest struct {
	Description string `json:"description"`
	TargetRepo  string `json:"target_repo"`
	Priority    int    `json:"priority"`
}

func (r taskWithRepoRequest) validate() error {
	v := valgo.Is(valgo.String(r.Description, "description").Not().Blank()).
		Is(valgo.String(r.TargetRepo, "target_repo").Not().Blank())
	if !v.Valid() {
		return v.Error()
	}
	return nil
}

// pauseRequest is the POST /pause body.
type pauseRequest struct {
	Action string `json:"action"` // pause | resume | toggle
}

func (r pauseRequest) validate() error {
	v := valgo.Is(valgo.String(r.Action, "action").InSlice([]string{"pause", "resume", "toggle"}))
	if !v.Valid() {
		return v.Error()
	}
	return nil
}

// restartWorkerRequest is the POST /restart-worker body.
type restartWorkerRequest struct {
	WorkerID string `json:"worker_id"`
}

func (r restartWorkerRequest) validate() error {
	v := valgo.Is(valgo.String(r.WorkerID, "worker_id").Not().Blank())
	if !v.Valid() {
		return v.Error()
	}
	return nil
}

// settingsRequest is the POST /settings body. Only model_type is read; any
// other field a caller sends is ignored and is not mentioned in the
// response.
type settingsRequest struct {
	ModelType string `json:"model_type"`
}

// connectRequest is the POST /repositories/connect body.
type connectRequest struct {
	Type          string `json:"type"` // remote | local
	URL           string `json:"url"`
	Path          string `json:"path"`
	Alias         string `json:"alias"`
	Branch        string `json:"branch"`
	InitializeGit bool   `json:"initialize_git"`
}

func (r connectRequest) validate() error {
	v := valgo.Is(valgo.String(r.Alias, "alias").Not().Blank()).
		Is(valgo.String(r.Type, "type").InSlice([]string{"remote", "local"}))
	if r.Type == "remote" {
		v.Is(valgo.String(r.URL, "url").Not().Blank())
	}
	if r.Type == "local" {
		v.Is(valgo.String(r.Path, "path").Not().Blank())
	}
	if !v.Valid() {
		return v.Error()
	}
	return nil
}
