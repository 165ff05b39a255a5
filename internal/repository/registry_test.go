package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/joshjon/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	r, err := NewRegistry(filepath.Join(dir, "repos"), filepath.Join(dir, "repositories.json"), log.NewLogger())
	require.NoError(t, err)
	return r
}

func initLocalRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0o644))
	return dir
}

func TestConnectLocal_ThenList(t *testing.T) {
	r := newTestRegistry(t)
	dir := initLocalRepo(t)

	binding, err := r.ConnectLocal(context.Background(), dir, "alpha", false)
	require.NoError(t, err)
	assert.Equal(t, "alpha", binding.Alias)
	assert.Equal(t, KindLocal, binding.Kind)

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "alpha", list[0].Alias)
}

func TestConnectLocal_DuplicateAliasFails(t *testing.T) {
	r := newTestRegistry(t)
	dir := initLocalRepo(t)

	_, err := r.ConnectLocal(context.Background(), dir, "alpha", false)
	require.NoError(t, err)

	_, err = r.ConnectLocal(context.Background(), dir, "alpha", false)
	assert.Error(t, err)
}

func TestDisconnect_ThenReconnectSameAliasSucceeds(t *testing.T) {
	r := newTestRegistry(t)
	dir := initLocalRepo(t)

	_, err := r.ConnectLocal(context.Background(), dir, "alpha", false)
	require.NoError(t, err)
	require.NoError(t, r.Disconnect("alpha", false))

	_, err = r.ConnectLocal(context.Background(), dir, "alpha", false)
	assert.NoError(t, err, "round-trip connect/disconnect/connect must succeed")
}

func TestDisconnect_UnknownAlias(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Disconnect("ghost", false)
	assert.Error(t, err)
}

func TestWorkingDir_UnknownAlias(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.WorkingDir("ghost")
	assert.Error(t, err)
}

func TestSetActive(t *testing.T) {
	r := newTestRegistry(t)
	dir := initLocalRepo(t)
	_, err := r.ConnectLocal(context.Background(), dir, "alpha", false)
	require.NoError(t, err)

	require.NoError(t, r.SetActive("alpha", false))
	b, err := r.Get("alpha")
	require.NoError(t, err)
	assert.False(t, b.Active)
}

func TestCommitAndPush_NoopWhenClean(t *testing.T) {
	r := newTestRegistry(t)
	dir := initLocalRepo(t)
	_, err := r.ConnectLocal(context.Background(), dir, "alpha", false)
	require.NoError(t, err)

	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(".")
	require.NoError(t, err)

	result := r.CommitAndPush(context.Background(), "alpha", "initial commit")
	require.True(t, result.OK)
	require.NotEmpty(t, result.Commit)

	result = r.CommitAndPush(context.Background(), "alpha", "no changes")
	assert.True(t, result.OK)
	assert.True(t, result.Noop)
}

func TestCommitAndPush_RemotelessIsNotAnError(t *testing.T) {
	r := newTestRegistry(t)
	dir := initLocalRepo(t)
	_, err := r.ConnectLocal(context.Background(), dir, "alpha", false)
	require.NoError(t, err)

	written, err := r.MaterializeFiles("alpha", map[string]string{"main.go": "package main\n"})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, written)

	result := r.CommitAndPush(context.Background(), "alpha", "agent: add main.go")
	assert.True(t, result.OK)
	assert.True(t, result.Remoteless)
	assert.Empty(t, result.Error)
}

func TestPull_FailsWhenUntracked(t *testing.T) {
	r := newTestRegistry(t)
	dir := initLocalRepo(t)
	_, err := r.ConnectLocal(context.Background(), dir, "alpha", false)
	require.NoError(t, err)

	result := r.Pull(context.Background(), "alpha")
	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Error)
}

func TestScan_FindsMarkersAndMissingReadme(t *testing.T) {
	r := newTestRegistry(t)
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n// TODO: fix this\nfunc main() {}\n"), 0o644))

	_, err = r.ConnectLocal(context.Background(), dir, "alpha", false)
	require.NoError(t, err)

	result, err := r.Scan("alpha")
	require.NoError(t, err)
	require.Len(t, result.Tasks, 1)
	assert.Contains(t, result.Tasks[0], "main.go:2:")
	assert.Contains(t, result.Issues, "missing README")
}

func TestScan_SkipsVendorDirectories(t *testing.T) {
	r := newTestRegistry(t)
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "lib.go"), []byte("// TODO: should be skipped\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi"), 0o644))

	_, err = r.ConnectLocal(context.Background(), dir, "alpha", false)
	require.NoError(t, err)

	result, err := r.Scan("alpha")
	require.NoError(t, err)
	assert.Empty(t, result.Tasks)
}

func TestTree_RespectsMaxDepth(t *testing.T) {
	r := newTestRegistry(t)
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b", "deep.go"), []byte("x"), 0o644))

	_, err = r.ConnectLocal(context.Background(), dir, "alpha", false)
	require.NoError(t, err)

	tree, err := r.Tree("alpha", 1)
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	assert.Empty(t, tree.Children[0].Children, "depth 1 must not descend into a/b")
}

func TestSidecarPersistence_SurvivesReload(t *testing.T) {
	dir := t.TempDir()
	sidecarPath := filepath.Join(dir, "repositories.json")
	reposDir := filepath.Join(dir, "repos")

	r1, err := NewRegistry(reposDir, sidecarPath, log.NewLogger())
	require.NoError(t, err)
	localDir := initLocalRepo(t)
	_, err = r1.ConnectLocal(context.Background(), localDir, "alpha", false)
	require.NoError(t, err)

	r2, err := NewRegistry(reposDir, sidecarPath, log.NewLogger())
	require.NoError(t, err)
	b, err := r2.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, localDir, b.WorkingDir)
}
