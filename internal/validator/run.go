package validator

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/joshjon/kit/log"
)

// ErrTimeout is returned when the test command does not finish within the
// configured timeout; the RunResult carrying it has ExitCode 124.
var ErrTimeout = errors.New("validator: test run timed out")

const timeoutExitCode = 124

// RunResult is the outcome of materializing files and running the
// project's test command inside a disposable container.
type RunResult struct {
	OK       bool
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// Runner materializes extracted files into a fresh temporary workspace and
// executes the project's declared test command inside a disposable Docker
// container — grounded on the same docker/docker client SDK calls the
// teacher's DockerRunner uses to run the primary agent, generalized here
// to bind-mount the generated workspace instead of passing task metadata
// as environment variables.
type Runner struct {
	client *client.Client
	logger log.Logger
	image  string
}

// NewRunner constructs a Runner against the local Docker daemon. image is
// the base image the test command runs inside (e.g. "golang:1.25",
// "python:3.12-slim"); it is never built or pulled here, so creating the
// container fails unless the image is already present on the Docker host.
func NewRunner(image string, logger log.Logger) (*Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("validator: create docker client: %w", err)
	}
	return &Runner{client: cli, image: image, logger: logger.With("component", "validator")}, nil
}

// Close releases the underlying Docker client.
func (r *Runner) Close() error {
	return r.client.Close()
}

// Run materializes files into a new temp directory exactly as given, then
// executes testCommand inside the configured image with the given
// timeout. The workspace is deleted on every exit path; Run never mutates
// the caller's repository.
func (r *Runner) Run(ctx context.Context, files Files, testCommand string, timeout time.Duration) RunResult {
	workDir, err := os.MkdirTemp("", "validator-workspace-*")
	if err != nil {
		return RunResult{Err: fmt.Errorf("validator: create workspace: %w", err)}
	}
	defer os.RemoveAll(workDir)

	if err := materialize(workDir, files); err != nil {
		return RunResult{Err: fmt.Errorf("validator: materialize workspace: %w", err)}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return r.runInContainer(runCtx, workDir, testCommand)
}

// materialize writes every extracted file into dir, creating parent
// directories as needed.
func materialize(dir string, files Files) error {
	for _, name := range files.Order {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(full, []byte(files.Contents[name]), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runInContainer(ctx context.Context, hostDir, testCommand string) RunResult {
	resp, err := r.client.ContainerCreate(ctx,
		&container.Config{
			Image:      r.image,
			WorkingDir: "/workspace",
			Cmd:        []string{"sh", "-c", testCommand},
		},
		&container.HostConfig{
			Binds:      []string{hostDir + ":/workspace"},
			AutoRemove: false,
		},
		nil, nil, "",
	)
	if err != nil {
		return RunResult{Err: fmt.Errorf("validator: create container: %w", err)}
	}
	containerID := resp.ID

	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			r.logger.Warn("failed to remove validator container", "container_id", containerID, "error", err.Error())
		}
	}()

	if err := r.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return RunResult{Err: fmt.Errorf("validator: start container: %w", err)}
	}

	statusCh, errCh := r.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if err != nil {
			return RunResult{Err: fmt.Errorf("validator: wait container: %w", err)}
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	case <-ctx.Done():
		return RunResult{ExitCode: timeoutExitCode, Err: ErrTimeout}
	}

	logReader, err := r.client.ContainerLogs(context.Background(), containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return RunResult{ExitCode: int(exitCode), Err: fmt.Errorf("validator: read logs: %w", err)}
	}
	defer logReader.Close()

	stdout, stderr := r.collectLogs(logReader)

	return RunResult{
		OK:       exitCode == 0,
		ExitCode: int(exitCode),
		Stdout:   stdout,
		Stderr:   stderr,
	}
}

func (r *Runner) collectLogs(reader io.Reader) (string, string) {
	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, reader); err != nil {
		r.logger.Warn("error demultiplexing container logs", "error", err.Error())
	}

	return collapse(&stdoutBuf), collapse(&stderrBuf)
}

func collapse(buf *bytes.Buffer) string {
	scanner := bufio.NewScanner(buf)
	var out bytes.Buffer
	for scanner.Scan() {
		out.WriteString(scanner.Text())
		out.WriteByte('\n')
	}
	return out.String()
}
