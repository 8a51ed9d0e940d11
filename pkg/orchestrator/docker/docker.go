// Package docker implements the container orchestrator adapter against
// a local Docker daemon, selected by ORCH_KIND=local.
package docker

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/codeready-toolchain/botlifecycle/pkg/orchestrator"
)

// Backend talks to a Docker daemon via the docker/docker/client SDK, the
// same library testcontainers-go uses underneath — promoted here from an
// indirect to a direct dependency since this is the one place in the repo
// that exercises it directly.
type Backend struct {
	cli *client.Client
}

// New connects to the Docker daemon using the standard DOCKER_HOST /
// DOCKER_* environment variables.
func New() (*Backend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect to docker daemon: %w", err)
	}
	return &Backend{cli: cli}, nil
}

// Create builds a container.Config/HostConfig from spec, injecting the
// worker contract's bootstrap environment variables.
func (b *Backend) Create(ctx context.Context, spec orchestrator.Spec) (string, error) {
	env := []string{
		"SESSION_UID=" + spec.SessionUID,
		"MEETING_ID=" + spec.MeetingID,
		"CALLBACK_BASE_URL=" + spec.CallbackBaseURL,
		"PLATFORM=" + spec.Platform,
		"NATIVE_MEETING_ID=" + spec.NativeMeetingID,
		"MEETING_URL=" + spec.MeetingURL,
	}
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}

	resp, err := b.cli.ContainerCreate(ctx,
		&container.Config{
			Image: spec.Image,
			Env:   env,
			Labels: map[string]string{
				"botlifecycle.session_uid": spec.SessionUID,
				"botlifecycle.meeting_id":  spec.MeetingID,
			},
		},
		&container.HostConfig{
			AutoRemove: false,
		},
		nil, nil,
		fmt.Sprintf("blm-bot-%s", spec.SessionUID),
	)
	if err != nil {
		return "", fmt.Errorf("create worker container: %w", err)
	}
	return resp.ID, nil
}

// Start runs a previously created container.
func (b *Backend) Start(ctx context.Context, containerID string) error {
	if err := b.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return fmt.Errorf("start worker container %s: %w", containerID, err)
	}
	return nil
}

// Stop issues a graceful stop, letting the daemon SIGKILL after grace.
func (b *Backend) Stop(ctx context.Context, containerID string, grace time.Duration) error {
	seconds := int(grace.Seconds())
	if err := b.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &seconds}); err != nil {
		return fmt.Errorf("stop worker container %s: %w", containerID, err)
	}
	return nil
}

// Inspect reports whether containerID is currently running.
func (b *Backend) Inspect(ctx context.Context, containerID string) (bool, error) {
	info, err := b.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return false, fmt.Errorf("inspect worker container %s: %w", containerID, err)
	}
	return info.State != nil && info.State.Running, nil
}

// WaitExit blocks until containerID stops running or ctx is cancelled.
func (b *Backend) WaitExit(ctx context.Context, containerID string) (orchestrator.ExitResult, error) {
	statusCh, errCh := b.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return orchestrator.ExitResult{}, fmt.Errorf("wait worker container %s: %w", containerID, err)
		}
		return orchestrator.ExitResult{}, nil
	case status := <-statusCh:
		var waitErr error
		if status.Error != nil {
			waitErr = fmt.Errorf("worker container %s wait error: %s", containerID, status.Error.Message)
		}
		return orchestrator.ExitResult{ExitCode: status.StatusCode, Err: waitErr}, nil
	case <-ctx.Done():
		return orchestrator.ExitResult{}, ctx.Err()
	}
}
