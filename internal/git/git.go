// Package git runs the git operations pri's publish and packages commands
// need, through the shell executor.
package git

import (
	"context"
	"strings"

	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/shell"
)

// Client runs git in a working directory.
type Client struct {
	sh  shell.Executor
	dir string
}

// New creates a client for the repository at dir.
func New(sh shell.Executor, dir string) *Client {
	return &Client{sh: sh, dir: dir}
}

// In returns a client for another directory, such as a submodule.
func (c *Client) In(dir string) *Client {
	return &Client{sh: c.sh, dir: dir}
}

// Dir returns the working directory.
func (c *Client) Dir() string {
	return c.dir
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = shell.Quote(arg)
	}
	return c.sh.Exec(ctx, "git "+strings.Join(quoted, " "), shell.Options{Dir: c.dir})
}

// IsWorkingTreeClean reports whether there is nothing to commit.
func (c *Client) IsWorkingTreeClean(ctx context.Context) (bool, error) {
	out, err := c.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

// AddAllAndCommit stages every change and commits it with message.
func (c *Client) AddAllAndCommit(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return prierrors.NewValidationError(prierrors.ErrCodeValidationFailed, "commit message is required")
	}
	if _, err := c.run(ctx, "add", "-A"); err != nil {
		return err
	}
	_, err := c.run(ctx, "commit", "-m", message)
	return err
}

// Push pushes the current branch. With a branch name it pushes to that
// branch on origin.
func (c *Client) Push(ctx context.Context, branch string) error {
	args := []string{"push"}
	if branch != "" {
		args = append(args, "origin", branch)
	}
	_, err := c.run(ctx, args...)
	return err
}

// PushTags pushes every tag to origin.
func (c *Client) PushTags(ctx context.Context) error {
	_, err := c.run(ctx, "push", "origin", "--tags")
	return err
}

// CurrentBranch returns the checked out branch name.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Tag creates a lightweight tag at HEAD.
func (c *Client) Tag(ctx context.Context, name string) error {
	_, err := c.run(ctx, "tag", name)
	return err
}

// SubmodulePaths lists the registered submodule paths, relative to the
// repository root.
func (c *Client) SubmodulePaths(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "submodule", "status")
	if err != nil {
		return nil, err
	}
	return ParseSubmoduleStatus(out), nil
}

// ParseSubmoduleStatus extracts the path column from `git submodule status`
// output. Each line is "<flag><sha> <path> (<describe>)".
func ParseSubmoduleStatus(out string) []string {
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		paths = append(paths, fields[1])
	}
	return paths
}
