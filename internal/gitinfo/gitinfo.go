// Package gitinfo answers the few questions the pager asks git: the
// current branch, whether a word names an object, and what that object
// looks like.
package gitinfo

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kobzarvs/kit/internal/logger"
)

// Branch names the checked out branch of the repository containing path,
// "detached:<short id>" for a detached HEAD, or "" outside a repository.
func Branch(path string) string {
	gitDir, err := locate(path)
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return ""
	}
	head, _, _ := strings.Cut(string(data), "\n")
	head = strings.TrimSpace(head)
	if ref, ok := strings.CutPrefix(head, "ref:"); ok {
		return strings.TrimPrefix(strings.TrimSpace(ref), "refs/heads/")
	}
	if len(head) >= 7 {
		return "detached:" + head[:7]
	}
	return ""
}

// ObjectExists reports whether git resolves obj from dir.
func ObjectExists(dir, obj string) bool {
	if !plausible(obj) {
		return false
	}
	_, err := git(dir, "show", "-s", "--pretty=oneline", obj, "--")
	return err == nil
}

// Show returns obj as git show prints it.
func Show(dir, obj string) (string, error) {
	if !plausible(obj) {
		return "", fmt.Errorf("invalid object: %q", obj)
	}
	out, err := git(dir, "show", obj, "--")
	if err != nil {
		logger.Warn("git show failed", "object", obj, "error", err)
		return "", err
	}
	return out, nil
}

func plausible(obj string) bool {
	return obj != "" && !strings.HasPrefix(obj, "-")
}

// git runs one git command. A failure carries git's own message when it
// printed one.
func git(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return "", errors.New(msg)
		}
		return "", err
	}
	return string(out), nil
}

// locate walks up from path to the repository's git directory, following
// "gitdir:" files used by worktrees and submodules.
func locate(path string) (string, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(dir); err != nil {
		return "", err
	} else if !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		candidate := filepath.Join(dir, ".git")
		info, err := os.Stat(candidate)
		switch {
		case err != nil:
		case info.IsDir():
			return candidate, nil
		case info.Mode().IsRegular():
			data, err := os.ReadFile(candidate)
			if err != nil {
				return "", err
			}
			if target, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "gitdir:"); ok {
				target = strings.TrimSpace(target)
				if !filepath.IsAbs(target) {
					target = filepath.Join(dir, target)
				}
				return target, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("not a git repository")
		}
		dir = parent
	}
}
