package gitinfo

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func gitAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, string(out))
	}
	return string(out)
}

func initRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")
	runGit(t, dir, "config", "commit.gpgsign", "false")
	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("hello object\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	runGit(t, dir, "add", "file.txt")
	runGit(t, dir, "commit", "-m", "initial import")
	head := strings.TrimSpace(runGit(t, dir, "rev-parse", "HEAD"))
	return dir, head
}

func writeHead(t *testing.T, gitDir, head string) {
	t.Helper()
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte(head), 0o644); err != nil {
		t.Fatalf("write HEAD: %v", err)
	}
}

func TestBranchFromHead(t *testing.T) {
	dir := t.TempDir()
	writeHead(t, filepath.Join(dir, ".git"), "ref: refs/heads/feature/x\n")
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if got := Branch(sub); got != "feature/x" {
		t.Fatalf("Branch = %q, want %q", got, "feature/x")
	}

	writeHead(t, filepath.Join(dir, ".git"), "0123456789abcdef0123456789abcdef01234567\n")
	if got := Branch(dir); got != "detached:0123456" {
		t.Fatalf("Branch = %q, want %q", got, "detached:0123456")
	}
}

func TestBranchFollowsGitdirFile(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "store")
	writeHead(t, real, "ref: refs/heads/wt\n")
	work := filepath.Join(dir, "work")
	if err := os.MkdirAll(work, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(work, ".git"), []byte("gitdir: ../store\n"), 0o644); err != nil {
		t.Fatalf("write .git: %v", err)
	}
	if got := Branch(filepath.Join(work, "missing-is-fine")); got != "" {
		t.Fatalf("Branch of a missing path = %q, want empty", got)
	}
	if got := Branch(work); got != "wt" {
		t.Fatalf("Branch = %q, want %q", got, "wt")
	}
}

func TestBranchOfNewRepo(t *testing.T) {
	if !gitAvailable() {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	runGit(t, dir, "init")
	if got := Branch(dir); got == "" {
		t.Fatalf("Branch empty")
	}
}

func TestObjectExists(t *testing.T) {
	if !gitAvailable() {
		t.Skip("git not available")
	}
	dir, head := initRepo(t)

	if !ObjectExists(dir, head) {
		t.Fatalf("ObjectExists(%s) = false, want true", head)
	}
	if !ObjectExists(dir, head[:7]) {
		t.Fatalf("ObjectExists(short) = false, want true")
	}
	if ObjectExists(dir, "deadbeefdeadbeef") {
		t.Fatalf("ObjectExists(deadbeef...) = true, want false")
	}
	if ObjectExists(dir, "--all") {
		t.Fatalf("ObjectExists accepted an option")
	}
}

func TestShow(t *testing.T) {
	if !gitAvailable() {
		t.Skip("git not available")
	}
	dir, head := initRepo(t)

	out, err := Show(dir, head)
	if err != nil {
		t.Fatalf("Show error: %v", err)
	}
	if !strings.Contains(out, "initial import") {
		t.Fatalf("Show output missing commit message:\n%s", out)
	}
	if !strings.Contains(out, "+hello object") {
		t.Fatalf("Show output missing diff body:\n%s", out)
	}
	if _, err := Show(dir, "deadbeefdeadbeef"); err == nil {
		t.Fatalf("Show(unknown) error = nil")
	}
}

func TestNotRepo(t *testing.T) {
	dir := t.TempDir()
	if got := Branch(dir); got != "" {
		t.Fatalf("Branch = %q, want empty", got)
	}
}
