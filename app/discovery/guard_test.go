package discovery

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestRunGuardInProcess(t *testing.T) {
	guard := NewRunGuard("")

	release, err := guard.Acquire()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := guard.Acquire(); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Expected ErrRunInProgress, got %v", err)
	}

	release()

	release, err = guard.Acquire()
	if err != nil {
		t.Fatalf("Expected guard to be free after release, got %v", err)
	}
	release()
}

func TestRunGuardLockFile(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "discover.lock")

	first := NewRunGuard(lockPath)
	second := NewRunGuard(lockPath)

	release, err := first.Acquire()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := second.Acquire(); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Expected lock file to block a second guard, got %v", err)
	}

	release()

	release, err = second.Acquire()
	if err != nil {
		t.Fatalf("Expected lock file to be free after release, got %v", err)
	}
	release()
}
