package execx

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRun_Success(t *testing.T) {
	out, err := Run(context.Background(), Options{
		Argv:  []string{"echo", "hello world"},
		Quiet: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != "hello world" {
		t.Errorf("Run() = %q, want %q", out, "hello world")
	}
}

func TestRun_NonZeroExitReturnsStructuredError(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Argv:  []string{"sh", "-c", "echo boom >&2; exit 3"},
		Quiet: true,
	})
	if err == nil {
		t.Fatal("Run() expected error, got nil")
	}
	var execErr *Error
	if !errors.As(err, &execErr) {
		t.Fatalf("Run() error is not *execx.Error: %v", err)
	}
	if execErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", execErr.ExitCode)
	}
	if !strings.Contains(execErr.Output, "boom") {
		t.Errorf("Output = %q, want to contain %q", execErr.Output, "boom")
	}
}

func TestRun_RetriesOnFailureThenSucceeds(t *testing.T) {
	// sh -c with a counter file: fail the first attempt, succeed the second.
	dir := t.TempDir()
	marker := dir + "/seen"
	script := "test -f " + marker + " && echo again || { touch " + marker + "; exit 1; }"

	out, err := Run(context.Background(), Options{
		Argv:    []string{"sh", "-c", script},
		Quiet:   true,
		Retries: 1,
	})
	if err != nil {
		t.Fatalf("Run() error = %v, want success on retry", err)
	}
	if out != "again" {
		t.Errorf("Run() = %q, want %q", out, "again")
	}
}

func TestRun_ExhaustsRetriesAndReturnsLastError(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Argv:    []string{"sh", "-c", "exit 1"},
		Quiet:   true,
		Retries: 2,
	})
	if err == nil {
		t.Fatal("Run() expected error after exhausting retries, got nil")
	}
}

func TestRun_EmptyArgvIsRejected(t *testing.T) {
	if _, err := Run(context.Background(), Options{Quiet: true}); err == nil {
		t.Fatal("Run() expected error for empty argv, got nil")
	}
}

func TestRun_EnvOverlayReplacesEnvironment(t *testing.T) {
	out, err := Run(context.Background(), Options{
		Argv:  []string{"sh", "-c", "echo $FOO"},
		Env:   []string{"FOO=bar"},
		Quiet: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != "bar" {
		t.Errorf("Run() = %q, want %q", out, "bar")
	}
}
