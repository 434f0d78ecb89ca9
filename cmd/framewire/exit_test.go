package main

import (
	"errors"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitErrHandler_NilError(t *testing.T) {
	// Should not panic or exit on nil error
	exitErrHandler(nil, nil)
}

func TestExitErrHandler_PreservesExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"success", cli.Exit("", 0), 0},
		{"script error", cli.Exit("primary script failed", 1), 1},
		{"setup error", cli.Exit("invalid config", 2), 2},
		{"reported errors", cli.Exit("", 3), 3},
		{"wrapped", errors.Join(errors.New("context"), cli.Exit("inner", 42)), 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var exitCoder cli.ExitCoder
			if !errors.As(tt.err, &exitCoder) {
				t.Fatal("error should be cli.ExitCoder")
			}
			if exitCoder.ExitCode() != tt.code {
				t.Errorf("ExitCode() = %d, want %d", exitCoder.ExitCode(), tt.code)
			}
		})
	}
}

func TestExitErrHandler_MessageSuppression(t *testing.T) {
	msg := cli.Exit("", 0).Error()
	if msg != "" && msg != "exit status 0" {
		t.Errorf("Expected empty or 'exit status 0', got %q", msg)
	}
}

func TestExitErrHandler_RegularError(t *testing.T) {
	var exitCoder cli.ExitCoder
	if errors.As(errors.New("regular error"), &exitCoder) {
		t.Fatal("regular error should not be cli.ExitCoder")
	}
}
