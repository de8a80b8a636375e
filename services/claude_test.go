package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"

	"go.uber.org/zap"

	"paper-tracker/config"
)

func newTestCLI(retries int) *ClaudeCLI {
	return NewClaudeCLI(&config.Config{
		ClaudeBinary:         "claude",
		ClaudeTimeoutSeconds: 5,
		ClaudeMaxRetries:     retries,
	}, zap.NewNop())
}

func setHelperCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("CLAUDE_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("CLAUDE_HELPER_MODE") {
	case "success":
		fmt.Println("한국어 요약 결과")
		os.Exit(0)
	case "echo":
		io.Copy(os.Stdout, os.Stdin)
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "usage limit reached")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

func TestSummarizeAbstractReturnsOutput(t *testing.T) {
	setHelperCommand(t, "success")

	cli := newTestCLI(1)
	result := cli.SummarizeAbstract(context.Background(), "We study diffusion models.")
	if result != "한국어 요약 결과" {
		t.Fatalf("unexpected summary: %q", result)
	}
}

func TestSummarizeAbstractSkipsEmptyInput(t *testing.T) {
	// The CLI must not be invoked at all for an empty abstract.
	original := commandContext
	called := false
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		called = true
		return exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
	}
	t.Cleanup(func() { commandContext = original })

	cli := newTestCLI(1)
	if result := cli.SummarizeAbstract(context.Background(), ""); result != "" {
		t.Fatalf("expected empty result, got %q", result)
	}
	if called {
		t.Fatal("expected no CLI invocation for empty abstract")
	}
}

func TestSummarizeAbstractIncludesAbstractInPrompt(t *testing.T) {
	setHelperCommand(t, "echo")

	cli := newTestCLI(1)
	result := cli.SummarizeAbstract(context.Background(), "UNIQUE-ABSTRACT-MARKER")
	if !strings.Contains(result, "UNIQUE-ABSTRACT-MARKER") {
		t.Fatalf("expected abstract in prompt, got %q", result)
	}
	if !strings.Contains(result, "한국어") {
		t.Fatalf("expected Korean instructions in prompt, got %q", result)
	}
}

func TestAnalyzePaperIncludesPaperContext(t *testing.T) {
	setHelperCommand(t, "echo")

	cli := newTestCLI(1)
	result := cli.AnalyzePaper(context.Background(),
		"2306.02437", "Diffusion Policies", "An abstract.", "https://arxiv.org/pdf/2306.02437.pdf")

	for _, want := range []string{"2306.02437", "Diffusion Policies", "An abstract.", "https://arxiv.org/pdf/2306.02437.pdf", "### 한줄 요약"} {
		if !strings.Contains(result, want) {
			t.Fatalf("expected prompt to contain %q", want)
		}
	}
}

func TestRunPromptReturnsEmptyAfterFailures(t *testing.T) {
	setHelperCommand(t, "failure")

	cli := newTestCLI(1)
	if result := cli.Complete(context.Background(), "anything"); result != "" {
		t.Fatalf("expected empty result after exhausted retries, got %q", result)
	}
}
