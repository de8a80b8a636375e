// Package services contains the enrichment pipeline, keyword matching
// and the Claude CLI integration.
package services

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"paper-tracker/config"
)

var commandContext = exec.CommandContext

// retryBackoff between failed CLI attempts.
const retryBackoff = 2 * time.Second

// LLM is the language model surface used by the pipeline. All methods
// return "" on failure; callers decide whether that is fatal.
type LLM interface {
	// SummarizeAbstract renders an English abstract into Korean.
	SummarizeAbstract(ctx context.Context, abstract string) string
	// AnalyzePaper produces the structured Korean deep analysis.
	AnalyzePaper(ctx context.Context, paperID, title, abstract, pdfURL string) string
	// Complete runs a raw prompt, used for query expansion and ranking.
	Complete(ctx context.Context, prompt string) string
}

// ClaudeCLI talks to the local claude binary in --print mode. The
// prompt goes over stdin, the completion comes back on stdout.
type ClaudeCLI struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClaudeCLI creates a new CLI client.
func NewClaudeCLI(cfg *config.Config, logger *zap.Logger) *ClaudeCLI {
	return &ClaudeCLI{Config: cfg, Logger: logger}
}

// runPrompt executes one prompt with bounded retries. Every attempt gets
// its own timeout. After all attempts fail it returns "".
func (c *ClaudeCLI) runPrompt(ctx context.Context, prompt string) string {
	retries := c.Config.ClaudeMaxRetries
	if retries < 1 {
		retries = 1
	}
	timeout := time.Duration(c.Config.ClaudeTimeoutSeconds) * time.Second

	for attempt := 1; attempt <= retries; attempt++ {
		out, err := c.runOnce(ctx, prompt, timeout)
		if err == nil {
			return out
		}
		c.Logger.Warn("Claude CLI attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", retries),
			zap.Error(err))
		if attempt < retries {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return ""
			}
		}
	}
	return ""
}

func (c *ClaudeCLI) runOnce(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := commandContext(runCtx, c.Config.ClaudeBinary, "--print")
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("claude timed out after %s", timeout)
		}
		return "", fmt.Errorf("claude failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// SummarizeAbstract asks for a natural Korean rendering of the abstract,
// keeping technical terms in English and math in LaTeX.
func (c *ClaudeCLI) SummarizeAbstract(ctx context.Context, abstract string) string {
	if abstract == "" {
		return ""
	}

	prompt := fmt.Sprintf(`다음 논문 초록(Abstract)을 한국어로 자연스럽게 정리해주세요.
핵심 내용을 파악하기 쉽게 요약하고, 전문 용어는 영어를 괄호 안에 병기해주세요.

수식 포맷팅 규칙:
- 모든 수학 표현은 LaTeX 형식이어야 합니다
- 인라인 수식: $수식$ 형태 (예: $E = mc^2$)
- 디스플레이 수식: $$ 수식 $$ 형태 (각 $$ 전후로 개행)
- 첨자: underscore를 사용 (예: a_i, rho_pi_E)
- 분수: frac를 사용 (예: frac(a)(b))
- 그리스 문자: pi, alpha, rho 등의 LaTeX 명령어

초록:
%s

한국어 정리:`, abstract)

	c.Logger.Info("Summarizing abstract via Claude CLI")
	result := c.runPrompt(ctx, prompt)
	if result != "" {
		c.Logger.Info("Abstract summary complete")
	}
	return result
}

const analysisFormat = `다음 형식으로 작성해주세요:

### 연구 배경 및 문제 정의
(이 연구가 해결하고자 하는 문제와 배경을 설명)

### 주요 기여점
(이 논문의 핵심 기여와 새로운 점을 bullet point로 정리)

### 제안 방법론
(논문에서 제안하는 방법론의 핵심 내용을 상세히 설명)

### 실험 및 결과
(실험 설정과 주요 결과를 정리)

### 핵심 인사이트
(이 논문의 주요 발견사항과 시사점)

### 한줄 요약
(논문의 핵심을 한 문장으로 요약)`

const mathRules = `중요: 수식 포맷팅 규칙
1. 모든 수학 표현은 LaTeX 형식이어야 합니다
2. 인라인 수식 (텍스트 중간): $수식$ 형태
3. 디스플레이 수식 (별도 줄): $$ 수식 $$ 형태 (각 $$ 전후로 개행)
   - 첨자: underscore 사용 (a_i, rho_pi_A)
   - 분수: frac 사용
   - 합: sum, 적분: int 사용
   - 그리스 문자: pi, alpha, rho 등 사용
4. 복잡한 수식은 반드시 $$ $$ 로 감싸세요
5. 수식 내 일반 텍스트는 text 명령어 사용

전문 용어는 영어를 괄호 안에 병기해주세요.`

// AnalyzePaper requests the structured deep analysis. The prompt points
// Claude at the paper's PDF so it can pull in the full text itself.
func (c *ClaudeCLI) AnalyzePaper(ctx context.Context, paperID, title, abstract, pdfURL string) string {
	prompt := fmt.Sprintf(`다음 논문을 상세히 분석하여 한국어로 정리해주세요.

**논문 제목**: %s
**ArXiv ID**: %s
**PDF**: %s

**초록**:
%s

초록과 논문 전문(PDF)의 내용을 바탕으로 분석해주세요.

---

%s

---

%s`, title, paperID, pdfURL, abstract, analysisFormat, mathRules)

	c.Logger.Info("Analyzing paper via Claude CLI", zap.String("paper_id", paperID))
	result := c.runPrompt(ctx, prompt)
	if result != "" {
		c.Logger.Info("Paper analysis complete", zap.String("paper_id", paperID))
	}
	return result
}

// Complete runs an arbitrary prompt.
func (c *ClaudeCLI) Complete(ctx context.Context, prompt string) string {
	return c.runPrompt(ctx, prompt)
}

var _ LLM = (*ClaudeCLI)(nil)
