package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"carenote-server/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single extraction call.
const DefaultTimeout = 10 * time.Second

// Extractor turns note text into checklist and plan items. Implementations
// never fail: any problem yields an empty result.
type Extractor interface {
	Extract(ctx context.Context, noteText string) domain.ExtractionResult
}

type DegradeReason string

const (
	ReasonEmptyInput        DegradeReason = "empty_input"
	ReasonTimeout           DegradeReason = "timeout"
	ReasonTransport         DegradeReason = "transport_error"
	ReasonHTTPStatus        DegradeReason = "http_status"
	ReasonMalformedResponse DegradeReason = "malformed_response"
	ReasonNoCandidates      DegradeReason = "no_candidates"
	ReasonMissingText       DegradeReason = "missing_text"
	ReasonInvalidJSON       DegradeReason = "invalid_json"
	ReasonMissingKeys       DegradeReason = "missing_keys"
)

// Outcome is either a usable result or a degraded call. A degraded outcome
// always carries the empty result.
type Outcome struct {
	Result     domain.ExtractionResult
	Degraded   bool
	Reason     DegradeReason
	StatusCode int
}

func ok(result domain.ExtractionResult) Outcome {
	return Outcome{Result: result}
}

func degraded(reason DegradeReason) Outcome {
	return Outcome{Result: domain.EmptyExtraction(), Degraded: true, Reason: reason}
}

type GeminiConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GeminiClient calls the Gemini generateContent endpoint once per note.
type GeminiClient struct {
	httpClient *resty.Client
	cfg        GeminiConfig
	logger     *zap.Logger
}

func NewGeminiClient(cfg GeminiConfig, logger *zap.Logger) *GeminiClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &GeminiClient{
		httpClient: client,
		cfg:        cfg,
		logger:     logger,
	}
}

// Extract collapses Generate to its result, logging why a call degraded.
func (c *GeminiClient) Extract(ctx context.Context, noteText string) domain.ExtractionResult {
	outcome := c.Generate(ctx, noteText)
	if outcome.Degraded {
		c.logger.Warn("extraction degraded, continuing with no actionable steps",
			zap.String("reason", string(outcome.Reason)),
			zap.Int("status_code", outcome.StatusCode),
		)
		return outcome.Result
	}

	c.logger.Info("extraction succeeded",
		zap.Int("checklist_count", len(outcome.Result.Checklist)),
		zap.Int("plan_count", len(outcome.Result.Plan)),
	)
	return outcome.Result
}

// Generate performs a single call bounded by the client timeout, independent
// of any longer deadline on ctx.
func (c *GeminiClient) Generate(ctx context.Context, noteText string) Outcome {
	if strings.TrimSpace(noteText) == "" {
		return degraded(ReasonEmptyInput)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildPrompt(noteText)}},
		}},
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("key", c.cfg.APIKey).
		SetBody(body).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", c.cfg.Model))
	if err != nil {
		if isTimeout(err) {
			return degraded(ReasonTimeout)
		}
		return degraded(ReasonTransport)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		out := degraded(ReasonHTTPStatus)
		out.StatusCode = resp.StatusCode()
		return out
	}

	var parsed geminiResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return degraded(ReasonMalformedResponse)
	}

	if len(parsed.Candidates) == 0 {
		return degraded(ReasonNoCandidates)
	}

	parts := parsed.Candidates[0].Content.Parts
	if len(parts) == 0 || strings.TrimSpace(parts[0].Text) == "" {
		return degraded(ReasonMissingText)
	}

	return ParseAnswer(parts[0].Text)
}

// ParseAnswer decodes the model's text answer into an extraction result. The
// answer must be a single JSON object with both "checklist" and "plan" arrays
// of strings, optionally wrapped in a Markdown code fence.
func ParseAnswer(text string) Outcome {
	var payload struct {
		Checklist *[]string `json:"checklist"`
		Plan      *[]string `json:"plan"`
	}

	if err := json.Unmarshal([]byte(StripCodeFence(text)), &payload); err != nil {
		return degraded(ReasonInvalidJSON)
	}

	if payload.Checklist == nil || payload.Plan == nil {
		return degraded(ReasonMissingKeys)
	}

	return ok(domain.ExtractionResult{
		Checklist: *payload.Checklist,
		Plan:      *payload.Plan,
	})
}

// StripCodeFence removes a surrounding ``` or ```json fence.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func buildPrompt(noteText string) string {
	return `Extract structured actionable steps from this medical note:

"` + noteText + `"

- Checklist: immediate one-time tasks (e.g., buy a drug).
- Plan: scheduled actions (e.g., take a drug daily for 7 days).

Format the response as valid JSON like this:
{
  "checklist": ["task1", "task2"],
  "plan": ["scheduled action1", "scheduled action2"]
}
Do NOT include any additional text or formatting, just the JSON object.`
}
