package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/resume-pipeline/internal/common"
	"github.com/hireloop/resume-pipeline/internal/entity"
	"github.com/hireloop/resume-pipeline/internal/llm"
)

// ExtractKeywords implements llm.KeywordExtractor using text-only
// chat/completions. Safe for concurrent use; holds no state across calls.
func (c *Client) ExtractKeywords(ctx context.Context, req llm.ExtractRequest) (entity.KeywordSet, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"kind", req.Kind,
		"text_len", len(req.Text),
	)

	if err := common.ValidateExtractionInput(req.Text, c.cfg.MaxInputBytes); err != nil {
		c.log.Warn("llm.extract.rejected", "req_id", rid, "error", err)
		return entity.KeywordSet{}, nil, err
	}

	schema := llm.BuildKeywordJSONSchema()
	body := c.chatBody(
		llm.BuildExtractionSystemPrompt(req.Kind),
		llm.BuildExtractionUserPrompt(req.Text),
		schema,
	)

	content, raw, err := c.complete(ctx, body)
	if err != nil {
		c.log.Error("llm.extract.call_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.KeywordSet{}, raw, err
	}

	content, err = c.validated(rid, schema, content, llm.SanitizeKeywordPayload)
	if err != nil {
		c.log.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.KeywordSet{}, content, err
	}

	set, err := entity.ParseKeywordSet(content)
	if err != nil {
		return entity.KeywordSet{}, content, fmt.Errorf("%w: unmarshal keywords: %v", common.ErrMalformedOutput, err)
	}
	set = set.Normalize()
	if set.IsEmpty() {
		return entity.KeywordSet{}, content, fmt.Errorf("%w: extraction produced no keywords", common.ErrMalformedOutput)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"keywords", len(set.Keywords),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return set, content, nil
}

// Improve implements llm.ResumeImprover over the same transport.
func (c *Client) Improve(ctx context.Context, req llm.ImproveRequest) (llm.ImproveResult, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.improve.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"resume_len", len(req.ResumeText),
		"job_len", len(req.JobText),
	)

	combined := len(req.ResumeText) + len(req.JobText)
	if err := common.ValidateExtractionInput(req.ResumeText, 0); err != nil {
		return llm.ImproveResult{}, nil, err
	}
	if err := common.ValidateExtractionInput(req.JobText, 0); err != nil {
		return llm.ImproveResult{}, nil, err
	}
	if c.cfg.MaxInputBytes > 0 && combined > 2*c.cfg.MaxInputBytes {
		return llm.ImproveResult{}, nil, fmt.Errorf("%w: combined input is %d bytes", common.ErrInputTooLarge, combined)
	}

	schema := llm.BuildImprovementJSONSchema()
	body := c.chatBody(
		llm.BuildImprovementSystemPrompt(),
		llm.BuildImprovementUserPrompt(req),
		schema,
	)

	content, raw, err := c.complete(ctx, body)
	if err != nil {
		c.log.Error("llm.improve.call_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ImproveResult{}, raw, err
	}

	content, err = c.validated(rid, schema, content, llm.SanitizeImprovementPayload)
	if err != nil {
		c.log.Error("llm.improve.schema_validation_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ImproveResult{}, content, err
	}

	var out llm.ImproveResult
	if err := json.Unmarshal(content, &out); err != nil {
		return llm.ImproveResult{}, content, fmt.Errorf("%w: unmarshal improvement: %v", common.ErrMalformedOutput, err)
	}

	c.log.Info("llm.improve.ok",
		"req_id", rid,
		"score", out.Score,
		"improved_len", len(out.ImprovedResume),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

func (c *Client) chatBody(system, user string, schema map[string]any) map[string]any {
	return map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}
}

// complete posts the chat body and returns the first choice's content.
// Transport and 5xx/429 failures map to ErrServiceUnavailable (retryable);
// everything unparsable maps to ErrMalformedOutput.
func (c *Client) complete(ctx context.Context, body map[string]any) ([]byte, []byte, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		return nil, raw, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, raw, fmt.Errorf("%w: decode response: %v", common.ErrMalformedOutput, err)
	}
	if len(cc.Choices) == 0 {
		return nil, raw, fmt.Errorf("%w: no choices in response", common.ErrMalformedOutput)
	}
	return []byte(strings.TrimSpace(cc.Choices[0].Message.Content)), raw, nil
}

// validated validates content strictly, then once leniently via sanitize.
func (c *Client) validated(rid string, schema map[string]any, content []byte, sanitize func([]byte) ([]byte, []string, error)) ([]byte, error) {
	if err := llm.ValidateJSONAgainstSchema(schema, content); err == nil {
		return content, nil
	} else if !c.cfg.LenientOutput {
		return content, fmt.Errorf("%w: %v", common.ErrMalformedOutput, err)
	}

	cleaned, notes, sErr := sanitize(content)
	if sErr != nil {
		return content, fmt.Errorf("%w: sanitize: %v", common.ErrMalformedOutput, sErr)
	}
	if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
		return cleaned, fmt.Errorf("%w: %v", common.ErrMalformedOutput, vErr)
	}
	if len(notes) > 0 {
		c.log.Warn("llm.lenient_sanitize_applied", "req_id", rid, "notes", notes)
	}
	return cleaned, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrServiceUnavailable, err)
	}
	defer func(rc io.ReadCloser) {
		if err := rc.Close(); err != nil {
			c.log.Warn("response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return buf.Bytes(), nil
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d: %s", common.ErrServiceUnavailable, resp.StatusCode, buf.String())
	default:
		return nil, fmt.Errorf("%w: status %d: %s", common.ErrMalformedOutput, resp.StatusCode, buf.String())
	}
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
