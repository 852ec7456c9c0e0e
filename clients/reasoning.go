package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/log"
	"github.com/reframelabs/reframe-api/metrics"
)

const (
	reasoningCallTimeout = 60 * time.Second
	// Enough for a few hundred highlight candidates; anything bigger is a
	// misbehaving endpoint.
	maxReasoningResponseBytes = 4 << 20
)

// ReasoningClient talks to an OpenAI-style chat-completions endpoint. A nil
// client (no endpoint configured) makes every call fail with an
// unavailable-dependency error, which the analyzer treats as "run the
// fallback path".
type ReasoningClient struct {
	endpoint *url.URL
	apiKey   string
	model    string
	client   *http.Client
}

func NewReasoningClient(endpoint *url.URL, apiKey, model string) *ReasoningClient {
	if endpoint == nil {
		return nil
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2                    // Retry a maximum of this+1 times
	client.RetryWaitMin = 1 * time.Second  // Wait at least this long between retries
	client.RetryWaitMax = 10 * time.Second // Wait at most this long between retries (exponential backoff)
	client.HTTPClient = &http.Client{
		Timeout: reasoningCallTimeout, // Give up on requests that take more than this long
	}
	client.CheckRetry = metrics.HttpRetryHook
	client.Logger = log.NewRetryableHTTPLogger()

	return &ReasoningClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   client.StandardClient(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one prompt and returns the raw text of the first choice.
// Tolerant parsing of whatever JSON the model wrote inside that text is the
// caller's business.
func (c *ReasoningClient) Complete(ctx context.Context, requestID, prompt string) (string, error) {
	if c == nil {
		return "", errors.NewUnavailableDependencyError("no reasoning endpoint configured", nil)
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.3,
	})
	if err != nil {
		return "", errors.NewRemoteReasoningError("failed to encode reasoning request", err)
	}

	callURL := c.endpoint.JoinPath("v1", "chat", "completions").String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callURL, bytes.NewReader(body))
	if err != nil {
		return "", errors.Unretriable(errors.NewRemoteReasoningError("error creating reasoning request", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	log.Log(requestID, "calling reasoning service", "host", c.endpoint.Host, "model", c.model, "prompt_bytes", len(body))
	resp, err := metrics.MonitorRequest(metrics.Metrics.ReasoningClient, c.client, req)
	if err != nil {
		return "", errors.NewRemoteReasoningError("reasoning request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxReasoningResponseBytes))
	if err != nil {
		return "", errors.NewRemoteReasoningError("failed reading reasoning response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := errors.NewRemoteReasoningError(fmt.Sprintf("reasoning service returned %d: %s", resp.StatusCode, truncate(string(respBody), 512)), nil)
		if resp.StatusCode < 500 {
			err = errors.Unretriable(err)
		}
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", errors.NewRemoteReasoningError("unparseable reasoning response envelope", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.NewRemoteReasoningError("reasoning response contained no choices", nil)
	}

	content := parsed.Choices[0].Message.Content
	log.Log(requestID, "reasoning service replied", "host", c.endpoint.Host, "response_bytes", len(content))
	return content, nil
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
