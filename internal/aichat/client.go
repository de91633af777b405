// AngelaMos | 2026
// client.go

package aichat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/siliconforge/eda-backend/internal/config"
	"github.com/siliconforge/eda-backend/internal/core"
)

// TextGenerator is the AI-provider boundary. Job analysis and chat both
// speak through it, so the provider can be swapped or faked in tests.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// GeminiClient calls the Generative Language REST API.
type GeminiClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewGeminiClient(cfg config.AIConfig) *GeminiClient {
	return &GeminiClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

type generateRequest struct {
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	Contents          []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *GeminiClient) Generate(
	ctx context.Context,
	system, prompt string,
) (string, error) {
	reqBody := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
	}
	if system != "" {
		reqBody.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf(
		"%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, c.model, c.apiKey)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ai provider: %w: %w", core.ErrUpstream, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only response body

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read ai response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf(
			"ai provider returned %d: %w", resp.StatusCode, core.ErrUpstream)
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("decode ai response: %w", err)
	}

	if genResp.Error != nil {
		return "", fmt.Errorf(
			"ai provider error %d: %s: %w",
			genResp.Error.Code, genResp.Error.Message, core.ErrUpstream)
	}

	if len(genResp.Candidates) == 0 ||
		len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty ai response: %w", core.ErrUpstream)
	}

	return genResp.Candidates[0].Content.Parts[0].Text, nil
}
