package infra

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"inference-gateway/inference/domain"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.0-flash"

	// limite de leitura da resposta do upstream
	maxUpstreamBody = 4 << 20
)

const extractPrompt = "Extract all text visible in this image. " +
	"Return only the extracted text, preserving line breaks. " +
	"Do not add commentary."

const classifyPrompt = "You are a color lookup service. " +
	"Reply with exactly one hexadecimal color code in the form #RRGGBB for the color named below, " +
	"or the single word UNKNOWN if the name does not describe a color. " +
	"Do not add any other text.\n\nColor name: "

// GeminiClient implementa domain.Upstream usando a API generateContent.
//
// O timeout não é aplicado aqui: o chamador controla o deadline pelo ctx.
type GeminiClient struct {
	// BaseURL padrão: https://generativelanguage.googleapis.com
	BaseURL string
	// Model padrão: gemini-2.0-flash
	Model string
	// HTTPClient, se nil, usa http.DefaultClient.
	HTTPClient *http.Client
}

var _ domain.Upstream = GeminiClient{}

func (c GeminiClient) Name() string { return c.model() }

func (c GeminiClient) Extract(ctx context.Context, cred domain.Credential, image []byte, mimeType string) (string, error) {
	parts := []geminiPart{
		{Text: extractPrompt},
		{InlineData: &geminiBlob{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(image)}},
	}
	text, err := c.generate(ctx, cred, parts)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyResult
	}
	return text, nil
}

func (c GeminiClient) Classify(ctx context.Context, cred domain.Credential, label string) (string, error) {
	return c.generate(ctx, cred, []geminiPart{{Text: classifyPrompt + label}})
}

type geminiBlob struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inline_data,omitempty"`
}

type geminiContent struct {
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

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c GeminiClient) generate(ctx context.Context, cred domain.Credential, parts []geminiPart) (string, error) {
	body, err := json.Marshal(geminiRequest{Contents: []geminiContent{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	u := c.baseURL() + "/v1beta/models/" + url.PathEscape(c.model()) + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-goog-api-key", string(cred))

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := readAllLimit(resp.Body, maxUpstreamBody)
	if err != nil {
		return "", fmt.Errorf("gemini: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    providerMessage(raw),
		}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("gemini: parse response: %w", err)
	}

	// só o primeiro candidato interessa
	if len(parsed.Candidates) == 0 {
		return "", nil
	}
	var out strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		out.WriteString(p.Text)
	}
	return out.String(), nil
}

// providerMessage extrai error.message do corpo; cai para o corpo cru curto.
func providerMessage(raw []byte) string {
	var eb geminiErrorBody
	if err := json.Unmarshal(raw, &eb); err == nil && eb.Error.Message != "" {
		return eb.Error.Message
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}

func readAllLimit(r io.Reader, max int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, max))
}

func (c GeminiClient) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return defaultGeminiBaseURL
}

func (c GeminiClient) model() string {
	if c.Model != "" {
		return c.Model
	}
	return defaultGeminiModel
}

func (c GeminiClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
