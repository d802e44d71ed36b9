package copilot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/etcop/copilot-gateway/internal/i18n"
	"github.com/etcop/copilot-gateway/internal/profile"
)

// Backend execution endpoints.
const (
	QuestionEndpoint      = "/question"
	GraphEndpoint         = "/graph"
	AsyncQuestionEndpoint = "/aquestion"
	AsyncGraphEndpoint    = "/agraph"
	FileEndpoint          = "/file"
)

// ContentTypeJSON is the content type the gateway uses for JSON bodies.
const ContentTypeJSON = "application/json;charset=UTF-8"

// HistoryEntry is one prior turn included in a backend payload.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Payload is the request body sent to the backend execution endpoints.
type Payload struct {
	Question       string         `json:"question"`
	Type           string         `json:"type,omitempty"`
	AssistantID    string         `json:"assistant_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	History        []HistoryEntry `json:"history,omitempty"`
	SystemPrompt   string         `json:"system_prompt,omitempty"`
	Temperature    float64        `json:"temperature,omitempty"`
	GenerateImage  bool           `json:"generate_image,omitempty"`
}

// EndpointFor selects the backend execution endpoint for an agent type.
// Graph agents run on the graph endpoints, everything else on the question
// ones; async picks the streaming alias.
func EndpointFor(agentType string, async bool) string {
	if strings.EqualFold(agentType, "langgraph") {
		if async {
			return AsyncGraphEndpoint
		}
		return GraphEndpoint
	}
	if async {
		return AsyncQuestionEndpoint
	}
	return QuestionEndpoint
}

// Client performs the actual calls against the Copilot AI backend.
type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// NewClient creates a backend client from the instance profile. The
// underlying HTTP client has no global timeout: streamed answers are
// long-lived and cancellation flows through the request context.
func NewClient(p *profile.Profile) *Client {
	return &Client{
		baseURL:    p.CopilotBaseURL(),
		language:   p.Language,
		httpClient: &http.Client{},
	}
}

func (c *Client) connError() *ServiceError {
	return NewServiceError(i18n.Message(c.language, i18n.MsgConnError))
}

func (c *Client) post(ctx context.Context, endpoint string, payload *Payload) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", ContentTypeJSON)
	return c.httpClient.Do(req)
}

// Ask sends a question synchronously and returns the raw backend reply.
func (c *Client) Ask(ctx context.Context, endpoint string, payload *Payload) (*RawAnswer, error) {
	resp, err := c.post(ctx, endpoint, payload)
	if err != nil {
		slog.Error("copilot request failed", "endpoint", endpoint, "error", err)
		return nil, c.connError()
	}
	defer resp.Body.Close()

	var raw RawAnswer
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		slog.Error("copilot reply is not valid JSON", "endpoint", endpoint, "status", resp.StatusCode, "error", err)
		return nil, c.connError()
	}
	return &raw, nil
}

// AskStream sends a question to a streaming endpoint and returns immediately.
// A producer goroutine consumes the server-sent event stream and hands the
// final answer (the last "data:" line) to the Handoff; transport failures are
// delivered through the same slot. Exactly one Send happens per call.
func (c *Client) AskStream(ctx context.Context, endpoint string, payload *Payload, h *Handoff) {
	go func() {
		resp, err := c.post(ctx, endpoint, payload)
		if err != nil {
			slog.Error("copilot stream request failed", "endpoint", endpoint, "error", err)
			h.Send(StreamResult{Err: c.connError()})
			return
		}
		defer resp.Body.Close()

		lastData := ""
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data:") {
				lastData = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Error("copilot stream aborted", "endpoint", endpoint, "error", err)
			h.Send(StreamResult{Err: c.connError()})
			return
		}
		if lastData == "" {
			h.Send(StreamResult{Err: c.connError()})
			return
		}

		var raw RawAnswer
		if err := json.Unmarshal([]byte(lastData), &raw); err != nil {
			slog.Error("copilot stream final event is not valid JSON", "endpoint", endpoint, "error", err)
			h.Send(StreamResult{Err: c.connError()})
			return
		}
		h.Send(StreamResult{Raw: &raw})
	}()
}

// Structure asks the backend to generate the structure of a graph assistant
// and returns the rendered representation.
func (c *Client) Structure(ctx context.Context, payload *Payload) (string, error) {
	payload.GenerateImage = true
	raw, err := c.Ask(ctx, GraphEndpoint, payload)
	if err != nil {
		return "", err
	}
	answer, err := Normalize(raw, payload.ConversationID, c.language)
	if err != nil {
		return "", err
	}
	return answer.Response, nil
}

// UploadFile forwards one local file to the given backend endpoint and
// returns the backend's per-file answer.
func (c *Client) UploadFile(ctx context.Context, path, endpoint string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("copilot upload failed", "endpoint", endpoint, "error", err)
		return "", c.connError()
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.connError()
	}

	// The backend answers uploads either with a wrapped answer or a bare
	// string; serve whichever is there.
	var raw RawAnswer
	if err := json.Unmarshal(body, &raw); err == nil {
		if resolved := raw.Body(); resolved.Response != "" {
			return resolved.Response, nil
		}
	}
	return strings.TrimSpace(string(body)), nil
}
