package copilot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etcop/copilot-gateway/internal/profile"
)

func newTestClient(t *testing.T, backend *httptest.Server) *Client {
	t.Helper()
	u, err := url.Parse(backend.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return NewClient(&profile.Profile{
		CopilotHost: u.Hostname(),
		CopilotPort: port,
		Language:    "en_US",
	})
}

func TestEndpointFor(t *testing.T) {
	assert.Equal(t, "/question", EndpointFor("langchain", false))
	assert.Equal(t, "/aquestion", EndpointFor("openai", true))
	assert.Equal(t, "/graph", EndpointFor("langgraph", false))
	assert.Equal(t, "/agraph", EndpointFor("LANGGRAPH", true))
}

func TestClientAsk(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/question", r.URL.Path)

		var payload Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "what is an invoice?", payload.Question)

		w.Header().Set("Content-Type", ContentTypeJSON)
		fmt.Fprint(w, `{"answer":{"response":"an invoice is...","conversation_id":"c-9","role":"assistant"}}`)
	}))
	defer backend.Close()

	client := newTestClient(t, backend)
	raw, err := client.Ask(context.Background(), QuestionEndpoint, &Payload{Question: "what is an invoice?"})
	require.NoError(t, err)
	require.NotNil(t, raw.Answer)
	assert.Equal(t, "an invoice is...", raw.Answer.Response)
}

func TestClientAskConnectionRefused(t *testing.T) {
	client := NewClient(&profile.Profile{CopilotHost: "127.0.0.1", CopilotPort: 1, Language: "en_US"})

	_, err := client.Ask(context.Background(), QuestionEndpoint, &Payload{Question: "q"})
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, 500, svcErr.HTTPStatus())
}

func TestClientAskStreamDeliversFinalEvent(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/aquestion", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {}\n\n")
		fmt.Fprint(w, "data: {\"answer\":{\"response\":\"thinking...\",\"role\":\"tool\"}}\n\n")
		fmt.Fprint(w, "data: {\"answer\":{\"response\":\"final\",\"conversation_id\":\"c-1\",\"role\":\"assistant\"}}\n\n")
	}))
	defer backend.Close()

	client := newTestClient(t, backend)
	h := NewHandoff()
	client.AskStream(context.Background(), AsyncQuestionEndpoint, &Payload{Question: "q"}, h)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := h.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.NotNil(t, res.Raw.Answer)
	assert.Equal(t, "final", res.Raw.Answer.Response)
	assert.Equal(t, "c-1", res.Raw.Answer.ConversationID)
}

func TestClientAskStreamTransportFailure(t *testing.T) {
	client := NewClient(&profile.Profile{CopilotHost: "127.0.0.1", CopilotPort: 1, Language: "en_US"})
	h := NewHandoff()
	client.AskStream(context.Background(), AsyncQuestionEndpoint, &Payload{Question: "q"}, h)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := h.Receive(ctx)
	require.NoError(t, err)
	require.Error(t, res.Err)
}

func TestClientStructure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/graph", r.URL.Path)

		var payload Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.True(t, payload.GenerateImage)

		fmt.Fprint(w, `{"answer":{"response":"base64-image","role":"assistant"}}`)
	}))
	defer backend.Close()

	client := newTestClient(t, backend)
	img, err := client.Structure(context.Background(), &Payload{AssistantID: "a-1", Type: "langgraph"})
	require.NoError(t, err)
	assert.Equal(t, "base64-image", img)
}

func TestClientUploadFile(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/file", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "report.txt", header.Filename)

		fmt.Fprint(w, `{"answer":{"response":"file-id-42"}}`)
	}))
	defer backend.Close()

	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("quarterly numbers"), 0600))

	client := newTestClient(t, backend)
	answer, err := client.UploadFile(context.Background(), path, "file")
	require.NoError(t, err)
	assert.Equal(t, "file-id-42", answer)
}
