package chat

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"studyhall/handlers/auth"
	"studyhall/middleware"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Supported upstreams. Groq and Gemini both expose OpenAI-compatible
// chat-completion endpoints, so one passthrough covers all three.
var providerBaseURLs = map[string]string{
	"openai": "https://api.openai.com/v1",
	"groq":   "https://api.groq.com/openai/v1",
	"gemini": "https://generativelanguage.googleapis.com/v1beta/openai",
}

var providerKeyEnvs = map[string]string{
	"openai": "OPENAI_API_KEY",
	"groq":   "GROQ_API_KEY",
	"gemini": "GEMINI_API_KEY",
}

var (
	provider string
	baseURL  string
	apiKey   string
)

// Init selects the LLM upstream from the environment. LLM_BASE_URL
// overrides the provider default, for self-hosted compatible servers.
func Init() {
	provider = os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = "openai"
	}
	baseURL = providerBaseURLs[provider]
	if url := os.Getenv("LLM_BASE_URL"); url != "" {
		baseURL = url
	}
	if baseURL == "" {
		logrus.WithField("provider", provider).Warn("Unknown LLM provider and no LLM_BASE_URL set. Chat proxy will not work.")
		return
	}

	apiKey = os.Getenv(providerKeyEnvs[provider])
	if apiKey == "" {
		logrus.WithField("provider", provider).Warn("LLM API key not set. Chat proxy will not work.")
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or a slice of content parts
	Name    string `json:"name,omitempty"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   *bool         `json:"stream"`
	// Other fields (temperature, max_tokens, ...) pass through untouched.
}

// flusherWriter ensures streamed chunks reach the client as they arrive.
type flusherWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw *flusherWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.f != nil {
		fw.f.Flush()
	}
	return n, err
}

// HandleChatCompletion proxies an authenticated chat-completion request to
// the configured upstream, passing the body through verbatim and streaming
// the response when the client asked for a stream.
func HandleChatCompletion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Context().Value(middleware.ClaimsContextKey).(*auth.AppClaims)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		if apiKey == "" || baseURL == "" {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "LLM provider is not configured on the server"})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		var req chatCompletionRequest
		if err := json.Unmarshal(body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid JSON in request body"})
			return
		}

		proxyReq, err := http.NewRequestWithContext(r.Context(), "POST", baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create proxy request"})
			return
		}
		proxyReq.Header.Set("Authorization", "Bearer "+apiKey)
		proxyReq.Header.Set("Content-Type", "application/json")
		proxyReq.Header.Set("Accept", "application/json")

		client := &http.Client{Timeout: 5 * time.Minute}
		resp, err := client.Do(proxyReq)
		if err != nil {
			logrus.WithField("provider", provider).WithError(err).Error("LLM upstream request failed")
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Failed to communicate with LLM provider"})
			return
		}
		defer resp.Body.Close()

		if req.Stream != nil && *req.Stream {
			flusher, ok := w.(http.Flusher)
			if !ok {
				http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(resp.StatusCode)

			fw := &flusherWriter{w: w, f: flusher}
			if _, err := io.Copy(fw, resp.Body); err != nil {
				// The response is likely already partially sent.
				logrus.WithField("provider", provider).WithError(err).Warn("Error streaming LLM response")
			}
			return
		}

		for key, values := range resp.Header {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
	}
}
