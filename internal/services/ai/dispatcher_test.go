package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/benvon/smart-tutor/internal/nlp"
)

var testInfo = nlp.RelevantInfo{
	{Name: "math", Topics: []nlp.Topic{{Name: "calculus", Explanation: "Calculus is the mathematical study of continuous change."}}},
}

var testProfile = nlp.Profile{
	LearningStyle:          nlp.StyleVisual,
	SkillLevel:             7,
	ResponseTimePreference: 5,
	PreferredSubjects:      []string{"math", "physics"},
}

// recordingServer captures the last request and answers with a fixed
// status and body.
type recordingServer struct {
	*httptest.Server
	calls atomic.Int32

	mu  sync.Mutex
	got recorded
}

type recorded struct {
	path    string
	headers http.Header
	body    map[string]any
}

func (rs *recordingServer) last() recorded {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.got
}

func newRecordingServer(t *testing.T, status int, response string) *recordingServer {
	t.Helper()
	rs := &recordingServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.calls.Add(1)
		raw, _ := io.ReadAll(r.Body)
		body := map[string]any{}
		_ = json.Unmarshal(raw, &body)
		rs.mu.Lock()
		rs.got = recorded{path: r.URL.Path, headers: r.Header.Clone(), body: body}
		rs.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(rs.Close)
	return rs
}

const chatCompletionOK = `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"gpt-3.5-turbo",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Derivatives measure change."}}]}`

func baseRequest(desc Descriptor) Request {
	return Request{
		Descriptor:   desc,
		Message:      "What is a derivative?",
		Profile:      testProfile,
		History:      []nlp.Turn{{UserMessage: "hi", AIResponse: "hello"}},
		RelevantInfo: testInfo,
	}
}

func TestDispatcher_GPTRequestShape(t *testing.T) {
	t.Parallel()

	srv := newRecordingServer(t, http.StatusOK, chatCompletionOK)
	d := NewDispatcher(Config{Keys: SystemKeys{OpenAI: "sys-openai-key"}})

	req := baseRequest(Descriptor{
		Name:              "tutor-gpt",
		Kind:              KindGPT,
		Endpoint:          srv.URL + "/v1/chat/completions",
		RequiresKey:       true,
		DefaultParameters: map[string]any{"temperature": 0.2, "model": "gpt-4o-mini"},
	})
	req.Preference = &Preference{CustomParameters: map[string]any{"temperature": 0.9, "top_p": 0.5}}

	res := d.Dispatch(context.Background(), req)
	require.True(t, res.OK(), "unexpected failure %q", res.FailureReason)
	assert.Equal(t, "Derivatives measure change.", res.Text)
	assert.Equal(t, "tutor-gpt", res.Model)

	assert.Equal(t, "/v1/chat/completions", srv.last().path)
	assert.Equal(t, "Bearer sys-openai-key", srv.last().headers.Get("Authorization"))
	assert.Equal(t, "gpt-4o-mini", srv.last().body["model"])
	assert.InDelta(t, 0.9, srv.last().body["temperature"], 1e-9)
	assert.InDelta(t, 500, srv.last().body["max_tokens"], 1e-9)
	assert.InDelta(t, 0.5, srv.last().body["top_p"], 1e-9)

	messages, ok := srv.last().body["messages"].([]any)
	require.True(t, ok, "messages missing from body: %v", srv.last().body)
	require.Len(t, messages, 3)

	system := messages[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, "You are an educational AI assistant helping a user with math, physics. "+
		"The user's learning style is visual. Their skill level is 7/10.", system["content"])

	user := messages[1].(map[string]any)
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, "User: hi\nAI: hello\n\n\nUser question: What is a derivative?", user["content"])

	info := messages[2].(map[string]any)
	assert.Equal(t, "Relevant information: math - calculus: Calculus is the mathematical study of continuous change.", info["content"])
}

func TestDispatcher_PreferenceKeyWins(t *testing.T) {
	t.Parallel()

	srv := newRecordingServer(t, http.StatusOK, chatCompletionOK)
	d := NewDispatcher(Config{Keys: SystemKeys{OpenAI: "sys-openai-key"}})

	req := baseRequest(Descriptor{Name: "gpt", Kind: KindGPT, Endpoint: srv.URL, RequiresKey: true})
	req.Preference = &Preference{APIKey: "learner-key"}

	res := d.Dispatch(context.Background(), req)
	require.True(t, res.OK())
	assert.Equal(t, "Bearer learner-key", srv.last().headers.Get("Authorization"))
	assert.Equal(t, "/chat/completions", srv.last().path)
}

func TestDispatcher_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		response   string
		desc       func(url string) Descriptor
		keys       SystemKeys
		wantReason string
		wantCalled bool
	}{
		{
			name:       "unsupported kind",
			desc:       func(string) Descriptor { return Descriptor{Name: "x", Kind: "t5"} },
			wantReason: ReasonUnsupportedModelKind,
		},
		{
			name: "missing api key",
			desc: func(url string) Descriptor {
				return Descriptor{Name: "gpt", Kind: KindGPT, Endpoint: url, RequiresKey: true}
			},
			wantReason: ReasonMissingAPIKey,
		},
		{
			name:       "llama without endpoint",
			keys:       SystemKeys{Llama: "k"},
			desc:       func(string) Descriptor { return Descriptor{Name: "llama", Kind: KindLlama, RequiresKey: true} },
			wantReason: ReasonMissingEndpoint,
		},
		{
			name:       "custom without endpoint",
			desc:       func(string) Descriptor { return Descriptor{Name: "mine", Kind: KindCustom} },
			wantReason: ReasonMissingEndpoint,
		},
		{
			name:     "gpt non-2xx",
			status:   http.StatusUnauthorized,
			response: `{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`,
			keys:     SystemKeys{OpenAI: "k"},
			desc: func(url string) Descriptor {
				return Descriptor{Name: "gpt", Kind: KindGPT, Endpoint: url, RequiresKey: true}
			},
			wantReason: ReasonBadStatus,
			wantCalled: true,
		},
		{
			name:     "claude non-2xx",
			status:   http.StatusInternalServerError,
			response: `oops`,
			keys:     SystemKeys{Anthropic: "k"},
			desc: func(url string) Descriptor {
				return Descriptor{Name: "claude", Kind: KindClaude, Endpoint: url, RequiresKey: true}
			},
			wantReason: ReasonBadStatus,
			wantCalled: true,
		},
		{
			name:     "claude missing completion",
			status:   http.StatusOK,
			response: `{"stop_reason":"stop"}`,
			keys:     SystemKeys{Anthropic: "k"},
			desc: func(url string) Descriptor {
				return Descriptor{Name: "claude", Kind: KindClaude, Endpoint: url, RequiresKey: true}
			},
			wantReason: ReasonMalformedResponse,
			wantCalled: true,
		},
		{
			name:     "custom malformed json",
			status:   http.StatusOK,
			response: `not json`,
			desc: func(url string) Descriptor {
				return Descriptor{Name: "mine", Kind: KindCustom, Endpoint: url}
			},
			wantReason: ReasonMalformedResponse,
			wantCalled: true,
		},
		{
			name:     "custom empty text",
			status:   http.StatusOK,
			response: `{"response":"   "}`,
			desc: func(url string) Descriptor {
				return Descriptor{Name: "mine", Kind: KindCustom, Endpoint: url}
			},
			wantReason: ReasonEmptyResponse,
			wantCalled: true,
		},
		{
			name:     "gpt without choices",
			status:   http.StatusOK,
			response: `{"id":"c","object":"chat.completion","created":1,"model":"m","choices":[]}`,
			keys:     SystemKeys{OpenAI: "k"},
			desc: func(url string) Descriptor {
				return Descriptor{Name: "gpt", Kind: KindGPT, Endpoint: url}
			},
			wantReason: ReasonMalformedResponse,
			wantCalled: true,
		},
		{
			name:       "bert without qa model",
			desc:       func(string) Descriptor { return Descriptor{Name: "bert", Kind: KindBERT} },
			wantReason: ReasonNoQACapability,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status := tt.status
			if status == 0 {
				status = http.StatusOK
			}
			srv := newRecordingServer(t, status, tt.response)
			d := NewDispatcher(Config{Keys: tt.keys})

			res := d.Dispatch(context.Background(), baseRequest(tt.desc(srv.URL)))
			assert.False(t, res.OK())
			assert.Equal(t, tt.wantReason, res.FailureReason)
			assert.Empty(t, res.Text)
			assert.Equal(t, tt.wantCalled, srv.calls.Load() > 0)
		})
	}
}

func TestDispatcher_TimeoutIsRequestFailure(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	d := NewDispatcher(Config{Timeout: 50 * time.Millisecond})
	res := d.Dispatch(context.Background(), baseRequest(Descriptor{Name: "mine", Kind: KindCustom, Endpoint: srv.URL}))
	assert.Equal(t, ReasonRequestFailed, res.FailureReason)
}

func TestDispatcher_LogsFailure(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	d := NewDispatcher(Config{Logger: zap.New(core)})

	d.Dispatch(context.Background(), baseRequest(Descriptor{Name: "gpt", Kind: KindGPT, RequiresKey: true}))

	entries := logs.FilterMessage("model_dispatch_failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "gpt", fields["provider"])
	assert.Equal(t, "gpt", fields["model"])
	assert.Equal(t, StageSelectKey, fields["stage"])
	assert.Equal(t, ReasonMissingAPIKey, fields["reason"])
	assert.NotEmpty(t, fields["error"])
}

func TestDispatcher_Claude(t *testing.T) {
	t.Parallel()

	srv := newRecordingServer(t, http.StatusOK, `{"completion":" A derivative is a rate."}`)
	d := NewDispatcher(Config{Keys: SystemKeys{Anthropic: "anthropic-key"}})

	req := baseRequest(Descriptor{Name: "claude", Kind: KindClaude, Endpoint: srv.URL + "/v1/complete", RequiresKey: true})
	req.Preference = &Preference{CustomParameters: map[string]any{"max_tokens_to_sample": 100}}

	res := d.Dispatch(context.Background(), req)
	require.True(t, res.OK(), res.FailureReason)
	assert.Equal(t, " A derivative is a rate.", res.Text)

	assert.Equal(t, "anthropic-key", srv.last().headers.Get("x-api-key"))
	assert.Empty(t, srv.last().headers.Get("Authorization"))
	assert.Equal(t, "application/json", srv.last().headers.Get("Content-Type"))
	assert.Equal(t, DefaultClaudeModel, srv.last().body["model"])
	assert.Equal(t, "Relevant information: "+testInfo.Context()+"\n\nHuman: hi\nAssistant: hello\n\n\nHuman: What is a derivative?\n\nAssistant:", srv.last().body["prompt"])
	assert.InDelta(t, 100, srv.last().body["max_tokens_to_sample"], 1e-9)
	assert.InDelta(t, 0.7, srv.last().body["temperature"], 1e-9)

	t.Run("no relevant info", func(t *testing.T) {
		t.Parallel()
		srv := newRecordingServer(t, http.StatusOK, `{"completion":"ok"}`)
		req := baseRequest(Descriptor{Name: "claude", Kind: KindClaude, Endpoint: srv.URL + "/v1/complete", RequiresKey: true})
		req.RelevantInfo = nil

		res := d.Dispatch(context.Background(), req)
		require.True(t, res.OK(), res.FailureReason)
		assert.Equal(t, "Human: hi\nAssistant: hello\n\n\nHuman: What is a derivative?\n\nAssistant:", srv.last().body["prompt"])
	})
}

func TestDispatcher_Custom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		requiresKey bool
		prefKey     string
		wantAuth    string
	}{
		{name: "key required and supplied", requiresKey: true, prefKey: "learner-key", wantAuth: "Bearer learner-key"},
		{name: "key not required", requiresKey: false, prefKey: "learner-key", wantAuth: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newRecordingServer(t, http.StatusOK, `{"response":"custom answer"}`)
			d := NewDispatcher(Config{})

			req := baseRequest(Descriptor{
				Name:              "mine",
				Kind:              KindCustom,
				Endpoint:          srv.URL + "/generate",
				RequiresKey:       tt.requiresKey,
				DefaultParameters: map[string]any{"beam": 2, "style": "socratic"},
			})
			req.Preference = &Preference{APIKey: tt.prefKey, CustomParameters: map[string]any{"beam": 4}}

			res := d.Dispatch(context.Background(), req)
			require.True(t, res.OK(), res.FailureReason)
			assert.Equal(t, "custom answer", res.Text)
			assert.Equal(t, tt.wantAuth, srv.last().headers.Get("Authorization"))
			assert.Equal(t, "/generate", srv.last().path)
			assert.Equal(t, "What is a derivative?", srv.last().body["message"])
			assert.InDelta(t, 4, srv.last().body["beam"], 1e-9)
			assert.Equal(t, "socratic", srv.last().body["style"])

			profile, ok := srv.last().body["user_profile"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "visual", profile["learning_style"])

			history, ok := srv.last().body["conversation_history"].([]any)
			require.True(t, ok)
			assert.Len(t, history, 1)

			info, ok := srv.last().body["relevant_info"].(map[string]any)
			require.True(t, ok)
			assert.Len(t, info, len(testInfo.Map()))
		})
	}
}

func TestDispatcher_LlamaUsesCompatibleBaseURL(t *testing.T) {
	t.Parallel()

	srv := newRecordingServer(t, http.StatusOK, chatCompletionOK)
	d := NewDispatcher(Config{Keys: SystemKeys{Llama: "llama-key"}, LlamaBaseURL: srv.URL + "/openai/v1"})

	res := d.Dispatch(context.Background(), baseRequest(Descriptor{Name: "llama", Kind: KindLlama, RequiresKey: true}))
	require.True(t, res.OK(), res.FailureReason)
	assert.Equal(t, "/openai/v1/chat/completions", srv.last().path)
	assert.Equal(t, "Bearer llama-key", srv.last().headers.Get("Authorization"))
	assert.Equal(t, DefaultLlamaModel, srv.last().body["model"])
}

func TestDispatcher_Gemini(t *testing.T) {
	t.Parallel()

	srv := newRecordingServer(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"Gemini explains derivatives."}]}}]}`)
	d := NewDispatcher(Config{Keys: SystemKeys{Gemini: "gemini-key"}})

	res := d.Dispatch(context.Background(), baseRequest(Descriptor{
		Name: "gemini", Kind: KindGemini, Endpoint: srv.URL + "/", RequiresKey: true,
	}))
	require.True(t, res.OK(), res.FailureReason)
	assert.Equal(t, "Gemini explains derivatives.", res.Text)
	assert.True(t, strings.HasSuffix(srv.last().path, DefaultGeminiModel+":generateContent"), srv.last().path)
	assert.Equal(t, "gemini-key", srv.last().headers.Get("x-goog-api-key"))
}

type fakeQA struct {
	answer   string
	err      error
	question string
	context  string
}

func (f *fakeQA) Answer(_ context.Context, question, context string) (string, error) {
	f.question, f.context = question, context
	return f.answer, f.err
}

func TestDispatcher_BERT(t *testing.T) {
	t.Parallel()

	t.Run("answers from relevant info", func(t *testing.T) {
		t.Parallel()
		qa := &fakeQA{answer: "the mathematical study of continuous change"}
		d := NewDispatcher(Config{QA: qa})

		res := d.Dispatch(context.Background(), baseRequest(Descriptor{Name: "bert", Kind: KindBERT}))
		require.True(t, res.OK(), res.FailureReason)
		assert.Equal(t, qa.answer, res.Text)
		assert.Equal(t, "What is a derivative?", qa.question)
		assert.Equal(t, testInfo.Context(), qa.context)
	})

	t.Run("no context", func(t *testing.T) {
		t.Parallel()
		d := NewDispatcher(Config{QA: &fakeQA{answer: "x"}})
		req := baseRequest(Descriptor{Name: "bert", Kind: KindBERT})
		req.RelevantInfo = nil
		assert.Equal(t, ReasonNoContext, d.Dispatch(context.Background(), req).FailureReason)
	})

	t.Run("qa failure", func(t *testing.T) {
		t.Parallel()
		d := NewDispatcher(Config{QA: &fakeQA{err: errors.New("model loading")}})
		res := d.Dispatch(context.Background(), baseRequest(Descriptor{Name: "bert", Kind: KindBERT}))
		assert.Equal(t, ReasonRequestFailed, res.FailureReason)
	})
}

func TestDispatcher_BindAdaptsToGenerator(t *testing.T) {
	t.Parallel()

	srv := newRecordingServer(t, http.StatusOK, `{"response":"bound answer"}`)
	d := NewDispatcher(Config{})

	var gen nlp.Generator = d.Bind(Descriptor{Name: "mine", Kind: KindCustom, Endpoint: srv.URL}, nil)
	out := gen.Generate(context.Background(), nlp.Prompt{Message: "hello", Profile: testProfile})
	assert.Equal(t, nlp.Generation{Text: "bound answer", Model: "mine"}, out)

	failing := d.Bind(Descriptor{Name: "broken", Kind: KindCustom}, nil)
	out = failing.Generate(context.Background(), nlp.Prompt{Message: "hello"})
	assert.Equal(t, ReasonMissingEndpoint, out.FailureReason)
	assert.Empty(t, out.Text)
}
