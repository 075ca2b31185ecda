package generate

import (
	"context"
	"strings"

	"github.com/sells-group/control-assist/internal/model"
	"github.com/sells-group/control-assist/pkg/anthropic"
	"github.com/sells-group/control-assist/pkg/ollama"
	"github.com/sells-group/control-assist/pkg/openai"
)

// Request is one prompt sent to a provider.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Response is the raw provider output.
type Response struct {
	Text           string
	Model          string
	PromptTokens   int
	ResponseTokens int
}

// Provider is a single text-generation backend.
type Provider interface {
	Kind() model.ProviderKind
	Model() string
	Endpoint() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// localProvider adapts the Ollama client.
type localProvider struct {
	client   ollama.Client
	model    string
	endpoint string
}

// NewLocalProvider wraps an Ollama client.
func NewLocalProvider(client ollama.Client, modelName, endpoint string) Provider {
	return &localProvider{client: client, model: modelName, endpoint: endpoint}
}

func (p *localProvider) Kind() model.ProviderKind { return model.ProviderLocal }
func (p *localProvider) Model() string            { return p.model }
func (p *localProvider) Endpoint() string         { return p.endpoint }

func (p *localProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	temp, topP := req.Temperature, req.TopP
	opts := &ollama.Options{Temperature: &temp, TopP: &topP}
	if req.MaxTokens > 0 {
		n := req.MaxTokens
		opts.NumPredict = &n
	}

	resp, err := p.client.Generate(ctx, ollama.GenerateRequest{
		Model:   p.model,
		System:  req.System,
		Prompt:  req.Prompt,
		Options: opts,
	})
	if err != nil {
		return nil, err
	}
	return &Response{
		Text:           resp.Response,
		Model:          firstNonEmpty(resp.Model, p.model),
		PromptTokens:   resp.PromptEvalCount,
		ResponseTokens: resp.EvalCount,
	}, nil
}

// chatProvider adapts the chat-completion client.
type chatProvider struct {
	client   openai.Client
	model    string
	endpoint string
}

// NewChatProvider wraps a chat-completion client.
func NewChatProvider(client openai.Client, modelName, endpoint string) Provider {
	return &chatProvider{client: client, model: modelName, endpoint: endpoint}
}

func (p *chatProvider) Kind() model.ProviderKind { return model.ProviderCloudChat }
func (p *chatProvider) Model() string            { return p.model }
func (p *chatProvider) Endpoint() string         { return p.endpoint }

func (p *chatProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := p.client.ChatCompletion(ctx, openai.ChatRequest{
		Model:       p.model,
		System:      req.System,
		User:        req.Prompt,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	return &Response{
		Text:           resp.Content,
		Model:          firstNonEmpty(resp.Model, p.model),
		PromptTokens:   resp.PromptTokens,
		ResponseTokens: resp.CompletionTokens,
	}, nil
}

// converseProvider adapts the messages client.
type converseProvider struct {
	client   anthropic.Client
	model    string
	endpoint string
}

// NewConverseProvider wraps a messages client.
func NewConverseProvider(client anthropic.Client, modelName, endpoint string) Provider {
	return &converseProvider{client: client, model: modelName, endpoint: endpoint}
}

func (p *converseProvider) Kind() model.ProviderKind { return model.ProviderCloudConverse }
func (p *converseProvider) Model() string            { return p.model }
func (p *converseProvider) Endpoint() string         { return p.endpoint }

// defaultConverseMaxTokens is used when no limit is configured; the API
// requires one.
const defaultConverseMaxTokens = 512

func (p *converseProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultConverseMaxTokens
	}
	temp := req.Temperature
	mr := anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	}
	if req.TopP > 0 && req.TopP < 1 {
		topP := req.TopP
		mr.TopP = &topP
	}

	resp, err := p.client.CreateMessage(ctx, mr)
	if err != nil {
		return nil, err
	}
	resp.Usage.LogUsage(p.model, "generate")
	return &Response{
		Text:           resp.Text(),
		Model:          firstNonEmpty(resp.Model, p.model),
		PromptTokens:   int(resp.Usage.InputTokens),
		ResponseTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
