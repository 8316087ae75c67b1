package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"

	"github.com/JonMunkholm/micareg/internal/config"
)

// Provider names accepted by NewAzureCompleter.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// TokenUsage accumulates token counts across calls.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// AzureCompleter talks to an OpenAI-compatible endpoint (DeepSeek, OpenAI)
// or to Azure OpenAI, where the model name is the deployment name.
type AzureCompleter struct {
	client      *azopenai.Client
	temperature float32
	maxTokens   int32

	mu    sync.Mutex
	usage TokenUsage
}

// NewAzureCompleter creates a completer for provider at endpoint.
func NewAzureCompleter(cfg config.LLMConfig) (*AzureCompleter, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoCredentials
	}

	cred := azcore.NewKeyCredential(cfg.APIKey)

	var (
		client *azopenai.Client
		err    error
	)
	switch cfg.Provider {
	case ProviderAzure:
		client, err = azopenai.NewClientWithKeyCredential(cfg.Endpoint, cred, nil)
	case ProviderOpenAI, "":
		client, err = azopenai.NewClientForOpenAI(cfg.Endpoint, cred, nil)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	return &AzureCompleter{
		client:      client,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
	}, nil
}

// Complete implements Completer.
func (a *AzureCompleter) Complete(ctx context.Context, model string, req Request) (string, error) {
	messages := []azopenai.ChatRequestMessageClassification{
		&azopenai.ChatRequestSystemMessage{
			Content: azopenai.NewChatRequestSystemMessageContent(req.System),
		},
		&azopenai.ChatRequestUserMessage{
			Content: azopenai.NewChatRequestUserMessageContent(req.User),
		},
	}

	resp, err := a.client.GetChatCompletions(ctx, azopenai.ChatCompletionsOptions{
		DeploymentName: to.Ptr(model),
		Messages:       messages,
		Temperature:    to.Ptr(a.temperature),
		MaxTokens:      to.Ptr(a.maxTokens),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("chat completion with %s: %w", model, err)
	}
	a.addUsage(resp.Usage)

	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
		return "", ErrEmptyResponse
	}
	return *resp.Choices[0].Message.Content, nil
}

func (a *AzureCompleter) addUsage(u *azopenai.CompletionsUsage) {
	if u == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if u.PromptTokens != nil {
		a.usage.PromptTokens += int(*u.PromptTokens)
	}
	if u.CompletionTokens != nil {
		a.usage.CompletionTokens += int(*u.CompletionTokens)
	}
	if u.TotalTokens != nil {
		a.usage.TotalTokens += int(*u.TotalTokens)
	}
}

// Usage returns the tokens consumed so far.
func (a *AzureCompleter) Usage() TokenUsage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

// NewFromConfig wires a Client to the configured endpoint.
func NewFromConfig(cfg config.LLMConfig, opts Options) (*Client, error) {
	completer, err := NewAzureCompleter(cfg)
	if err != nil {
		return nil, err
	}
	if len(opts.Models) == 0 {
		opts.Models = cfg.Models
	}
	if opts.Provider == "" {
		opts.Provider = cfg.Provider
	}
	if opts.Timeout == 0 {
		opts.Timeout = cfg.Timeout
	}
	return New(completer, opts), nil
}
