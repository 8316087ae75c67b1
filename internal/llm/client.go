// Package llm turns remediation tasks into patch proposals by asking a
// chat completion model, falling back through an ordered model list.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/micareg/internal/remediation"
)

var (
	// ErrNoModels is returned when the client has no model to try.
	ErrNoModels = errors.New("no models configured")

	// ErrNoCredentials is returned when no API key is configured.
	ErrNoCredentials = errors.New("no LLM API key configured")

	// ErrEmptyResponse means the model returned nothing usable.
	ErrEmptyResponse = errors.New("empty model response")

	// ErrContract means the reply did not match the response contract.
	ErrContract = errors.New("response contract violation")
)

// Completer sends one chat completion to a model and returns the text of
// the first choice.
type Completer interface {
	Complete(ctx context.Context, model string, req Request) (string, error)
}

// usageReporter is implemented by completers that count tokens.
type usageReporter interface {
	Usage() TokenUsage
}

// Options configure a Client.
type Options struct {
	// Models are tried in order.
	Models []string
	// Provider is recorded on the patch.
	Provider string
	// Timeout bounds each call. Zero means no per-call limit.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client produces patches from tasks.
type Client struct {
	completer Completer
	models    []string
	provider  string
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a client around completer.
func New(completer Completer, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		completer: completer,
		models:    append([]string(nil), opts.Models...),
		provider:  opts.Provider,
		timeout:   opts.Timeout,
		logger:    logger.With("component", "llm"),
		now:       time.Now,
	}
}

// Models returns the fallback order.
func (c *Client) Models() []string {
	return append([]string(nil), c.models...)
}

// GeneratePatch runs the tasks against each model in turn and stops at
// the first model that yields at least one proposal. Failed calls and
// invalid replies skip the task, not the model. When no model yields
// anything the returned patch is empty and names the last model tried;
// callers check len(Proposals). An error is returned only when there is
// no model to try or ctx is done.
func (c *Client) GeneratePatch(ctx context.Context, tasks []remediation.Task) (*remediation.Patch, error) {
	if len(c.models) == 0 {
		return nil, ErrNoModels
	}

	var (
		tried     []string
		proposals []remediation.Proposal
	)
	before := c.tokens()
	for _, model := range c.models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tried = append(tried, model)

		proposals = c.runModel(ctx, model, tasks)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(proposals) > 0 {
			break
		}
		c.logger.Warn("model produced no proposals", "model", model, "tasks", len(tasks))
	}

	used := tried[len(tried)-1]
	if proposals == nil {
		proposals = []remediation.Proposal{}
	}

	tokensUsed := c.tokens() - before
	c.logger.Info("patch generated",
		"model", used,
		"proposals", len(proposals),
		"tasks", len(tasks),
		"tokens", tokensUsed,
	)

	return &remediation.Patch{
		PatchID:       uuid.NewString(),
		GeneratedAt:   c.now().UTC(),
		ModelProvider: c.provider,
		ModelName:     used,
		Proposals:     proposals,
		Metadata: remediation.PatchMetadata{
			ModelsTried:    tried,
			ModelUsed:      used,
			TasksProcessed: len(proposals),
			TasksTotal:     len(tasks),
			TokensUsed:     tokensUsed,
		},
	}, nil
}

// tokens returns the completer's running token total, or zero when it
// does not count tokens.
func (c *Client) tokens() int {
	if u, ok := c.completer.(usageReporter); ok {
		return u.Usage().TotalTokens
	}
	return 0
}

// runModel asks model about every task, one call at a time.
func (c *Client) runModel(ctx context.Context, model string, tasks []remediation.Task) []remediation.Proposal {
	var out []remediation.Proposal
	for _, task := range tasks {
		if ctx.Err() != nil {
			return out
		}
		p, err := c.propose(ctx, model, task)
		if err != nil {
			c.logger.Warn("task skipped",
				"model", model,
				"task_id", task.TaskID,
				"column", task.Column,
				"error", err,
			)
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *Client) propose(ctx context.Context, model string, task remediation.Task) (remediation.Proposal, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	text, err := c.completer.Complete(callCtx, model, BuildPrompt(task))
	if err != nil {
		return remediation.Proposal{}, err
	}
	c.logger.Debug("model reply", "model", model, "task_id", task.TaskID, "reply", compactJSON(stripFences(text)))

	return ParseProposal(task.TaskID, text)
}
