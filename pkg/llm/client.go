package llm

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/solitaryfield/textkg/pkg/kg/metrics"
)

// Request kinds, used as metric labels and provenance record kinds.
const (
	KindRelation    = "relation"
	KindPersonality = "personality"
)

// Request describes one completion call.
type Request struct {
	Kind     string
	Prompt   string
	JSONMode bool
}

// Client is the completion surface the pipeline depends on. Production
// code wires the OpenAI-compatible implementation; tests substitute a
// stub.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}

// OpenAI wraps an OpenAI-compatible chat API behind Client. Every call
// runs under its own timeout so one slow completion cannot stall the
// whole run.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewOpenAI creates a client for the given model. A zero timeout
// defaults to 30 seconds.
func NewOpenAI(client *openai.Client, model string, timeout time.Duration) *OpenAI {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if model == "" {
		model = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAI{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Model returns the model name stamped onto provenance records.
func (c *OpenAI) Model() string { return c.model }

// Complete sends the prompt and returns the raw reply text.
func (c *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	timer := prometheus.NewTimer(metrics.LLMCallDuration.WithLabelValues(req.Kind))
	defer timer.ObserveDuration()

	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt,
			},
		},
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		metrics.LLMCalls.WithLabelValues(req.Kind, "error").Inc()
		return "", errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		metrics.LLMCalls.WithLabelValues(req.Kind, "error").Inc()
		return "", errors.New("chat completion returned no choices")
	}

	metrics.LLMCalls.WithLabelValues(req.Kind, "success").Inc()
	c.logger.WithFields(logrus.Fields{
		"kind":  req.Kind,
		"model": c.model,
	}).Debug("Completion received")

	return resp.Choices[0].Message.Content, nil
}
