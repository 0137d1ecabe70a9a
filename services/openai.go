package services

import (
	"os"
	"sync"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIClient returns the shared OpenAI client. OPENAI_BASE_URL
// points it at any OpenAI-compatible endpoint.
var DefaultOpenAIClient = sync.OnceValue(func() *openai.Client {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		panic("OPENAI_API_KEY environment variable is not set")
	}

	baseURL := os.Getenv("OPENAI_BASE_URL")
	config := openai.DefaultConfig(apiKey)

	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return openai.NewClientWithConfig(config)
})
