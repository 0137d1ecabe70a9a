package services

import (
	"os"
	"sync"

	"github.com/sashabaranov/go-openai"
)

// DefaultDeepseekClient returns the shared client for DeepSeek-style
// endpoints. Set USE_OLLAMA_DEEPSEEK=true for a local Ollama server or
// USE_OPENROUTER=true to route through OpenRouter.
var DefaultDeepseekClient = sync.OnceValue(func() *openai.Client {
	if os.Getenv("USE_OLLAMA_DEEPSEEK") == "true" {
		config := openai.DefaultConfig("not-needed")
		config.BaseURL = "http://localhost:11434/v1"
		return openai.NewClientWithConfig(config)
	}

	if os.Getenv("USE_OPENROUTER") == "true" {
		apiKey := os.Getenv("OPENROUTER_API_KEY")
		if apiKey == "" {
			panic("OPENROUTER_API_KEY environment variable is not set")
		}

		config := openai.DefaultConfig(apiKey)
		config.BaseURL = "https://openrouter.ai/api/v1"
		config.OrgID = "openrouter"
		return openai.NewClientWithConfig(config)
	}

	apiKey := os.Getenv("DEEPSEEK_API_KEY")
	if apiKey == "" {
		panic("DEEPSEEK_API_KEY environment variable is not set")
	}

	baseURL := os.Getenv("DEEPSEEK_API_BASE")
	if baseURL == "" {
		baseURL = "https://api.deepseek.com/v1"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	return openai.NewClientWithConfig(config)
})
