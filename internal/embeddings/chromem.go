package embeddings

import (
	"context"

	chromem "github.com/philippgille/chromem-go"
)

// ToChromemFunc converts an Embedder into a chromem.EmbeddingFunc.
// chromem-go expects a function that embeds a single text at a time.
func ToChromemFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		result, err := e.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

// NewEmbedder creates an Embedder for the given provider type and model.
// Supported providers: "openai", "ollama".
func NewEmbedder(providerType, apiKey, model string) (Embedder, error) {
	switch providerType {
	case "ollama":
		return NewOllamaEmbedder(model, 768, ""), nil
	default:
		return NewOpenAIEmbedder(apiKey, OpenAIModel(model)), nil
	}
}
