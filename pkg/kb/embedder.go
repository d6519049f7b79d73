package kb

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// queryDimensions matches the width of the kb_documents embedding column;
// the model is asked to truncate its output to this size.
const queryDimensions = 1536

// GenAIEmbedder embeds queries with the Gemini embedding API.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
}

func NewGenAIEmbedder(client *genai.Client, model string) *GenAIEmbedder {
	if model == "" {
		model = "gemini-embedding-001"
	}
	return &GenAIEmbedder{client: client, model: model}
}

func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, embedConfig())
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned for query")
	}
	return result.Embeddings[0].Values, nil
}

func embedConfig() *genai.EmbedContentConfig {
	dim := int32(queryDimensions)
	return &genai.EmbedContentConfig{
		TaskType:             "RETRIEVAL_QUERY",
		OutputDimensionality: &dim,
	}
}
