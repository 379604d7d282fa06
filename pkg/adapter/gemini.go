package adapter

import (
	"context"
	"iter"

	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

type Gemini interface {
	GenerateContent(ctx context.Context, modelName string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, modelName string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
	GenerateImages(ctx context.Context, modelName, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

type GeminiClient struct {
	client *genai.Client
}

type geminiConfig struct {
	apiKey   string
	project  string
	location string
}

type GeminiOption func(*geminiConfig)

// WithAPIKey selects the Gemini Developer API backend
func WithAPIKey(apiKey string) GeminiOption {
	return func(c *geminiConfig) {
		c.apiKey = apiKey
	}
}

// WithVertexAI selects the Vertex AI backend
func WithVertexAI(project, location string) GeminiOption {
	return func(c *geminiConfig) {
		c.project = project
		c.location = location
	}
}

// NewGemini creates a genai client. An API key takes precedence over a Vertex AI
// project. With neither, model.ErrAPIKeyMissing is returned.
func NewGemini(ctx context.Context, opts ...GeminiOption) (*GeminiClient, error) {
	var cfg geminiConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var cc *genai.ClientConfig
	switch {
	case cfg.apiKey != "":
		cc = &genai.ClientConfig{
			APIKey:  cfg.apiKey,
			Backend: genai.BackendGeminiAPI,
		}
	case cfg.project != "" && cfg.location != "":
		cc = &genai.ClientConfig{
			Project:  cfg.project,
			Location: cfg.location,
			Backend:  genai.BackendVertexAI,
		}
	default:
		return nil, model.ErrAPIKeyMissing
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client",
			goerr.T(model.TagConfiguration), model.WithCode(model.CodeAPIKeyMissing))
	}

	return &GeminiClient{client: client}, nil
}

func (g *GeminiClient) GenerateContent(ctx context.Context, modelName string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content", goerr.V("model", modelName))
	}
	return resp, nil
}

func (g *GeminiClient) GenerateContentStream(ctx context.Context, modelName string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for resp, err := range g.client.Models.GenerateContentStream(ctx, modelName, contents, config) {
			if err != nil {
				yield(nil, goerr.Wrap(err, "failed to stream content", goerr.V("model", modelName)))
				return
			}
			if !yield(resp, nil) {
				return
			}
		}
	}
}

func (g *GeminiClient) GenerateImages(ctx context.Context, modelName, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	resp, err := g.client.Models.GenerateImages(ctx, modelName, prompt, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate images", goerr.V("model", modelName))
	}
	return resp, nil
}
