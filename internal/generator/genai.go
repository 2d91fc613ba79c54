package generator

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/hpungsan/chatbox/internal/errors"
)

// GenAIBackend implements Backend with Google's Gemini API.
type GenAIBackend struct {
	client *genai.Client
}

// NewGenAIBackend creates a Gemini-backed Backend.
// An empty apiKey is a configuration error; no request can be made without one.
func NewGenAIBackend(ctx context.Context, apiKey string) (*GenAIBackend, error) {
	if apiKey == "" {
		return nil, errors.NewConfiguration("API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.NewConfiguration(fmt.Sprintf("failed to create GenAI client: %v", err))
	}

	return &GenAIBackend{client: client}, nil
}

// GenerateJSON sends a structured-output request and returns the response text.
func (b *GenAIBackend) GenerateJSON(ctx context.Context, model, instruction string, schema *genai.Schema) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, model,
		genai.Text(instruction),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	)
	if err != nil {
		return "", fmt.Errorf("GenAI generate content failed: %w", err)
	}
	return resp.Text(), nil
}

// GenerateImages sends an image request and returns every image carrying bytes.
func (b *GenAIBackend) GenerateImages(ctx context.Context, model, instruction string, opts ImageOptions) ([]Image, error) {
	resp, err := b.client.Models.GenerateImages(ctx, model, instruction, &genai.GenerateImagesConfig{
		NumberOfImages: int32(opts.Count),
		OutputMIMEType: opts.MIMEType,
		AspectRatio:    opts.AspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI generate images failed: %w", err)
	}

	images := make([]Image, 0, len(resp.GeneratedImages))
	for _, gen := range resp.GeneratedImages {
		if gen == nil || gen.Image == nil || len(gen.Image.ImageBytes) == 0 {
			continue
		}
		images = append(images, Image{
			Data:     gen.Image.ImageBytes,
			MIMEType: gen.Image.MIMEType,
		})
	}
	return images, nil
}
