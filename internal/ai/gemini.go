package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	cfg "github.com/casewire/casefile-processor/config"
	"github.com/casewire/casefile-processor/pkg/logger"
)

// Embedder turns a piece of text into a fixed-dimension vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Generator produces text (optionally constrained to JSON) from a prompt.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, jsonOutput bool) (string, error)
}

// GeminiClient implements Embedder, Generator and the extractors'
// OCRClient against the Gemini API.
type GeminiClient struct {
	client         *genai.Client
	embeddingModel string
	generateModel  string
	visionModel    string
	logger         logger.Logger
}

func NewGeminiClient(ctx context.Context, conf *cfg.GeminiConfig, log logger.Logger) (*GeminiClient, error) {
	if conf.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is not configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(conf.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client:         client,
		embeddingModel: conf.EmbeddingModel,
		generateModel:  conf.GenerateModel,
		visionModel:    conf.VisionModel,
		logger:         log,
	}, nil
}

func (g *GeminiClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// EmbedText implements Embedder.
func (g *GeminiClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	em := g.client.EmbeddingModel(g.embeddingModel)

	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini embed: empty embedding in response")
	}
	return resp.Embedding.Values, nil
}

// Generate implements Generator. With jsonOutput the model is asked for
// an application/json response, which tightens (but does not guarantee)
// parseable output.
func (g *GeminiClient) Generate(ctx context.Context, systemPrompt, userPrompt string, jsonOutput bool) (string, error) {
	m := g.client.GenerativeModel(g.generateModel)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}
	if jsonOutput {
		m.ResponseMIMEType = "application/json"
	}

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return collectText(resp), nil
}

// ImageText sends inline media with an OCR instruction and returns the
// transcribed text. Used for images and for scanned PDFs without a text
// layer.
func (g *GeminiClient) ImageText(ctx context.Context, mimeType string, data []byte) (string, error) {
	m := g.client.GenerativeModel(g.visionModel)

	prompt := "Extract all visible text from this document. " +
		"Return only the text content, preserving the original layout and line breaks where possible. " +
		"If the document contains no text, return an empty response."

	resp, err := m.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: data},
		genai.Text(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("gemini vision ocr: %w", err)
	}
	return collectText(resp), nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
