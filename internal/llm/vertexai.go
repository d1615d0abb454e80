package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// Defaults used when the config leaves them blank
const (
	DefaultLocation = "us-central1"
	DefaultModel    = "gemini-1.5-flash"
)

// ErrBlocked is returned when the model refuses to answer a prompt
var ErrBlocked = errors.New("response blocked by model safety filters")

const headerMappingInstruction = "You are a data-entry assistant for a recruiting CRM. " +
	"You only ever answer with a single JSON object describing which database column a spreadsheet header belongs to."

// matchSchema constrains answers to {"field": string|null, "confidence": number}
var matchSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"field":      {Type: genai.TypeString, Nullable: true},
		"confidence": {Type: genai.TypeNumber},
	},
	Required: []string{"field", "confidence"},
}

// VertexAIClient answers header mapping prompts with a Gemini model on Vertex AI
type VertexAIClient struct {
	genaiClient *genai.Client
	mapper      *genai.GenerativeModel
	modelName   string
}

// NewVertexAIClient connects using Application Default Credentials.
func NewVertexAIClient(ctx context.Context, projectID, location, modelName string) (*VertexAIClient, error) {
	if projectID == "" {
		return nil, fmt.Errorf("vertex project id not set (GOOGLE_CLOUD_PROJECT)")
	}
	if location == "" {
		location = DefaultLocation
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	gc, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	return &VertexAIClient{
		genaiClient: gc,
		mapper:      newMapperModel(gc, modelName),
		modelName:   modelName,
	}, nil
}

func newMapperModel(gc *genai.Client, modelName string) *genai.GenerativeModel {
	m := gc.GenerativeModel(modelName)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(headerMappingInstruction)}}

	// same header, same answer
	m.SetTemperature(0)
	m.SetTopK(1)
	m.SetMaxOutputTokens(256)
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = matchSchema
	return m
}

// Model returns the Gemini model name in use
func (v *VertexAIClient) Model() string { return v.modelName }

// GenerateContent sends a mapping prompt and returns the model's JSON answer
func (v *VertexAIClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := v.mapper.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%s: generate: %w", v.modelName, err)
	}
	return responseText(resp)
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("empty response")
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != genai.BlockedReasonUnspecified {
		return "", fmt.Errorf("%w: %s", ErrBlocked, fb.BlockReasonMessage)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response candidates returned")
	}

	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", ErrBlocked
	}
	if cand.Content == nil {
		return "", fmt.Errorf("candidate has no content (finish reason %v)", cand.FinishReason)
	}

	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("candidate has no text parts")
	}
	return sb.String(), nil
}

// Close releases the underlying gRPC connection
func (v *VertexAIClient) Close() error {
	return v.genaiClient.Close()
}
