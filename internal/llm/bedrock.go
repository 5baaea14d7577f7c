package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/copperline/barback/internal/config"
)

// BedrockClient implements Completer against AWS Bedrock (Claude).
// All traffic stays inside AWS, which some venues require for client
// conversation content.
type BedrockClient struct {
	client  *bedrockruntime.Client
	modelID string
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockMessage struct {
	Role    string                `json:"role"`
	Content []bedrockContentBlock `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// NewBedrockClient creates a Bedrock-backed model client.
func NewBedrockClient(ctx context.Context, cfg config.BedrockConfig) (*BedrockClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BedrockClient{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		modelID: cfg.ModelID,
	}, nil
}

// Complete invokes the model and concatenates its text blocks.
func (c *BedrockClient) Complete(ctx context.Context, r Request) (string, error) {
	maxTokens := r.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := r.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	messages := make([]bedrockMessage, 0, len(r.Messages))
	for _, m := range r.Messages {
		messages = append(messages, bedrockMessage{
			Role:    m.Role,
			Content: []bedrockContentBlock{{Type: "text", Text: m.Content}},
		})
	}

	requestBody, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		System:           r.System,
		Messages:         messages,
		Temperature:      temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		return "", fmt.Errorf("Bedrock API error: %w", err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
