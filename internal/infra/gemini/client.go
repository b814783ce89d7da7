package gemini

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

// Completer sends a prompt to a model and returns its raw text answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client is a Completer backed by the Gemini API. It asks for JSON matching
// quizSchema.
type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is missing")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   quizSchema,
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

var quizSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"topic":       {Type: genai.TypeString},
		"channelName": {Type: genai.TypeString},
		"questions": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"question":           {Type: genai.TypeString},
					"options":            {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
					"correctAnswerIndex": {Type: genai.TypeInteger},
				},
				Required: []string{"question", "options", "correctAnswerIndex"},
			},
		},
	},
	Required: []string{"topic", "questions"},
}
