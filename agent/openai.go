package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

type OpenAIClient struct {
	apiKey string
	model  string
}

func NewOpenAIClient(model string) *OpenAIClient {
	return &OpenAIClient{
		apiKey: os.Getenv("OPENAI_KEY"),
		model:  model,
	}
}

type ResponsesRequest struct {
	Model        string      `json:"model"`
	Input        interface{} `json:"input"` // Can be string or []InputMessage
	Instructions string      `json:"instructions,omitempty"`
}

// InputMessage represents a conversation message for the API
type InputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ResponsesResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *OpenAIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// GetResponseWithContext sends a request with conversation history for context
func (c *OpenAIClient) GetResponseWithContext(messages []InputMessage, systemPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("OPENAI_KEY environment variable not set")
	}

	reqBody := ResponsesRequest{
		Model:        c.model,
		Input:        messages,
		Instructions: systemPrompt,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.openai.com/v1/responses", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response ResponsesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if response.Error != nil {
		return "", fmt.Errorf("OpenAI error: %s", response.Error.Message)
	}

	// Extract text from output
	for _, output := range response.Output {
		if output.Type == "message" && output.Role == "assistant" {
			for _, content := range output.Content {
				if content.Type == "output_text" {
					return content.Text, nil
				}
			}
		}
	}

	return "", fmt.Errorf("no text response found in OpenAI output")
}
