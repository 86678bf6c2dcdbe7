package providers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/c360studio/brandstudio/genai"
	"github.com/c360studio/brandstudio/model"
)

// OpenAIProvider implements the OpenAI images API. It also works with
// OpenAI-compatible image gateways.
type OpenAIProvider struct{}

func init() {
	genai.RegisterProvider(&OpenAIProvider{})
}

// Name returns the provider identifier.
func (o *OpenAIProvider) Name() string {
	return "openai"
}

// Supports reports image and logo only.
func (o *OpenAIProvider) Supports(kind model.Kind) bool {
	return kind == model.KindImage || kind == model.KindLogo
}

// BuildURL constructs the images endpoint.
func (o *OpenAIProvider) BuildURL(baseURL, _ string, _ model.Kind) string {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, "/images/generations") {
		return baseURL
	}
	return baseURL + "/images/generations"
}

// SetHeaders adds OpenAI authentication headers.
func (o *OpenAIProvider) SetHeaders(req *http.Request, apiKey string) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

type openAIImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// imageSize maps an aspect ratio onto a supported size.
func imageSize(modelName, aspect string) string {
	portrait := "1024x1536"
	if strings.HasPrefix(modelName, "dall-e") {
		portrait = "1024x1792"
	}
	switch aspect {
	case "9:16":
		return portrait
	case "1:1", "":
		return "1024x1024"
	}
	return ""
}

// BuildRequestBody creates the JSON request body.
func (o *OpenAIProvider) BuildRequestBody(modelName string, req genai.Request) ([]byte, error) {
	if !o.Supports(req.Kind) {
		return nil, fmt.Errorf("openai provider does not support %s", req.Kind)
	}
	body := openAIImageRequest{
		Model:  modelName,
		Prompt: req.Prompt,
		N:      1,
		Size:   imageSize(modelName, req.AspectRatio),
	}
	// gpt-image models always return base64 and reject response_format.
	if !strings.HasPrefix(modelName, "gpt-image") {
		body.ResponseFormat = "b64_json"
	}
	return json.Marshal(body)
}

type openAIImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// ParseResponse decodes base64 images.
func (o *OpenAIProvider) ParseResponse(body []byte, modelName string, _ model.Kind) (*genai.Result, error) {
	var resp openAIImageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	result := &genai.Result{Model: modelName}
	for _, d := range resp.Data {
		if d.B64JSON == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		result.Parts = append(result.Parts, genai.InlineData{MIMEType: "image/png", Data: data})
	}
	return result, nil
}
