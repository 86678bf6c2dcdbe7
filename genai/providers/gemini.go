// Package providers registers the generation API dialects with genai.
// Import it for side effects:
//
//	import _ "github.com/c360studio/brandstudio/genai/providers"
package providers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/c360studio/brandstudio/genai"
	"github.com/c360studio/brandstudio/model"
)

// DefaultGeminiURL is the public Generative Language API.
const DefaultGeminiURL = "https://generativelanguage.googleapis.com"

// GeminiProvider implements the Gemini generateContent and predictLongRunning APIs.
type GeminiProvider struct{}

func init() {
	genai.RegisterProvider(&GeminiProvider{})
}

// Name returns the provider identifier.
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// Supports reports every kind; Gemini serves images, video and speech.
func (g *GeminiProvider) Supports(kind model.Kind) bool {
	return kind.IsValid()
}

func geminiBase(baseURL string) string {
	if baseURL == "" {
		baseURL = DefaultGeminiURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return strings.TrimSuffix(baseURL, "/v1beta")
}

// BuildURL constructs the model method URL. Video uses the long-running method.
func (g *GeminiProvider) BuildURL(baseURL, modelName string, kind model.Kind) string {
	method := "generateContent"
	if kind == model.KindVideo {
		method = "predictLongRunning"
	}
	return fmt.Sprintf("%s/v1beta/models/%s:%s", geminiBase(baseURL), modelName, method)
}

// SetHeaders adds the API key header.
func (g *GeminiProvider) SetHeaders(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("x-goog-api-key", apiKey)
	}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type geminiSpeechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string            `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig  `json:"imageConfig,omitempty"`
	SpeechConfig       *geminiSpeechConfig `json:"speechConfig,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type veoInstance struct {
	Prompt string `json:"prompt"`
}

type veoRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters struct {
		AspectRatio string `json:"aspectRatio,omitempty"`
		Resolution  string `json:"resolution,omitempty"`
		SampleCount int    `json:"sampleCount"`
	} `json:"parameters"`
}

// BuildRequestBody creates the JSON request body.
func (g *GeminiProvider) BuildRequestBody(_ string, req genai.Request) ([]byte, error) {
	if req.Kind == model.KindVideo {
		body := veoRequest{Instances: []veoInstance{{Prompt: req.Prompt}}}
		body.Parameters.AspectRatio = req.AspectRatio
		body.Parameters.Resolution = req.Resolution
		body.Parameters.SampleCount = 1
		return json.Marshal(body)
	}

	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
	}
	switch req.Kind {
	case model.KindImage, model.KindLogo:
		body.GenerationConfig = &geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        &geminiImageConfig{AspectRatio: req.AspectRatio},
		}
	case model.KindSpeech:
		sc := &geminiSpeechConfig{}
		sc.VoiceConfig.PrebuiltVoiceConfig.VoiceName = req.Voice
		body.GenerationConfig = &geminiGenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       sc,
		}
	}
	return json.Marshal(body)
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	ModelVersion string `json:"modelVersion"`
}

type geminiOperation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// ParseResponse extracts inline media, or the operation handle for video.
func (g *GeminiProvider) ParseResponse(body []byte, modelName string, kind model.Kind) (*genai.Result, error) {
	if kind == model.KindVideo {
		op, err := g.ParseOperation(body)
		if err != nil {
			return nil, err
		}
		return &genai.Result{Model: modelName, Operation: op}, nil
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	result := &genai.Result{Model: modelName}
	if resp.ModelVersion != "" {
		result.Model = resp.ModelVersion
	}
	if len(resp.Candidates) == 0 {
		return result, nil
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData == nil {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return nil, fmt.Errorf("decode inline data: %w", err)
		}
		result.Parts = append(result.Parts, genai.InlineData{
			MIMEType: part.InlineData.MIMEType,
			Data:     data,
		})
	}
	return result, nil
}

// OperationURL returns the status URL for a long-running operation.
func (g *GeminiProvider) OperationURL(baseURL, name string) string {
	return fmt.Sprintf("%s/v1beta/%s", geminiBase(baseURL), strings.TrimPrefix(name, "/"))
}

// ParseOperation decodes an operation status body.
func (g *GeminiProvider) ParseOperation(body []byte) (*genai.Operation, error) {
	var raw geminiOperation
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal operation: %w", err)
	}

	op := &genai.Operation{Name: raw.Name, Done: raw.Done}
	if raw.Error != nil {
		op.Error = fmt.Sprintf("%d: %s", raw.Error.Code, raw.Error.Message)
	}
	if raw.Response != nil {
		if samples := raw.Response.GenerateVideoResponse.GeneratedSamples; len(samples) > 0 {
			op.VideoURI = samples[0].Video.URI
		}
	}
	return op, nil
}
