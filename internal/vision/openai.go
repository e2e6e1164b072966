package vision

import (
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

//go:embed prompts/inspect_photo.txt
var inspectPrompt string

const openAIModel = openai.ChatModelGPT4_1Mini

// inspectionPayload is the JSON shape the model is asked to produce. The
// orientation field uses 0 for upright, which maps to a nil pointer.
type inspectionPayload struct {
	BlurScore   *float64 `json:"blur_score"`
	Exposure    *string  `json:"exposure"`
	FaceIssues  []string `json:"face_issues"`
	Orientation int      `json:"orientation"`
	Screenshot  bool     `json:"screenshot"`
	Confidence  float64  `json:"confidence"`
}

// OpenAIProvider inspects photos with an OpenAI vision chat model.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates a provider using the given API key.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{client: &client}
}

func (p *OpenAIProvider) Name() string {
	return openAIModel
}

// Inspect sends a downsized photo to the model and parses the structured
// verdict, feeding parse errors back for up to five attempts.
func (p *OpenAIProvider) Inspect(ctx context.Context, imageData []byte, meta *PhotoMeta) (*Inspection, error) {
	const maxRetries = 5

	resized, err := resizeForUpload(imageData, 800)
	if err != nil {
		return nil, fmt.Errorf("failed to resize image: %w", err)
	}

	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(resized)
	userMessage := buildInspectMessage(meta)

	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(inspectPrompt),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.TextContentPart(userMessage),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    imageURL,
							Detail: "low",
						}),
					},
				},
			},
		},
	}

	var lastError error
	var lastResponse string

	for range maxRetries {
		resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    openAIModel,
			Messages: messages,
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
			MaxTokens: openai.Int(300),
		})
		if err != nil {
			return nil, fmt.Errorf("OpenAI API error: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("no response from OpenAI")
		}

		content := resp.Choices[0].Message.Content
		lastResponse = content

		var payload inspectionPayload
		if err := json.Unmarshal([]byte(content), &payload); err != nil {
			lastError = err
			messages = append(messages,
				openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						Content: openai.ChatCompletionAssistantMessageParamContentUnion{
							OfString: openai.String(content),
						},
					},
				},
				openai.ChatCompletionMessageParamUnion{
					OfUser: &openai.ChatCompletionUserMessageParam{
						Content: openai.ChatCompletionUserMessageParamContentUnion{
							OfString: openai.String(fmt.Sprintf("JSON parse error: %v. Please fix the JSON and try again. Remember to escape quotes inside strings with backslash.", err)),
						},
					},
				},
			)
			continue
		}

		return payload.toInspection(), nil
	}

	return nil, fmt.Errorf("failed to parse inspection JSON after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}

func (p *inspectionPayload) toInspection() *Inspection {
	out := &Inspection{
		BlurScore:  p.BlurScore,
		Screenshot: p.Screenshot,
		Confidence: p.Confidence,
	}
	if p.Exposure != nil && *p.Exposure != "" {
		exposure := parseExposure(*p.Exposure)
		if exposure != "" {
			out.Exposure = &exposure
		}
	}
	for _, issue := range p.FaceIssues {
		if fi := parseFaceIssue(issue); fi != "" {
			out.FaceIssues = append(out.FaceIssues, fi)
		}
	}
	if p.Orientation != 0 {
		rotation := p.Orientation
		out.Orientation = &rotation
	}
	return out
}

func buildInspectMessage(meta *PhotoMeta) string {
	if meta == nil {
		return "Inspect this photo."
	}

	var parts []string
	parts = append(parts, "Inspect this photo.")
	if meta.Name != "" {
		parts = append(parts, "Filename: "+meta.Name)
	}
	if meta.TakenAt != "" {
		parts = append(parts, "Taken at: "+meta.TakenAt)
	}
	if meta.Width > 0 && meta.Height > 0 {
		parts = append(parts, fmt.Sprintf("Dimensions: %dx%d", meta.Width, meta.Height))
	}
	if meta.ScreenLike {
		parts = append(parts, "Note: dimensions match a common device screen resolution.")
	}
	return strings.Join(parts, "\n")
}
