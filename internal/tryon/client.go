// Package tryon wraps the Gemini API behind the two calls the swap
// pipeline needs: a vision call that inventories the garments in an
// outfit photo, and an image-generation call that renders the person
// wearing them.
package tryon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/vestyhq/go-vesty-backend/internal/config"
)

// ErrCallTimeout marks a call that exceeded the configured deadline.
// Callers surface it as a distinct failure reason because generation
// is the longest-latency step in the pipeline.
var ErrCallTimeout = errors.New("tryon: model call timed out")

// ErrEmptyDescription is returned when the vision call succeeds but
// yields no usable text.
var ErrEmptyDescription = errors.New("tryon: model returned no outfit description")

// NoImageError is returned when the generation call completes without
// an inline image payload. Explanation carries whatever prose the
// model produced instead, so the failure shown to the user is not
// opaque.
type NoImageError struct {
	Explanation string
}

func (e *NoImageError) Error() string {
	if e.Explanation == "" {
		return "tryon: model returned no image payload"
	}
	return "tryon: model returned no image payload: " + e.Explanation
}

const describePrompt = `Inventory every visible garment in this photo as a structured natural-language list. For each garment give its type, color, pattern, and style. Describe only clothing and accessories that are actually visible. Do not describe the person wearing them or the background.`

const generatePromptTemplate = `Edit this photo so the person is wearing the following outfit: %s

Preserve the person's pose, identity, face, body proportions, and the photo's background and lighting exactly as they are. Change only the clothing to match the description. Return the edited photograph.`

const explainPromptTemplate = `An attempt to render a person wearing this outfit failed: %s

In one or two sentences, explain in plain language a likely reason the outfit could not be applied to a photo.`

// Client issues generative calls against the Gemini API.
type Client struct {
	models        modelCaller
	describeModel string
	generateModel string
	timeout       time.Duration
}

// modelCaller is the slice of genai.Models the client uses. Tests
// substitute a fake; production wires the real SDK.
type modelCaller interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// New dials the Gemini API with the configured key.
func New(ctx context.Context, cfg config.AIConfig) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &Client{
		models:        gc.Models,
		describeModel: cfg.DescribeModel,
		generateModel: cfg.GenerateModel,
		timeout:       cfg.CallTimeout,
	}, nil
}

// DescribeOutfit runs the vision call against the outfit photo and
// returns the garment inventory text. No retry: any failure here is a
// hard failure for the whole swap.
func (c *Client) DescribeOutfit(ctx context.Context, image []byte, mimeType string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(describePrompt),
		}, genai.RoleUser),
	}

	resp, err := c.call(ctx, c.describeModel, contents)
	if err != nil {
		return "", err
	}

	desc := strings.TrimSpace(collectText(resp))
	if desc == "" {
		return "", ErrEmptyDescription
	}
	return desc, nil
}

// GenerateTryOn asks the image model to re-dress the person photo per
// the garment description. It returns the generated image bytes and
// their MIME type. When the model answers with prose instead of an
// image, a follow-up text call turns that into a NoImageError with a
// human-readable explanation.
func (c *Client) GenerateTryOn(ctx context.Context, person []byte, personMIME, description string) ([]byte, string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(person, personMIME),
			genai.NewPartFromText(fmt.Sprintf(generatePromptTemplate, description)),
		}, genai.RoleUser),
	}

	resp, err := c.call(ctx, c.generateModel, contents)
	if err != nil {
		return nil, "", err
	}

	if data, mime, ok := firstInlineImage(resp); ok {
		return data, mime, nil
	}

	return nil, "", &NoImageError{Explanation: c.explainFailure(ctx, description)}
}

// explainFailure makes a best-effort text call so the user sees why
// generation produced no image. Errors here are swallowed; the swap is
// already failed.
func (c *Client) explainFailure(ctx context.Context, description string) string {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(fmt.Sprintf(explainPromptTemplate, description)),
		}, genai.RoleUser),
	}
	resp, err := c.call(ctx, c.describeModel, contents)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(collectText(resp))
}

func (c *Client) call(ctx context.Context, model string, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.models.GenerateContent(cctx, model, contents, &genai.GenerateContentConfig{})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrCallTimeout, model)
		}
		return nil, fmt.Errorf("model %s: %w", model, err)
	}
	return resp, nil
}

// firstInlineImage scans the candidate parts for an inline payload.
func firstInlineImage(resp *genai.GenerateContentResponse) ([]byte, string, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, "", false
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return part.InlineData.Data, mime, true
		}
	}
	return nil, "", false
}

// collectText concatenates the text parts of the first candidate.
func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
