// Package extract turns receipt PDFs into structured invoice pages using a
// multimodal language model. The model is constrained to a JSON schema that
// mirrors the page structure, so the response parses directly into the
// invoice types.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"kassabot/internal/logging"
	"kassabot/internal/models"
)

// Extractor reads the line items of a receipt document, submitted either as
// the PDF itself or as pre-rendered page images.
type Extractor interface {
	Extract(ctx context.Context, pdf []byte, name string) ([]models.InvoicePage, error)
	ExtractImages(ctx context.Context, images [][]byte, name string) ([]models.InvoicePage, error)
}

// extractionPrompt asks for one object per receipt page. The schema carries
// the field-level constraints; the prompt covers what a schema cannot say.
const extractionPrompt = `You are given a scanned grocery receipt as a PDF.
Extract every printed line item of every page, in the order they appear on
the page. For each item report the description exactly as printed, the unit
price, the quantity (number of pieces) or weight in kilograms, and the
discount percentage if one is printed on the line. Report the receipt date
as YYYY-MM-DD and the printed total amount of the receipt. Emit one object
per page.`

// GeminiExtractor implements Extractor on top of the Gemini API.
type GeminiExtractor struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
	log     logging.Logger
}

// NewGeminiExtractor creates a client for the given model name. The timeout
// bounds each Extract call.
func NewGeminiExtractor(ctx context.Context, apiKey, modelName string, timeout time.Duration, logger logging.Logger) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is not set")
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = invoiceSchema()

	return &GeminiExtractor{
		client:  client,
		model:   model,
		timeout: timeout,
		log:     logger,
	}, nil
}

// Close releases the underlying API client.
func (e *GeminiExtractor) Close() error {
	return e.client.Close()
}

// Extract sends the PDF and the extraction prompt in one request and decodes
// the schema-constrained JSON response into invoice pages.
func (e *GeminiExtractor) Extract(ctx context.Context, pdf []byte, name string) ([]models.InvoicePage, error) {
	return e.generate(ctx, name, genai.Blob{MIMEType: "application/pdf", Data: pdf})
}

// ExtractImages submits pre-rendered page images instead of the PDF, one blob
// per page in page order.
func (e *GeminiExtractor) ExtractImages(ctx context.Context, images [][]byte, name string) ([]models.InvoicePage, error) {
	if len(images) == 0 {
		return nil, &models.ExtractionError{Path: name, Err: fmt.Errorf("no page images provided")}
	}
	return e.generate(ctx, name, imageParts(images)...)
}

func imageParts(images [][]byte) []genai.Part {
	parts := make([]genai.Part, 0, len(images))
	for _, img := range images {
		parts = append(parts, genai.ImageData("jpeg", img))
	}
	return parts
}

func (e *GeminiExtractor) generate(ctx context.Context, name string, parts ...genai.Part) ([]models.InvoicePage, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := e.model.GenerateContent(ctx, append(parts, genai.Text(extractionPrompt))...)
	if err != nil {
		return nil, &models.ExtractionError{Path: name, Err: err}
	}

	raw, err := responseText(resp)
	if err != nil {
		return nil, &models.ExtractionError{Path: name, Err: err}
	}

	var pages []models.InvoicePage
	if err := json.Unmarshal([]byte(raw), &pages); err != nil {
		return nil, &models.ExtractionError{Path: name, Err: fmt.Errorf("response is not valid invoice JSON: %w", err)}
	}
	if len(pages) == 0 {
		return nil, &models.ExtractionError{Path: name, Err: fmt.Errorf("model returned no pages")}
	}

	e.log.Info("extracted invoice pages",
		logging.Field{Key: logging.FieldFile, Value: name},
		logging.Field{Key: logging.FieldCount, Value: len(pages)},
		logging.Field{Key: logging.FieldDuration, Value: time.Since(start).Milliseconds()})

	return pages, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("model returned no candidates")
	}

	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out += string(text)
		}
	}
	if out == "" {
		return "", fmt.Errorf("model returned no text parts")
	}
	return out, nil
}

// invoiceSchema constrains the response to an array of page objects matching
// models.InvoicePage.
func invoiceSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"date": {
					Type:        genai.TypeString,
					Description: "Receipt date in YYYY-MM-DD form",
				},
				"page": {
					Type:        genai.TypeInteger,
					Description: "One-based page number",
				},
				"total_amount_invoice": {
					Type:        genai.TypeNumber,
					Description: "Printed total of the receipt, 0 when the page has none",
				},
				"items": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"description": {Type: genai.TypeString},
							"unit_price":  {Type: genai.TypeNumber},
							"quantity":    {Type: genai.TypeNumber},
							"weight":      {Type: genai.TypeNumber},
							"discount":    {Type: genai.TypeNumber},
						},
						Required: []string{"description", "unit_price"},
					},
				},
			},
			Required: []string{"page", "items"},
		},
	}
}
