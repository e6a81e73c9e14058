package src

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Attachment is a file uploaded alongside the prompt, carried as a data
// URL the way browsers produce it.
type Attachment struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // "image" or "pdf"
	Data     string `json:"data"` // data URL or bare base64
	MimeType string `json:"mimeType"`
}

// ProcessedInput is the pipeline-ready form of a prompt plus attachment:
// a plain text prompt, possibly enriched with extracted document content,
// and an optional image payload for the vision path.
type ProcessedInput struct {
	Text      string
	ImageData string
	ImageMIME string
}

// ProcessAttachment folds an optional attachment into the prompt. PDFs
// contribute their extracted text; images pass through as base64 vision
// payloads with a framing note added to the prompt. Processing failures
// degrade to the raw prompt rather than failing the run.
func ProcessAttachment(prompt string, att *Attachment) (*ProcessedInput, error) {
	if att == nil {
		return &ProcessedInput{Text: prompt}, nil
	}
	switch {
	case att.Type == "pdf" || att.MimeType == "application/pdf":
		return processPDF(prompt, att), nil
	case att.Type == "image" || strings.HasPrefix(att.MimeType, "image/"):
		return processImage(prompt, att), nil
	default:
		slog.Warn("unknown attachment type", "type", att.Type, "mime", att.MimeType)
		return &ProcessedInput{Text: prompt}, nil
	}
}

// dataURLPayload strips the "data:<mime>;base64," prefix when present.
func dataURLPayload(data string) string {
	if _, payload, found := strings.Cut(data, ";base64,"); found {
		return payload
	}
	return data
}

func processPDF(prompt string, att *Attachment) *ProcessedInput {
	raw, err := base64.StdEncoding.DecodeString(dataURLPayload(att.Data))
	if err != nil {
		return pdfFallback(prompt, att.Name, err)
	}
	text, err := extractPDFText(raw)
	if err != nil {
		return pdfFallback(prompt, att.Name, err)
	}
	if strings.TrimSpace(text) == "" {
		text = "(No readable text could be extracted from this PDF)"
	}
	enriched := fmt.Sprintf(`%s

[CONTEXT: UPLOADED DOCUMENT - %s]
%s
[/CONTEXT]

IMPORTANT: Use the document above to inform the project plan. If this appears to be a resume/CV, create a portfolio website showcasing the person's skills, experience, and projects.`, prompt, att.Name, text)
	return &ProcessedInput{Text: enriched}
}

func pdfFallback(prompt, name string, err error) *ProcessedInput {
	slog.Warn("pdf processing failed", "name", name, "error", err)
	return &ProcessedInput{
		Text: fmt.Sprintf("%s\n\n[Note: A PDF was uploaded (%s) but could not be processed: %v]", prompt, name, err),
	}
}

func extractPDFText(raw []byte) (_ string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", err
	}
	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, fmt.Sprintf("--- Page %d ---\n%s", i, text))
	}
	return strings.Join(pages, "\n\n"), nil
}

func processImage(prompt string, att *Attachment) *ProcessedInput {
	payload := dataURLPayload(att.Data)
	if payload == "" {
		return &ProcessedInput{Text: prompt}
	}
	mime := att.MimeType
	if mime == "" {
		mime = "image/png"
	}
	enhanced := fmt.Sprintf(`%s

IMPORTANT CONTEXT: The user has uploaded an image. Analyze this image carefully:
- If it's a UI screenshot or design mockup: Replicate the layout, colors, components, and styling as closely as possible.
- If it's a photo of a person: This is likely for a portfolio - use this as a profile image placeholder.
- If it's a logo or branding: Incorporate these brand elements into the design.
- If it's a wireframe or sketch: Use this as the structural basis for the UI.`, prompt)
	return &ProcessedInput{Text: enhanced, ImageData: payload, ImageMIME: mime}
}
