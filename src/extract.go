package src

import (
	"encoding/json"
	"strings"
)

// The coder and reviewer stages are asked for raw JSON but are generated by
// a free-text engine, so fences, prose, and partial JSON all show up in
// practice. Every caller routes through this extractor instead of stripping
// fences locally; it is the single seam that absorbs that unreliability.

const extractionPreviewLen = 500

// Extraction is the normalized result of parsing a coder or reviewer
// response.
type Extraction struct {
	Files          FileSet
	Summary        string
	ReviewFeedback string
}

// stripFences removes a single wrapping fenced code block, e.g. "```json"
// on the opening line and a bare "```" closer. Text without fences passes
// through untouched.
func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	lines := strings.Split(cleaned, "\n")
	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		if i == 0 {
			continue // opening fence, possibly with a language tag
		}
		if strings.TrimSpace(line) == "```" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// ExtractJSONObject recovers a JSON object from raw model output.
// Strategy, in order: strip a wrapping fence and parse directly; if that
// fails, salvage the first "{" through the last "}" and parse the span;
// otherwise fail with a CODE_EXTRACTION error carrying a preview of the
// offending text.
func ExtractJSONObject(raw string) (map[string]json.RawMessage, error) {
	cleaned := stripFences(raw)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &obj); err == nil {
		return obj, nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return nil, E(ErrCodeCodeExtraction, "no JSON object found in response: %s", preview(cleaned))
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &obj); err != nil {
		return nil, WrapErr(ErrCodeCodeExtraction, err, "could not parse JSON, response preview: %s", preview(cleaned))
	}
	return obj, nil
}

// ExtractGenerated parses a coder response into a file set plus the
// optional summary. Two shapes are accepted: the contract shape with a
// nested "files" mapping, and the legacy shape where the whole object is
// the mapping itself.
func ExtractGenerated(raw string) (*Extraction, error) {
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	out := &Extraction{Files: FileSet{}}
	if s, ok := obj["summary"]; ok {
		_ = json.Unmarshal(s, &out.Summary)
	}
	if r, ok := obj["review_feedback"]; ok {
		_ = json.Unmarshal(r, &out.ReviewFeedback)
	}

	if filesRaw, ok := obj["files"]; ok {
		var files map[string]string
		if err := json.Unmarshal(filesRaw, &files); err != nil {
			return nil, WrapErr(ErrCodeCodeExtraction, err, "files mapping is not path -> content")
		}
		out.Files = files
		return out, nil
	}

	// Legacy shape: every string-valued key except the metadata keys is a
	// file entry.
	for path, val := range obj {
		if path == "summary" || path == "review_feedback" {
			continue
		}
		var content string
		if err := json.Unmarshal(val, &content); err != nil {
			continue
		}
		out.Files[path] = content
	}
	return out, nil
}

// ExtractReviewFeedback parses a reviewer response, which is expected to be
// a JSON object with a single "review_feedback" key. Callers treat an
// extraction failure as non-fatal and fall back to the raw text.
func ExtractReviewFeedback(raw string) (string, error) {
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return "", err
	}
	if r, ok := obj["review_feedback"]; ok {
		var feedback string
		if err := json.Unmarshal(r, &feedback); err == nil && feedback != "" {
			return feedback, nil
		}
	}
	return raw, nil
}

func preview(s string) string {
	if len(s) > extractionPreviewLen {
		return s[:extractionPreviewLen]
	}
	return s
}
