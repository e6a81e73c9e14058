package src

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessAttachmentNone(t *testing.T) {
	in, err := ProcessAttachment("build a todo app", nil)
	require.NoError(t, err)
	assert.Equal(t, "build a todo app", in.Text)
	assert.Empty(t, in.ImageData)
}

func TestProcessAttachmentImage(t *testing.T) {
	att := &Attachment{
		Name:     "mockup.png",
		Type:     "image",
		Data:     "data:image/png;base64,aGVsbG8=",
		MimeType: "image/png",
	}
	in, err := ProcessAttachment("replicate this design", att)
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", in.ImageData)
	assert.Equal(t, "image/png", in.ImageMIME)
	assert.Contains(t, in.Text, "replicate this design")
	assert.Contains(t, in.Text, "uploaded an image")
}

func TestProcessAttachmentImageBareBase64(t *testing.T) {
	att := &Attachment{Type: "image", Data: "aGVsbG8="}
	in, err := ProcessAttachment("p", att)
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", in.ImageData)
	assert.Equal(t, "image/png", in.ImageMIME)
}

func TestProcessAttachmentBadPDFDegrades(t *testing.T) {
	att := &Attachment{Name: "resume.pdf", Type: "pdf", Data: "data:application/pdf;base64,bm90IGEgcGRm"}
	in, err := ProcessAttachment("make my portfolio", att)
	require.NoError(t, err)
	assert.Contains(t, in.Text, "make my portfolio")
	assert.Contains(t, in.Text, "could not be processed")
	assert.Empty(t, in.ImageData)
}

func TestProcessAttachmentUnknownType(t *testing.T) {
	att := &Attachment{Name: "data.csv", Type: "csv", MimeType: "text/csv", Data: "xxx"}
	in, err := ProcessAttachment("p", att)
	require.NoError(t, err)
	assert.Equal(t, "p", in.Text)
}
