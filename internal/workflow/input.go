package workflow

import (
	"context"
	"strings"

	"hawkkeyed-backend/internal/extract"
	"hawkkeyed-backend/internal/shared/telemetry"
	"hawkkeyed-backend/internal/shared/util"
)

const (
	inputPreviewChars   = 200
	extractedTextBudget = 20000
)

// RawFile is an uploaded file as received.
type RawFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// RawInput is the caller's text and optional file before normalization.
type RawInput struct {
	Text string
	File *RawFile
}

// Attachment is a file forwarded to the extraction provider as bytes.
// ExtractedText is best-effort plain text for text-only consumers.
type Attachment struct {
	FileName      string
	MimeType      string
	Payload       []byte
	ExtractedText string
}

// RunInput is the normalized input of a run.
type RunInput struct {
	Text       string
	Attachment *Attachment
}

// Normalize merges text and file into a RunInput. Text-like files are
// decoded and inlined under the text; any other file is kept as an
// attachment with a caption naming it when the text is empty.
func Normalize(ctx context.Context, raw RawInput) (RunInput, error) {
	text := strings.TrimSpace(raw.Text)
	file := raw.File
	if file != nil && len(file.Data) == 0 {
		file = nil
	}
	if text == "" && file == nil {
		return RunInput{}, ErrInputMissing
	}
	if file == nil {
		return RunInput{Text: text}, nil
	}

	switch extract.Classify(file.MimeType, file.Name, file.Data) {
	case extract.ClassText:
		decoded := strings.TrimSpace(extract.DecodeText(file.Data))
		if decoded == "" {
			if text == "" {
				return RunInput{}, ErrInputMissing
			}
			return RunInput{Text: text}, nil
		}
		if text == "" {
			return RunInput{Text: "File content:\n" + decoded}, nil
		}
		return RunInput{Text: text + "\n\nFile content:\n" + decoded}, nil
	case extract.ClassDocument:
		att := newAttachment(file)
		extracted, err := extract.Text(ctx, file.Data, file.MimeType, file.Name)
		if err != nil {
			telemetry.Warn("workflow.attachment_text_failed", map[string]any{
				"request_id": requestIDFromContext(ctx),
				"file_name":  file.Name,
				"mime_type":  att.MimeType,
				"error":      sanitizeError(err),
			})
		} else {
			att.ExtractedText = util.Truncate(extracted, extractedTextBudget)
		}
		return RunInput{Text: captionOr(text, file.Name), Attachment: att}, nil
	default:
		return RunInput{Text: captionOr(text, file.Name), Attachment: newAttachment(file)}, nil
	}
}

func newAttachment(file *RawFile) *Attachment {
	mimeType := extract.NormalizeMimeType(file.MimeType, file.Name, file.Data)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &Attachment{
		FileName: file.Name,
		MimeType: mimeType,
		Payload:  file.Data,
	}
}

func captionOr(text, fileName string) string {
	if text != "" {
		return text
	}
	name := strings.TrimSpace(fileName)
	if name == "" {
		name = "upload"
	}
	return "Attached file: " + name
}

// NarrationText is the input as seen by text-only consumers: the text plus
// whatever could be extracted from the attachment.
func (in RunInput) NarrationText() string {
	if in.Attachment == nil || in.Attachment.ExtractedText == "" {
		return in.Text
	}
	return in.Text + "\n\nFile content:\n" + in.Attachment.ExtractedText
}

// Preview is the stored, truncated form of the input.
func (in RunInput) Preview() string {
	return util.Truncate(in.NarrationText(), inputPreviewChars)
}
