package gateway

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

const maxAttachmentBytes = 20 << 20

// LoadAttachment reads an image file for analysis. The MIME type comes from
// the extension, falling back to content sniffing.
func LoadAttachment(path string) (*Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("could not read attachment: %w", err)
	}
	if info.Size() > maxAttachmentBytes {
		return nil, fmt.Errorf("attachment %s is larger than %d bytes", filepath.Base(path), maxAttachmentBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read attachment: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return &Attachment{Name: filepath.Base(path), MIMEType: mimeType, Data: data}, nil
}
