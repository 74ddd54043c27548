package providers

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// inlineImage loads an image referenced by a message so vision-capable
// providers can send its bytes inline.
func inlineImage(path string) ([]byte, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("providers: read image %q: %w", path, err)
	}
	mime := http.DetectContentType(raw)
	if !strings.HasPrefix(mime, "image/") {
		// Sniffing can miss some encoders; trust the extension for the
		// common formats before giving up.
		switch strings.ToLower(filepath.Ext(path)) {
		case ".png":
			mime = "image/png"
		case ".jpg", ".jpeg":
			mime = "image/jpeg"
		case ".webp":
			mime = "image/webp"
		case ".gif":
			mime = "image/gif"
		default:
			return nil, "", fmt.Errorf("providers: unsupported image type for %q", path)
		}
	}
	return raw, mime, nil
}

func imageDataURL(raw []byte, mime string) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw)
}
