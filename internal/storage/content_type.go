package storage

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxImageSize is the largest photo upload accepted.
const MaxImageSize = 20 << 20

// DetectContentType determines the MIME type of a file: the provided type
// wins, then the file extension, then sniffing the first 512 bytes of data.
func DetectContentType(providedType, filename string, data io.Reader) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	if data != nil {
		buffer := make([]byte, 512)
		n, err := io.ReadFull(data, buffer)
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return http.DetectContentType(buffer[:n])
		}
	}

	return "application/octet-stream"
}

// AllowedImageTypes are the photo formats the analysis accepts.
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true, // Some systems use this instead of image/jpeg
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// IsAllowedImageType checks a content type, ignoring parameters.
func IsAllowedImageType(contentType string) bool {
	return AllowedImageTypes[baseType(contentType)]
}

// NormalizeImageType strips parameters and folds aliases, so
// "image/JPG; q=1" becomes "image/jpeg".
func NormalizeImageType(contentType string) string {
	t := baseType(contentType)
	if t == "image/jpg" {
		return "image/jpeg"
	}
	return t
}

func baseType(contentType string) string {
	return strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
}

// extensionForContentType returns a common file extension for a MIME type.
func extensionForContentType(contentType string) string {
	switch baseType(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}

	exts, err := mime.ExtensionsByType(contentType)
	if err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
