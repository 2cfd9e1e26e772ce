// Package service contains business logic for the LabSnap API.
//
// This file implements photo preprocessing before analysis.
package service

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	// MaxPhotoDimension bounds the longest side of a photo sent for analysis.
	MaxPhotoDimension = 2048

	// PhotoJPEGQuality is the JPEG quality for re-encoded photos (0-100).
	PhotoJPEGQuality = 85
)

// =============================================================================
// Interface Definition
// =============================================================================

// ImageProcessor prepares uploaded photos for analysis.
type ImageProcessor interface {
	// Prepare fits the photo within MaxPhotoDimension on both sides. Photos
	// that already fit are returned unchanged; larger ones come back as JPEG
	// with their new content type.
	Prepare(data []byte, contentType string) ([]byte, string, error)
}

// =============================================================================
// Implementation
// =============================================================================

// imagingProcessor implements ImageProcessor using the imaging library.
type imagingProcessor struct {
	maxDimension int
}

// NewImageProcessor creates a new photo processor using the imaging library.
func NewImageProcessor() ImageProcessor {
	return &imagingProcessor{maxDimension: MaxPhotoDimension}
}

func (p *imagingProcessor) Prepare(data []byte, contentType string) ([]byte, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width <= p.maxDimension && cfg.Height <= p.maxDimension {
		return data, contentType, nil
	}

	// Phone cameras store rotation in EXIF; apply it before resizing.
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	fitted := imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(PhotoJPEGQuality)); err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}
