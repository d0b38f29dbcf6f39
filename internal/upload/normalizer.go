package upload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/gift"

	// Decode-only registration. WebP is accepted on input and re-encoded
	// to JPEG/PNG on output; there is no pure-Go WebP encoder.
	_ "golang.org/x/image/webp"
)

// Normalization failure reasons.
var (
	ErrUnreadable         = errors.New("bytes do not decode as a supported image")
	ErrDimensionsTooSmall = errors.New("image dimensions below minimum")
	ErrDimensionsTooLarge = errors.New("image dimensions above maximum")
)

// Result is the outcome of a successful normalization pass.
type Result struct {
	Data        []byte
	Width       int
	Height      int
	Format      string // output encoding: "jpeg" or "png"
	ContentType string
	Ext         string // canonical extension including dot

	OriginalSize int64
	Size         int64
	// CompressionRatio is (original - new) / original; negative when the
	// re-encode grew the payload (small, already-optimized inputs).
	CompressionRatio float64
}

// tier holds the encoding envelope selected by payload size.
type tier struct {
	maxW, maxH int
	quality    int
	forceJPEG  bool
}

// Normalizer decodes, bounds-checks, downscales, and re-encodes uploads.
// The size-tiered policy bounds output size without a one-size-fits-all
// compression setting: large payloads get aggressive downscaling and lower
// quality, small payloads keep full allowed resolution.
type Normalizer struct {
	minDim int
	maxDim int
}

// NewNormalizer returns a Normalizer enforcing [minDim, maxDim] pixels per axis.
func NewNormalizer(minDim, maxDim int) *Normalizer {
	return &Normalizer{minDim: minDim, maxDim: maxDim}
}

// selectTier picks the target envelope from the payload byte size.
func (n *Normalizer) selectTier(size int64) tier {
	switch {
	case size > 3<<20:
		return tier{maxW: 1600, maxH: 900, quality: 65, forceJPEG: true}
	case size > 1<<20:
		return tier{maxW: 1920, maxH: 1080, quality: 80, forceJPEG: true}
	default:
		return tier{maxW: n.maxDim, maxH: n.maxDim, quality: 90}
	}
}

// Normalize probes intrinsic metadata, rejects out-of-bounds dimensions,
// downscales when the image exceeds the tier envelope (never upscaling,
// aspect ratio preserved), and re-encodes to the tier's format/quality.
// Failures are always returned as errors; nothing escapes this boundary.
func (n *Normalizer) Normalize(data []byte) (*Result, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if cfg.Width < n.minDim || cfg.Height < n.minDim {
		return nil, fmt.Errorf("%w: %dx%d (minimum %dpx per side)", ErrDimensionsTooSmall, cfg.Width, cfg.Height, n.minDim)
	}
	if cfg.Width > n.maxDim || cfg.Height > n.maxDim {
		return nil, fmt.Errorf("%w: %dx%d (maximum %dpx per side)", ErrDimensionsTooLarge, cfg.Width, cfg.Height, n.maxDim)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	tr := n.selectTier(int64(len(data)))

	// Resize only when intrinsic dimensions exceed the envelope.
	if cfg.Width > tr.maxW || cfg.Height > tr.maxH {
		g := gift.New(gift.ResizeToFit(tr.maxW, tr.maxH, gift.LanczosResampling))
		dst := image.NewRGBA(g.Bounds(img.Bounds()))
		g.Draw(dst, img)
		img = dst
	}

	// WebP (and anything not PNG) re-encodes to JPEG; PNG stays PNG on the
	// small tier to keep transparency.
	outFormat := "jpeg"
	if !tr.forceJPEG && format == "png" {
		outFormat = "png"
	}

	var buf bytes.Buffer
	switch outFormat {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: tr.quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	}

	b := img.Bounds()
	origSize := int64(len(data))
	newSize := int64(buf.Len())

	res := &Result{
		Data:             buf.Bytes(),
		Width:            b.Dx(),
		Height:           b.Dy(),
		Format:           outFormat,
		OriginalSize:     origSize,
		Size:             newSize,
		CompressionRatio: float64(origSize-newSize) / float64(origSize),
	}
	if outFormat == "png" {
		res.ContentType, res.Ext = "image/png", ".png"
	} else {
		res.ContentType, res.Ext = "image/jpeg", ".jpg"
	}
	return res, nil
}
