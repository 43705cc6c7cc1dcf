package upload

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
)

// MaxWidth is the width uploads are scaled down to before encoding.
const MaxWidth = 800

var (
	// ErrUnsupportedType is returned for files that are not an accepted image type.
	ErrUnsupportedType = errors.New("invalid file type: only JPEG, JPG, PNG, GIF and WEBP images are allowed")
	// ErrMalformedDataURL is returned when a string is not a base64 image data URL.
	ErrMalformedDataURL = errors.New("malformed image data URL")
)

var mimeTypes = map[string]string{
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// MimeType returns the image MIME type for a file name based on its extension.
func MimeType(filename string) (string, error) {
	mime, ok := mimeTypes[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", ErrUnsupportedType
	}
	return mime, nil
}

// ImageHash calculates the SHA256 hash of the image data.
func ImageHash(imageData []byte) string {
	hash := sha256.Sum256(imageData)
	return hex.EncodeToString(hash[:])
}

// EncodeDataURL turns an uploaded file into a base64 data URL. JPEG and PNG
// images wider than MaxWidth are downscaled first.
func EncodeDataURL(filename string, imageData []byte) (string, error) {
	mime, err := MimeType(filename)
	if err != nil {
		return "", err
	}

	switch mime {
	case "image/jpeg", "image/png":
		imageData, err = downscale(imageData, mime)
		if err != nil {
			return "", err
		}
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(imageData), nil
}

func downscale(imageData []byte, mime string) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if img.Bounds().Dx() <= MaxWidth {
		return imageData, nil
	}

	img = resize.Resize(MaxWidth, 0, img, resize.Lanczos3)

	var out bytes.Buffer
	switch mime {
	case "image/jpeg":
		err = jpeg.Encode(&out, img, nil)
	case "image/png":
		err = png.Encode(&out, img)
	default:
		return nil, fmt.Errorf("unsupported image format: %s", mime)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return out.Bytes(), nil
}

// IsDataURL reports whether s looks like an embedded image data URL.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:image/")
}

// ParseDataURL decodes a base64 image data URL into its MIME type and bytes.
func ParseDataURL(s string) (string, []byte, error) {
	if !IsDataURL(s) {
		return "", nil, ErrMalformedDataURL
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return "", nil, ErrMalformedDataURL
	}
	mime, encoding, ok := strings.Cut(meta, ";")
	if !ok || encoding != "base64" {
		return "", nil, ErrMalformedDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedDataURL, err)
	}
	return mime, data, nil
}
