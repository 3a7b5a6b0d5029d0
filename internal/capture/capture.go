// Package capture provides the screenshot primitive used by AnalyzeScreen.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/kbinani/screenshot"

	"github.com/hpungsan/backseat/internal/errors"
)

// Image is an encoded image ready for the OCR endpoint.
type Image struct {
	Data []byte
	MIME string
}

// DataURL returns the image as a base64 data URL.
func (i Image) DataURL() string {
	return "data:" + i.MIME + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Capturer produces one image per call.
type Capturer interface {
	Capture(ctx context.Context) (Image, error)
}

// AllDisplays captures the union of every active display.
const AllDisplays = -1

// Screen captures the local screen.
type Screen struct {
	// Display is the display index, or AllDisplays
	Display int
}

// Capture grabs the configured display(s) and encodes them as PNG.
func (s Screen) Capture(ctx context.Context) (Image, error) {
	if err := errors.FromContext(ctx, "capture"); err != nil {
		return Image{}, err
	}

	bounds, err := s.bounds()
	if err != nil {
		return Image{}, errors.NewCapture(err)
	}

	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return Image{}, errors.NewCapture(err)
	}
	return EncodePNG(img)
}

func (s Screen) bounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}

	if s.Display != AllDisplays {
		if s.Display < 0 || s.Display >= n {
			return image.Rectangle{}, fmt.Errorf("display %d out of range (0-%d)", s.Display, n-1)
		}
		return screenshot.GetDisplayBounds(s.Display), nil
	}

	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return union, nil
}

// EncodePNG encodes img as a PNG Image.
func EncodePNG(img image.Image) (Image, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Image{}, errors.NewCapture(fmt.Errorf("encode png: %w", err))
	}
	return Image{Data: buf.Bytes(), MIME: "image/png"}, nil
}

// File reads a previously captured image from disk.
type File struct {
	Path string
}

// Capture reads the file and sniffs its image type.
func (f File) Capture(ctx context.Context) (Image, error) {
	if err := errors.FromContext(ctx, "capture"); err != nil {
		return Image{}, err
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Image{}, errors.NewFileNotFound(f.Path)
		}
		return Image{}, errors.NewCapture(err)
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return Image{}, errors.NewInvalidRequest(fmt.Sprintf("%s is not an image (%s)", f.Path, mime))
	}
	return Image{Data: data, MIME: mime}, nil
}

// Static returns a fixed image (or error) and counts calls.
type Static struct {
	Image Image
	Err   error

	mu    sync.Mutex
	calls int
}

// Capture returns the configured image or error.
func (s *Static) Capture(ctx context.Context) (Image, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if err := errors.FromContext(ctx, "capture"); err != nil {
		return Image{}, err
	}
	if s.Err != nil {
		return Image{}, s.Err
	}
	return s.Image, nil
}

// Calls returns how many times Capture ran.
func (s *Static) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
