// Package render turns the first page of a document into PNG bytes for a
// vision model.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/draw"

	"github.com/neilberkman/docrider/internal/core/llm"
)

const (
	DefaultDPI          = 300
	DefaultMaxDimension = 2048
)

// ErrDecode wraps every failure to read a document as an image.
var ErrDecode = errors.New("cannot decode document")

// Config controls rendering
type Config struct {
	DPI          int    // PDF render resolution
	MaxDimension int    // longest side after scaling, 0 keeps the original size
	Pdftoppm     string // path to poppler's pdftoppm, looked up on PATH when empty
}

// Renderer produces model-ready images
type Renderer struct {
	cfg Config
}

// New creates a renderer, filling in defaults
func New(cfg Config) *Renderer {
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	return &Renderer{cfg: cfg}
}

// Render returns the first page of a PDF, or the image itself, as PNG.
func (r *Renderer) Render(ctx context.Context, path string) (llm.Image, error) {
	var (
		img image.Image
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		img, err = r.renderPDF(ctx, path)
	} else {
		img, err = decodeFile(path)
	}
	if err != nil {
		return llm.Image{}, err
	}

	img = Downscale(img, r.cfg.MaxDimension)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return llm.Image{}, fmt.Errorf("encode png: %w", err)
	}
	return llm.Image{Data: buf.Bytes(), MIMEType: "image/png"}, nil
}

func (r *Renderer) renderPDF(ctx context.Context, path string) (image.Image, error) {
	tmpDir, err := os.MkdirTemp("", "docrider-render-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	outRoot := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, r.cfg.Pdftoppm,
		"-f", "1", "-l", "1",
		"-r", strconv.Itoa(r.cfg.DPI),
		"-png", "-singlefile",
		path, outRoot,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("pdftoppm not found (install poppler): %w", err)
		}
		return nil, fmt.Errorf("%w: pdftoppm: %v: %s", ErrDecode, err, strings.TrimSpace(stderr.String()))
	}

	return decodeFile(outRoot + ".png")
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Downscale shrinks img so its longest side is at most maxDim, keeping
// the aspect ratio. Smaller images and maxDim <= 0 return img unchanged.
func Downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	nw, nh := maxDim, maxDim
	if w >= h {
		nh = max(1, h*maxDim/w)
	} else {
		nw = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
