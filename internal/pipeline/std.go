package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var stdMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// StdPipeline 纯 Go 实现，不依赖 libvips
// 只能编码 jpeg / png，请求 webp 或 avif 时输出 jpeg
type StdPipeline struct{}

// NewStdPipeline 创建纯 Go 引擎
func NewStdPipeline() *StdPipeline {
	return &StdPipeline{}
}

func (p *StdPipeline) Name() string {
	return "std"
}

func (p *StdPipeline) Supports(mimeType string) bool {
	return stdMimeTypes[baseMime(mimeType)]
}

func (p *StdPipeline) Resize(ctx context.Context, src []byte, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	w, h := FitInside(b.Dx(), b.Dy(), opts.Width, opts.Height)
	out := img
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		out = dst
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format := normalizeFormat(opts.Format)
	if format == "webp" || format == "avif" {
		format = "jpeg"
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		quality := opts.Quality
		if quality <= 0 {
			quality = 85
		}
		err = jpeg.Encode(&buf, out, &jpeg.Options{Quality: quality})
	case "png":
		err = png.Encode(&buf, out)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}

	return &Result{
		Data:   buf.Bytes(),
		Width:  w,
		Height: h,
		Format: format,
	}, nil
}
