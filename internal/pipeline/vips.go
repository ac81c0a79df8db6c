package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/anoixa/asset-store/utils"
)

var vipsOnce sync.Once

var vipsMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/avif": true,
	"image/heic": true,
	"image/tiff": true,
}

// VipsPipeline 基于 libvips 的实现
type VipsPipeline struct{}

// NewVipsPipeline 初始化 libvips（进程内只执行一次）
func NewVipsPipeline() *VipsPipeline {
	vipsOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelWarning)
		vips.Startup(nil)
	})
	return &VipsPipeline{}
}

// ShutdownVips 释放 libvips
func ShutdownVips() {
	vips.Shutdown()
}

func (p *VipsPipeline) Name() string {
	return "vips"
}

func (p *VipsPipeline) Supports(mimeType string) bool {
	return vipsMimeTypes[baseMime(mimeType)]
}

func (p *VipsPipeline) Resize(ctx context.Context, src []byte, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := vips.NewImageFromBuffer(src)
	if err != nil {
		return nil, fmt.Errorf("load image from buffer: %w", err)
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		return nil, fmt.Errorf("auto rotate: %w", err)
	}

	srcW, srcH := img.Width(), img.Height()
	w, _ := FitInside(srcW, srcH, opts.Width, opts.Height)
	if w < srcW {
		if err := img.Resize(float64(w)/float64(srcW), vips.KernelLanczos3); err != nil {
			return nil, fmt.Errorf("resize: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format := normalizeFormat(opts.Format)
	quality := opts.Quality
	if quality <= 0 {
		quality = 85
	}

	var data []byte
	switch format {
	case "webp":
		data, _, err = img.ExportWebp(&vips.WebpExportParams{
			Quality:         quality,
			Lossless:        false,
			ReductionEffort: 4,
			StripMetadata:   true,
		})
	case "jpeg":
		data, _, err = img.ExportJpeg(&vips.JpegExportParams{
			Quality:       quality,
			StripMetadata: true,
			Interlace:     true,
		})
	case "png":
		data, _, err = img.ExportPng(&vips.PngExportParams{
			Compression:   6,
			StripMetadata: true,
		})
	case "avif":
		data, _, err = img.ExportAvif(&vips.AvifExportParams{
			Quality:       quality,
			StripMetadata: true,
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", format, err)
	}

	utils.LogIfDevf("[Pipeline] vips %dx%d -> %dx%d %s (%d bytes)", srcW, srcH, img.Width(), img.Height(), format, len(data))

	return &Result{
		Data:   data,
		Width:  img.Width(),
		Height: img.Height(),
		Format: format,
	}, nil
}
