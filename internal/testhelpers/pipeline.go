package testhelpers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anoixa/asset-store/internal/pipeline"
)

// CountingPipeline 包装真实引擎并统计调用次数
type CountingPipeline struct {
	pipeline.Pipeline
	Delay time.Duration // 每次处理前等待，便于制造并发

	calls atomic.Int32
}

// NewCountingPipeline 基于纯 Go 引擎
func NewCountingPipeline() *CountingPipeline {
	return &CountingPipeline{Pipeline: pipeline.NewStdPipeline()}
}

func (p *CountingPipeline) Resize(ctx context.Context, src []byte, opts pipeline.Options) (*pipeline.Result, error) {
	p.calls.Add(1)

	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.Pipeline.Resize(ctx, src, opts)
}

// Calls 调用次数
func (p *CountingPipeline) Calls() int {
	return int(p.calls.Load())
}

// PNG 生成指定尺寸的测试图片
func PNG(t testing.TB, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 3), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// Hash 内容的 SHA-256 十六进制
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
