package config

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// VariantPreset 变体预设：类型 -> 目标尺寸/质量/格式
type VariantPreset struct {
	Type    string `mapstructure:"type" json:"type"`
	Width   int    `mapstructure:"width" json:"width"`
	Height  int    `mapstructure:"height" json:"height"`
	Quality int    `mapstructure:"quality" json:"quality"`
	Format  string `mapstructure:"format" json:"format"`
}

// DefaultVariantPresets 内置预设
func DefaultVariantPresets() []VariantPreset {
	return []VariantPreset{
		{Type: "thumb", Width: 200, Height: 200, Quality: 80, Format: "webp"},
		{Type: "small", Width: 480, Height: 480, Quality: 82, Format: "webp"},
		{Type: "medium", Width: 1024, Height: 1024, Quality: 85, Format: "webp"},
		{Type: "large", Width: 2048, Height: 2048, Quality: 85, Format: "webp"},
	}
}

// ParseVariantPresets 解析 JSON 形式的预设列表，空字符串返回内置预设
// 数值字段允许写成字符串（环境变量里常见）
func ParseVariantPresets(raw string) ([]VariantPreset, error) {
	if raw == "" {
		return DefaultVariantPresets(), nil
	}

	var items []map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("invalid variant_presets: %w", err)
	}

	var presets []VariantPreset
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &presets,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("invalid variant_presets: %w", err)
	}

	seen := make(map[string]bool, len(presets))
	for i := range presets {
		p := &presets[i]
		if p.Type == "" {
			return nil, fmt.Errorf("variant preset #%d has no type", i)
		}
		if seen[p.Type] {
			return nil, fmt.Errorf("duplicate variant preset %q", p.Type)
		}
		seen[p.Type] = true
		if p.Width <= 0 && p.Height <= 0 {
			return nil, fmt.Errorf("variant preset %q needs width or height", p.Type)
		}
		if p.Format == "" {
			p.Format = "webp"
		}
		if p.Quality <= 0 || p.Quality > 100 {
			p.Quality = 85
		}
	}

	sort.SliceStable(presets, func(i, j int) bool { return presets[i].Type < presets[j].Type })
	return presets, nil
}

// GetVariantPresets 返回解析后的预设，配置错误时回退到内置预设
func (c *Config) GetVariantPresets() []VariantPreset {
	presets, err := ParseVariantPresets(c.VariantPresets)
	if err != nil {
		fmt.Printf("Warning: %v, falling back to built-in presets\n", err)
		return DefaultVariantPresets()
	}
	return presets
}
