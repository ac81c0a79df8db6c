package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariantPresets_Empty(t *testing.T) {
	presets, err := ParseVariantPresets("")
	require.NoError(t, err)
	assert.Equal(t, DefaultVariantPresets(), presets)
}

func TestParseVariantPresets_WeakTypes(t *testing.T) {
	raw := `[{"type":"thumb","width":"150","height":150},{"type":"cover","width":1200,"quality":90,"format":"jpeg"}]`
	presets, err := ParseVariantPresets(raw)
	require.NoError(t, err)
	require.Len(t, presets, 2)

	// 按类型排序
	assert.Equal(t, "cover", presets[0].Type)
	assert.Equal(t, 1200, presets[0].Width)
	assert.Equal(t, "jpeg", presets[0].Format)
	assert.Equal(t, 90, presets[0].Quality)

	assert.Equal(t, "thumb", presets[1].Type)
	assert.Equal(t, 150, presets[1].Width)
	assert.Equal(t, "webp", presets[1].Format)
	assert.Equal(t, 85, presets[1].Quality)
}

func TestParseVariantPresets_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":      `thumb=200`,
		"missing type":  `[{"width":10}]`,
		"duplicate":     `[{"type":"a","width":1},{"type":"a","width":2}]`,
		"no dimensions": `[{"type":"a"}]`,
		"unknown field": `[{"type":"a","width":1,"crop":true}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseVariantPresets(raw)
			assert.Error(t, err)
		})
	}
}

func TestConfigAccessors(t *testing.T) {
	c := &Config{}
	assert.Equal(t, time.Hour, c.GetPresignTTL())
	assert.Equal(t, 5, c.GetVariantCommitRetries())
	assert.Nil(t, c.GetPublicEntityTypes())
	assert.GreaterOrEqual(t, c.GetPipelineConcurrency(), 2)

	c.PublicEntityTypes = " avatar, ,profile_banner "
	assert.Equal(t, []string{"avatar", "profile_banner"}, c.GetPublicEntityTypes())

	c.ServerHost = "0.0.0.0"
	c.ServerPort = 9000
	assert.Equal(t, "http://localhost:9000", c.BaseURL())
	assert.Equal(t, "0.0.0.0:9000", c.Addr())

	c.ServerDomain = "https://assets.example.com/"
	assert.Equal(t, "https://assets.example.com", c.BaseURL())
}
