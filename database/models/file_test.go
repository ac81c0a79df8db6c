package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeVariants(t *testing.T) {
	now := time.Now()
	base := []FileVariant{
		{Type: "thumb", Key: "k/thumb-old", ReadyAt: &now},
		{Type: "large", Key: "k/large", ReadyAt: &now},
	}
	incoming := []FileVariant{
		{Type: "thumb", Key: "k/thumb-new", ReadyAt: &now},
		{Type: "medium", Key: "k/medium", ReadyAt: &now},
	}

	merged := MergeVariants(base, incoming)

	assert.Len(t, merged, 3)
	assert.Equal(t, "large", merged[0].Type)
	assert.Equal(t, "medium", merged[1].Type)
	assert.Equal(t, "thumb", merged[2].Type)
	assert.Equal(t, "k/thumb-new", merged[2].Key, "incoming 覆盖同类型")
	assert.Equal(t, "k/thumb-old", base[0].Key, "不修改入参")
}

func TestFile_LinkIndex(t *testing.T) {
	f := &File{Links: []FileLink{
		{App: "blog", EntityType: "post", EntityID: "1"},
		{App: "blog", EntityType: "post", EntityID: "2"},
	}}

	assert.Equal(t, 1, f.LinkIndex("blog", "post", "2"))
	assert.Equal(t, -1, f.LinkIndex("blog", "comment", "2"))
	assert.Equal(t, -1, f.LinkIndex("shop", "post", "1"))
}

func TestFile_ReadyVariants(t *testing.T) {
	now := time.Now()
	f := &File{Variants: []FileVariant{
		{Type: "thumb", Key: "a", ReadyAt: &now},
		{Type: "small", Key: "b"},
		{Type: "medium", ReadyAt: &now},
	}}

	ready := f.ReadyVariants()
	assert.Len(t, ready, 1)
	assert.Equal(t, "thumb", ready[0].Type)

	v, ok := f.FindVariant("small")
	assert.True(t, ok)
	assert.False(t, v.IsReady())

	_, ok = f.FindVariant("large")
	assert.False(t, ok)
}

func TestVisibility_IsValid(t *testing.T) {
	assert.True(t, VisibilityPublic.IsValid())
	assert.True(t, VisibilityUnlisted.IsValid())
	assert.False(t, Visibility("secret").IsValid())
	assert.False(t, Visibility("").IsValid())
}

func TestFile_IsImage(t *testing.T) {
	assert.True(t, (&File{MimeType: "image/png"}).IsImage())
	assert.True(t, (&File{MimeType: "Image/JPEG"}).IsImage())
	assert.False(t, (&File{MimeType: "video/mp4"}).IsImage())
}

func TestCloneLinks_Nil(t *testing.T) {
	assert.NotNil(t, CloneLinks(nil))
	assert.NotNil(t, CloneVariants(nil))
}
