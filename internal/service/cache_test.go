package service

import (
	"testing"
	"time"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
)

func TestArtifactCache(t *testing.T) {
	c := NewArtifactCache(10, time.Minute)
	loc := &model.ArtifactLocation{Artifact: model.Artifact{ID: 1, Filename: "app.apk"}, ProjectID: 7}

	if _, ok := c.Get(1); ok {
		t.Fatal("ожидался промах для нового ключа")
	}

	c.Set(1, loc)
	got, ok := c.Get(1)
	if !ok || got.ProjectID != 7 {
		t.Fatalf("Get() = %+v, %v", got, ok)
	}

	c.Delete(1)
	if _, ok := c.Get(1); ok {
		t.Error("запись должна быть удалена")
	}

	c.Set(1, loc)
	c.Set(2, loc)
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len() после Purge = %d", c.Len())
	}
}

func TestArtifactCache_Eviction(t *testing.T) {
	c := NewArtifactCache(2, time.Minute)
	for i := int64(1); i <= 3; i++ {
		c.Set(i, &model.ArtifactLocation{})
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, ожидается 2", c.Len())
	}
	if _, ok := c.Get(1); ok {
		t.Error("самая старая запись должна быть вытеснена")
	}
}

// TestArtifactCache_Disabled — nil-кэш безопасен и всегда промахивается.
func TestArtifactCache_Disabled(t *testing.T) {
	c := NewArtifactCache(0, time.Minute)
	if c != nil {
		t.Fatal("при размере 0 кэш выключен")
	}
	c.Set(1, &model.ArtifactLocation{})
	if _, ok := c.Get(1); ok {
		t.Error("выключенный кэш не должен отдавать записи")
	}
	c.Delete(1)
	c.Purge()
}
