// cache.go — LRU-кэш метаданных файлов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pf_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш метаданных файлов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pf_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша метаданных файлов.",
	})
)

// ArtifactCache — LRU-кэш записей файлов (с ID проекта) по ID файла.
// Используется на пути скачивания, где запись читается при каждом запросе.
type ArtifactCache struct {
	cache *expirable.LRU[int64, *model.ArtifactLocation]
}

// NewArtifactCache создаёт кэш. maxSize <= 0 — кэш выключен.
func NewArtifactCache(maxSize int, ttl time.Duration) *ArtifactCache {
	if maxSize <= 0 {
		return nil
	}
	return &ArtifactCache{
		cache: expirable.NewLRU[int64, *model.ArtifactLocation](maxSize, nil, ttl),
	}
}

// Get возвращает запись из кэша. Обновляет метрики hit/miss.
func (c *ArtifactCache) Get(id int64) (*model.ArtifactLocation, bool) {
	if c == nil {
		return nil, false
	}
	val, ok := c.cache.Get(id)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись.
func (c *ArtifactCache) Set(id int64, loc *model.ArtifactLocation) {
	if c == nil {
		return
	}
	c.cache.Add(id, loc)
}

// Delete удаляет запись (после удаления файла).
func (c *ArtifactCache) Delete(id int64) {
	if c == nil {
		return
	}
	c.cache.Remove(id)
}

// Purge очищает кэш (после каскадного удаления версии или проекта).
func (c *ArtifactCache) Purge() {
	if c == nil {
		return
	}
	c.cache.Purge()
}

// Len возвращает количество записей.
func (c *ArtifactCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
