package cache

import "github.com/VictoriaMetrics/metrics"

var (
	cacheHitCounter         = metrics.GetOrCreateCounter(`cache_lookups_total{result="hit"}`)
	cacheMissCounter        = metrics.GetOrCreateCounter(`cache_lookups_total{result="miss"}`)
	cacheErrorCounter       = metrics.GetOrCreateCounter(`cache_lookups_total{result="error"}`)
	cacheInvalidatedCounter = metrics.GetOrCreateCounter(`cache_invalidated_total`)
)
