package objectprovider

// CacheMetrics receives cache activity counters. Implementations must be safe
// for concurrent use; the provider calls them on the hot read path.
type CacheMetrics interface {
	CacheHit(objectType, index string)
	CacheMiss(objectType, index string)
	NegativeHit(objectType, index string)
	CacheLoad(objectType string)
	CacheClear(objectType string)
}

type nopMetrics struct{}

func (nopMetrics) CacheHit(string, string)    {}
func (nopMetrics) CacheMiss(string, string)   {}
func (nopMetrics) NegativeHit(string, string) {}
func (nopMetrics) CacheLoad(string)           {}
func (nopMetrics) CacheClear(string)          {}

// NopMetrics is the default recorder.
var NopMetrics CacheMetrics = nopMetrics{}
