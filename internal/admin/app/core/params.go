package core

type AdminParams struct {
	Port          int
	MaxConcurrent int
	Rate          float64
	Burst         int
}

const (
	// in seconds for db response
	WaitTime = 15

	MaxNameLen     = 80
	MaxAddressLen  = 200
	MaxPrepMinutes = 180
	MaxFeeCents    = 10000

	MaxTitleLen    = 160
	MaxSlugLen     = 80
	MaxSummaryLen  = 500
	MaxTags        = 10
	MaxQuestionLen = 300
	SlugAttempts   = 20
	DefaultSlug    = "article"

	MaxSubjectLen = 160
	MaxMessageLen = 4000
)

// Cache keys of public content. Every admin write drops the whole prefix.
const (
	ContentPrefix = "content:"
	CacheFAQ      = ContentPrefix + "faq"
	CacheArticles = ContentPrefix + "articles:"
	CacheBanners  = ContentPrefix + "banners"
	CachePopups   = ContentPrefix + "popups"
)
