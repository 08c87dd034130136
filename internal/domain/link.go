package domain

type LinkKind string

const (
	LinkKindPage     LinkKind = "page"
	LinkKindDocument LinkKind = "document"
)

type SkipReason string

const (
	SkipEmpty             SkipReason = "empty"
	SkipFragmentOnly      SkipReason = "fragment_only"
	SkipUnsupportedScheme SkipReason = "unsupported_scheme"
	SkipInvalidURL        SkipReason = "invalid_url"
	SkipExternal          SkipReason = "external"
	SkipIrrelevant        SkipReason = "irrelevant"
)

// FoundLink is one anchor target pulled out of a page, resolved against the
// page URL. Links the pipeline should ignore carry a SkipReason instead of
// a Kind.
type FoundLink struct {
	URL        string
	Raw        string
	Kind       LinkKind
	SkipReason SkipReason
}

// DocumentLink is a downloadable document discovered during the crawl.
// Identity is the normalized URL.
type DocumentLink struct {
	URL        string
	SourcePage string
}
