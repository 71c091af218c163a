package sync

// Package is one fetched and parsed content package, decoded into the
// normalized row shapes the store persists. Exactly one of the row groups
// is populated for Bible versions and commentaries; topic packages carry
// topics plus their references and explanations.
type Package struct {
	ContentType  ContentType
	Key          string
	LanguageCode string
	SizeBytes    int64 // byte length of the fetched package body

	Verses            []Verse
	Explanations      []Explanation
	Topics            []Topic
	TopicReferences   []TopicReference
	TopicExplanations []TopicExplanation
}

// RowCount returns the total number of content rows in the package.
func (p *Package) RowCount() int {
	return len(p.Verses) + len(p.Explanations) + len(p.Topics) +
		len(p.TopicReferences) + len(p.TopicExplanations)
}

// Verse is one verse of a translated Bible version.
type Verse struct {
	BookID        int
	ChapterNumber int
	VerseNumber   int
	Text          string
}

// Explanation is one commentary entry for a verse range.
type Explanation struct {
	ExplanationID int
	BookID        int
	ChapterNumber int
	VerseStart    *int
	VerseEnd      *int
	Type          string
	Explanation   string
}

// Topic is one topical-reference entry.
type Topic struct {
	TopicID   string
	Name      string
	Content   string
	Category  string
	SortOrder *int
}

// TopicReference is the scripture-reference block attached to a topic.
type TopicReference struct {
	TopicID          string
	ReferenceContent string
}

// TopicExplanation is one typed explanation attached to a topic.
type TopicExplanation struct {
	TopicID     string
	Type        string
	Explanation string
}
