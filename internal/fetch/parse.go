package fetch

import (
	"io"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Item is a normalized feed entry.
type Item struct {
	// GUID is the feed-provided unique identifier, possibly empty.
	GUID string

	// Title is the entry title, plain text.
	Title string

	// Link is the canonical entry URL.
	Link string

	// Author is the entry author, falling back to the feed author.
	Author string

	// ContentHTML is the richest content the feed provides for the entry.
	ContentHTML string

	// Published is the entry publication time; zero when the feed omits it.
	Published time.Time

	// PublishedRaw is the unparsed publication string, kept for item
	// identity when Published cannot be parsed.
	PublishedRaw string

	// ImageURL is the first image enclosure or the entry image, if any.
	ImageURL string
}

// parse reads a feed document and normalizes it. gofeed detects RSS, Atom,
// and JSON Feed automatically.
func parse(r io.Reader) (*Result, error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, err
	}

	result := &Result{FeedTitle: feed.Title}

	feedAuthor := ""
	if len(feed.Authors) > 0 && feed.Authors[0] != nil {
		feedAuthor = feed.Authors[0].Name
	}

	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		result.Items = append(result.Items, normalize(entry, feedAuthor))
	}

	return result, nil
}

func normalize(entry *gofeed.Item, feedAuthor string) Item {
	item := Item{
		GUID:         entry.GUID,
		Title:        strings.TrimSpace(entry.Title),
		Link:         entry.Link,
		Author:       feedAuthor,
		ContentHTML:  entry.Content,
		PublishedRaw: entry.Published,
	}

	if len(entry.Authors) > 0 && entry.Authors[0] != nil && entry.Authors[0].Name != "" {
		item.Author = entry.Authors[0].Name
	}

	if item.ContentHTML == "" {
		item.ContentHTML = entry.Description
	}

	if entry.PublishedParsed != nil {
		item.Published = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		item.Published = *entry.UpdatedParsed
	}

	if entry.Image != nil && entry.Image.URL != "" {
		item.ImageURL = entry.Image.URL
	}
	for _, enc := range entry.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			item.ImageURL = enc.URL
			break
		}
	}

	return item
}
