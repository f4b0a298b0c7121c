package format

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/telefeed/telefeed/internal/fetch"
	"github.com/telefeed/telefeed/internal/telegraph"
)

// stubPublisher is a canned format.Publisher.
type stubPublisher struct {
	valid  bool
	url    string
	err    error
	drafts []telegraph.Draft
}

func (s *stubPublisher) Valid() bool { return s.valid }

func (s *stubPublisher) Publish(_ context.Context, d telegraph.Draft) (string, error) {
	s.drafts = append(s.drafts, d)
	return s.url, s.err
}

func testComposer(p Publisher) *Composer {
	return NewComposer(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRender_ShortEntryInlined(t *testing.T) {
	t.Parallel()

	pub := &stubPublisher{valid: true, url: "https://telegra.ph/x"}
	r := testComposer(pub).Render(context.Background(), "My Feed", "Feed Title", fetch.Item{
		Title:       "Entry <1>",
		Link:        "https://example.com/1",
		ContentHTML: "<p>short body</p>",
	})

	if len(pub.drafts) != 0 {
		t.Error("short entries must not go to Telegraph")
	}
	for _, want := range []string{"<b>Entry &lt;1&gt;</b>", "<i>My Feed</i>", "short body", `<a href="https://example.com/1">Source</a>`} {
		if !strings.Contains(r.Text, want) {
			t.Errorf("Text missing %q:\n%s", want, r.Text)
		}
	}
	if r.TelegraphURL != "" {
		t.Errorf("TelegraphURL = %q", r.TelegraphURL)
	}
}

func TestRender_ShortEntryWithPhoto(t *testing.T) {
	t.Parallel()

	r := testComposer(nil).Render(context.Background(), "Feed", "Feed", fetch.Item{
		Title:       "Pic",
		ContentHTML: "caption text",
		ImageURL:    "https://example.com/a.jpg",
	})
	if r.PhotoURL != "https://example.com/a.jpg" {
		t.Errorf("PhotoURL = %q", r.PhotoURL)
	}
}

func TestRender_LongTextNeverBecomesCaption(t *testing.T) {
	t.Parallel()

	// Inline (under inlineLimit) but longer than a photo caption may be.
	body := strings.Repeat("word ", 210)
	r := testComposer(nil).Render(context.Background(), "Feed", "Feed", fetch.Item{
		Title:       "Long",
		ContentHTML: body,
		ImageURL:    "https://example.com/a.jpg",
	})
	if len([]rune(r.Text)) > captionLimit && r.PhotoURL != "" {
		t.Error("text over the caption limit must not be sent as a photo caption")
	}
}

func TestRender_LongEntryPublished(t *testing.T) {
	t.Parallel()

	pub := &stubPublisher{valid: true, url: "https://telegra.ph/long"}
	body := "<p>" + strings.Repeat("long body ", 200) + "</p>"
	r := testComposer(pub).Render(context.Background(), "My Feed", "Feed Title", fetch.Item{
		Title:       "Long Entry",
		Author:      "Author",
		Link:        "https://example.com/long",
		ContentHTML: body,
	})

	if len(pub.drafts) != 1 {
		t.Fatalf("Publish called %d times", len(pub.drafts))
	}
	draft := pub.drafts[0]
	if draft.Title != "Long Entry" || draft.FeedTitle != "Feed Title" || draft.Author != "Author" {
		t.Errorf("draft = %+v", draft)
	}
	if r.TelegraphURL != "https://telegra.ph/long" {
		t.Errorf("TelegraphURL = %q", r.TelegraphURL)
	}
	if !strings.Contains(r.Text, `<a href="https://telegra.ph/long">Read on Telegraph</a>`) {
		t.Errorf("Text missing Telegraph link:\n%s", r.Text)
	}
	if strings.Contains(r.Text, "long body long body long body long body") {
		t.Error("full body should not be inlined when published")
	}
}

func TestRender_PublishedEntryWithPhoto(t *testing.T) {
	t.Parallel()

	pub := &stubPublisher{valid: true, url: "https://telegra.ph/pic"}
	body := "<p>" + strings.Repeat("long body ", 200) + "</p>"
	r := testComposer(pub).Render(context.Background(), "Feed", "Feed", fetch.Item{
		Title:       "Pic",
		ContentHTML: body,
		ImageURL:    "https://example.com/a.jpg",
	})
	if r.PhotoURL != "https://example.com/a.jpg" {
		t.Errorf("PhotoURL = %q", r.PhotoURL)
	}
}

func TestRender_PublishedEntryOverCaptionLimit(t *testing.T) {
	t.Parallel()

	// A huge title pushes even the Telegraph-link message past the caption
	// limit, so the image must not ride along as a photo.
	pub := &stubPublisher{valid: true, url: "https://telegra.ph/pic"}
	body := "<p>" + strings.Repeat("long body ", 200) + "</p>"
	r := testComposer(pub).Render(context.Background(), "Feed", "Feed", fetch.Item{
		Title:       strings.Repeat("t", captionLimit+100),
		ContentHTML: body,
		ImageURL:    "https://example.com/a.jpg",
	})
	if r.PhotoURL != "" {
		t.Errorf("PhotoURL = %q, want none with a %d-rune caption", r.PhotoURL, len([]rune(r.Text)))
	}
	if r.TelegraphURL == "" {
		t.Error("entry should still publish to Telegraph")
	}
}

func TestRender_PublishFailureFallsBackToTruncation(t *testing.T) {
	t.Parallel()

	pub := &stubPublisher{valid: true, err: errors.New("flood")}
	body := strings.Repeat("long body ", 200)
	r := testComposer(pub).Render(context.Background(), "Feed", "Feed", fetch.Item{
		Title:       "Entry",
		ContentHTML: body,
	})

	if r.TelegraphURL != "" {
		t.Errorf("TelegraphURL = %q", r.TelegraphURL)
	}
	if !strings.Contains(r.Text, "…") {
		t.Error("fallback text should be marked as truncated")
	}
	if n := len([]rune(r.Text)); n > inlineLimit+200 {
		t.Errorf("fallback text too long: %d runes", n)
	}
}

func TestRender_NoPublisherTruncates(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("long body ", 200)
	r := testComposer(nil).Render(context.Background(), "Feed", "Feed", fetch.Item{
		Title:       "Entry",
		ContentHTML: body,
	})
	if !strings.Contains(r.Text, "…") {
		t.Error("long entries must truncate when Telegraph is not configured")
	}
}

func TestRender_EmptyTitleUsesFeedTitle(t *testing.T) {
	t.Parallel()

	r := testComposer(nil).Render(context.Background(), "my-feed", "Feed Title", fetch.Item{
		ContentHTML: "body",
	})
	if !strings.Contains(r.Text, "<b>Feed Title</b>") {
		t.Errorf("Text = %q", r.Text)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 100); got != "short" {
		t.Errorf("got %q", got)
	}

	got := truncate("aaaa bbbb cccc dddd", 17)
	if got != "aaaa bbbb cccc" {
		t.Errorf("got %q, want cut at word boundary", got)
	}

	// No nearby space: hard cut.
	got = truncate(strings.Repeat("x", 50), 10)
	if got != strings.Repeat("x", 10) {
		t.Errorf("got %q", got)
	}

	// Multibyte text: the boundary check counts runes, not bytes. The space
	// here sits at rune 8 of 20, too early for a word-boundary cut.
	got = truncate(strings.Repeat("日", 8)+" "+strings.Repeat("日", 20), 20)
	if n := len([]rune(got)); n != 20 {
		t.Errorf("got %d runes (%q), want a hard 20-rune cut", n, got)
	}

	// And at rune 16 of 20 the boundary cut applies.
	got = truncate(strings.Repeat("日", 16)+" "+strings.Repeat("日", 10), 20)
	if got != strings.Repeat("日", 16) {
		t.Errorf("got %q, want cut at the multibyte word boundary", got)
	}
}
