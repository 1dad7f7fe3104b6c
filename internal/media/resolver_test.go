package media

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"modrelay/internal/item"
)

func TestLooksLikeImage(t *testing.T) {
	assert.True(t, LooksLikeImage("https://i.redd.it/abc.jpg"))
	assert.True(t, LooksLikeImage("https://preview.redd.it/abc?width=640"))
	assert.True(t, LooksLikeImage("https://i.imgur.com/abc"))
	assert.True(t, LooksLikeImage("https://example.com/pic.PNG"))
	assert.True(t, LooksLikeImage("https://example.com/pic.jpeg"))
	assert.True(t, LooksLikeImage("https://example.com/pic.webp"))
	assert.False(t, LooksLikeImage("https://example.com/article"))
	assert.False(t, LooksLikeImage("https://v.redd.it/abc"))
	assert.False(t, LooksLikeImage(""))
}

func TestDecodeURL(t *testing.T) {
	in := "https://preview.redd.it/abc.jpg?width=640&amp;s=deadbeef"
	assert.Equal(t, "https://preview.redd.it/abc.jpg?width=640&s=deadbeef", DecodeURL(in))
}

func TestResolve_GalleryOrderWins(t *testing.T) {
	post := &item.Item{
		Kind:      item.KindPost,
		IsGallery: true,
		GalleryData: &item.GalleryData{Items: []item.GalleryItem{
			{MediaID: "second"},
			{MediaID: "first"},
		}},
		MediaMetadata: map[string]item.MediaEntry{
			"first":  {Source: &item.MediaSource{U: "https://i.redd.it/first.jpg"}},
			"second": {Source: &item.MediaSource{U: "https://i.redd.it/second.jpg"}},
		},
	}

	urls := ResolveAll(post, 4)
	assert.Equal(t, []string{
		"https://i.redd.it/second.jpg",
		"https://i.redd.it/first.jpg",
	}, urls)
}

func TestResolve_GallerySkipsMissingMetadata(t *testing.T) {
	post := &item.Item{
		Kind:      item.KindPost,
		IsGallery: true,
		GalleryData: &item.GalleryData{Items: []item.GalleryItem{
			{MediaID: "gone"},
			{MediaID: "here"},
		}},
		MediaMetadata: map[string]item.MediaEntry{
			"here": {Source: &item.MediaSource{U: "https://i.redd.it/here.jpg"}},
		},
	}

	url, ok := Resolve(post)
	assert.True(t, ok)
	assert.Equal(t, "https://i.redd.it/here.jpg", url)
}

func TestResolve_MediaMetadataScanIsDeterministic(t *testing.T) {
	post := &item.Item{
		Kind: item.KindPost,
		MediaMetadata: map[string]item.MediaEntry{
			"bbb": {Source: &item.MediaSource{U: "https://i.redd.it/bbb.jpg"}},
			"aaa": {Source: &item.MediaSource{U: "https://i.redd.it/aaa.jpg"}},
		},
	}

	urls := ResolveAll(post, 4)
	assert.Equal(t, []string{
		"https://i.redd.it/aaa.jpg",
		"https://i.redd.it/bbb.jpg",
	}, urls)
}

func TestResolve_MediaEntryPrefersSourceOverResize(t *testing.T) {
	post := &item.Item{
		Kind: item.KindPost,
		MediaMetadata: map[string]item.MediaEntry{
			"a": {
				Source: &item.MediaSource{U: "https://i.redd.it/full.jpg"},
				Resize: []item.MediaSource{
					{U: "https://preview.redd.it/small.jpg"},
					{U: "https://preview.redd.it/large.jpg"},
				},
			},
		},
	}

	url, ok := Resolve(post)
	assert.True(t, ok)
	assert.Equal(t, "https://i.redd.it/full.jpg", url)
}

func TestResolve_MediaEntryFallsBackToLargestResize(t *testing.T) {
	post := &item.Item{
		Kind: item.KindPost,
		MediaMetadata: map[string]item.MediaEntry{
			"a": {
				Resize: []item.MediaSource{
					{U: "https://preview.redd.it/small.jpg"},
					{U: "https://preview.redd.it/large.jpg"},
				},
			},
		},
	}

	url, ok := Resolve(post)
	assert.True(t, ok)
	assert.Equal(t, "https://preview.redd.it/large.jpg", url)
}

func TestResolve_SelftextScanDedupesAndTrims(t *testing.T) {
	post := &item.Item{
		Kind: item.KindPost,
		Selftext: "look at [this](https://i.redd.it/pic.jpg) and again " +
			"https://i.redd.it/pic.jpg plus https://example.com/not-an-image",
	}

	urls := ResolveAll(post, 4)
	assert.Equal(t, []string{"https://i.redd.it/pic.jpg"}, urls)
}

func TestResolve_FallbackPrefersURLOverridden(t *testing.T) {
	post := &item.Item{
		Kind:          item.KindPost,
		URLOverridden: "https://i.redd.it/override.jpg",
		URL:           "https://i.redd.it/plain.jpg",
		Preview: &item.Preview{Images: []item.PreviewImage{
			{Source: item.MediaSource{URL: "https://preview.redd.it/prev.jpg"}},
		}},
	}

	url, ok := Resolve(post)
	assert.True(t, ok)
	assert.Equal(t, "https://i.redd.it/override.jpg", url)
}

func TestResolve_FallbackUsesPreviewThenURL(t *testing.T) {
	withPreview := &item.Item{
		Kind: item.KindPost,
		URL:  "https://i.redd.it/plain.jpg",
		Preview: &item.Preview{Images: []item.PreviewImage{
			{Source: item.MediaSource{URL: "https://preview.redd.it/prev.jpg?width=1&amp;s=x"}},
		}},
	}

	url, ok := Resolve(withPreview)
	assert.True(t, ok)
	assert.Equal(t, "https://preview.redd.it/prev.jpg?width=1&s=x", url)

	plain := &item.Item{Kind: item.KindPost, URL: "https://i.redd.it/plain.jpg"}
	url, ok = Resolve(plain)
	assert.True(t, ok)
	assert.Equal(t, "https://i.redd.it/plain.jpg", url)
}

func TestResolve_NonImagePostYieldsNothing(t *testing.T) {
	post := &item.Item{
		Kind:     item.KindPost,
		URL:      "https://example.com/article",
		Selftext: "no links here",
	}

	_, ok := Resolve(post)
	assert.False(t, ok)
	assert.Nil(t, ResolveAll(post, 4))
}

func TestResolveAll_MaxZeroYieldsNil(t *testing.T) {
	post := &item.Item{Kind: item.KindPost, URL: "https://i.redd.it/plain.jpg"}
	assert.Nil(t, ResolveAll(post, 0))
}

func TestResolveAll_TruncatesToMax(t *testing.T) {
	post := &item.Item{
		Kind:      item.KindPost,
		IsGallery: true,
		GalleryData: &item.GalleryData{Items: []item.GalleryItem{
			{MediaID: "a"}, {MediaID: "b"}, {MediaID: "c"},
		}},
		MediaMetadata: map[string]item.MediaEntry{
			"a": {Source: &item.MediaSource{U: "https://i.redd.it/a.jpg"}},
			"b": {Source: &item.MediaSource{U: "https://i.redd.it/b.jpg"}},
			"c": {Source: &item.MediaSource{U: "https://i.redd.it/c.jpg"}},
		},
	}

	urls := ResolveAll(post, 2)
	assert.Len(t, urls, 2)
	assert.Equal(t, "https://i.redd.it/a.jpg", urls[0])
}
