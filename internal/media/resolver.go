// Package media extracts best-effort image URLs from the ragged set of media
// fields a Reddit post can carry. Resolution prefers structured sources
// (gallery, inline media metadata) over free-text and single-URL fallbacks.
package media

import (
	"regexp"
	"slices"
	"sort"
	"strings"

	"modrelay/internal/item"
)

var (
	imageHostPattern = regexp.MustCompile(`i\.redd\.it|preview\.redd\.it|i\.imgur\.com`)
	imageExtPattern  = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|webp)$`)
	bodyURLPattern   = regexp.MustCompile(`https?://\S+`)
)

// LooksLikeImage reports whether a URL points at a known media host or ends
// in a raster-image extension.
func LooksLikeImage(url string) bool {
	if url == "" {
		return false
	}
	return imageHostPattern.MatchString(url) || imageExtPattern.MatchString(url)
}

// DecodeURL undoes the HTML entity escaping Reddit applies to media URLs.
func DecodeURL(url string) string {
	return strings.ReplaceAll(url, "&amp;", "&")
}

// Resolve returns the single best image URL for a post.
func Resolve(post *item.Item) (string, bool) {
	urls := resolve(post)
	if len(urls) == 0 {
		return "", false
	}
	return urls[0], true
}

// ResolveAll returns up to max image URLs in discovery order. A max of 0
// yields nil.
func ResolveAll(post *item.Item, max int) []string {
	if max <= 0 {
		return nil
	}
	urls := resolve(post)
	if len(urls) > max {
		urls = urls[:max]
	}
	return urls
}

func resolve(post *item.Item) []string {
	if post == nil {
		return nil
	}

	// 1) Gallery posts: follow gallery_data item order through media_metadata.
	if post.IsGallery && post.GalleryData != nil && post.MediaMetadata != nil {
		var urls []string
		for _, gi := range post.GalleryData.Items {
			entry, ok := post.MediaMetadata[gi.MediaID]
			if !ok {
				continue
			}
			if u := entryURL(entry); u != "" {
				urls = append(urls, u)
			}
		}
		if len(urls) > 0 {
			return urls
		}
	}

	// 2, 3) Inline media on self posts, and the generic metadata scan, walk
	// the same map; keys are sorted so the scan is deterministic.
	var urls []string
	if post.MediaMetadata != nil {
		keys := make([]string, 0, len(post.MediaMetadata))
		for k := range post.MediaMetadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if u := entryURL(post.MediaMetadata[k]); u != "" {
				urls = append(urls, u)
			}
		}
	}

	// 4) Image-looking URLs inside the selftext, deduplicated.
	if post.Selftext != "" {
		for _, candidate := range bodyURLPattern.FindAllString(post.Selftext, -1) {
			candidate = strings.TrimRight(candidate, ")]")
			decoded := DecodeURL(candidate)
			if LooksLikeImage(decoded) && !slices.Contains(urls, decoded) {
				urls = append(urls, decoded)
			}
		}
	}

	if len(urls) > 0 {
		return urls
	}

	// 5) Single-image fallback chain.
	if LooksLikeImage(post.URLOverridden) {
		return []string{DecodeURL(post.URLOverridden)}
	}
	if u := previewURL(post); LooksLikeImage(u) {
		return []string{DecodeURL(u)}
	}
	if LooksLikeImage(post.URL) {
		return []string{DecodeURL(post.URL)}
	}

	return nil
}

// entryURL pulls a usable image URL out of a media_metadata entry, preferring
// the source rendition over the largest resized one. Malformed entries
// resolve to "".
func entryURL(entry item.MediaEntry) string {
	var raw string
	if entry.Source != nil {
		raw = entry.Source.Resolved()
	}
	if raw == "" && len(entry.Resize) > 0 {
		raw = entry.Resize[len(entry.Resize)-1].Resolved()
	}
	if raw == "" {
		return ""
	}
	decoded := DecodeURL(raw)
	if !LooksLikeImage(decoded) {
		return ""
	}
	return decoded
}

func previewURL(post *item.Item) string {
	if post.Preview == nil || len(post.Preview.Images) == 0 {
		return ""
	}
	return post.Preview.Images[0].Source.URL
}
