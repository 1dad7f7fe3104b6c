// Package compose turns a qualifying item into the outbound webhook payload.
// It performs no delivery; the only I/O is the best-effort parent-title
// lookup for comments.
package compose

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"modrelay/internal/config"
	"modrelay/internal/discord"
	"modrelay/internal/item"
	"modrelay/internal/media"
)

const (
	titleLimit       = 256
	postDescLimit    = 1024
	commentDescLimit = 2000

	// Embed accent when the post carries no flair color.
	defaultColor = 0x95A5A6
)

var (
	placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)
	inlineImagePattern = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	blankRunsPattern   = regexp.MustCompile(`\n{3,}`)
)

// TitleSource resolves the title of a comment's parent post. Failures are
// non-fatal; the composer falls back to an empty title.
type TitleSource interface {
	PostTitle(ctx context.Context, fullID string) (string, error)
}

type Composer struct {
	cfg    *config.Config
	titles TitleSource
}

func New(cfg *config.Config, titles TitleSource) *Composer {
	return &Composer{cfg: cfg, titles: titles}
}

// Compose builds the full webhook payload for an item.
func (c *Composer) Compose(ctx context.Context, it *item.Item) *discord.Payload {
	username := it.Author
	if username == "" {
		username = "unknown"
	}

	authorURL := ""
	if !c.cfg.Discord.SuppressSubmitter {
		authorURL = "https://www.reddit.com/u/" + username
	}

	redditURL := it.PermalinkURL()

	payload := &discord.Payload{
		Content: c.contentLine(it, username, redditURL, authorURL),
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{
				discordgo.AllowedMentionTypeRoles,
				discordgo.AllowedMentionTypeUsers,
				discordgo.AllowedMentionTypeEveryone,
			},
		},
	}

	if c.cfg.Discord.SuppressItemEmbed {
		return payload
	}

	var description string
	var imageURLs []string

	if it.IsPost() {
		description = c.postDescription(it, username, redditURL)
		imageURLs = media.ResolveAll(it, c.cfg.Embed.ImageCount)

		// No body and no image: show the raw link so the message stays
		// actionable.
		if description == "" && it.URL != "" && len(imageURLs) == 0 {
			description = "🔗 " + it.URL
		}

		if accent := colorBlock(it.LinkFlair.BackgroundColor); accent != "" && description != "" {
			description = accent + " " + description
		}
	} else {
		description = c.commentDescription(ctx, it, username, redditURL)
	}

	embed := &discordgo.MessageEmbed{
		Title:       c.title(ctx, it),
		URL:         redditURL,
		Description: description,
		Color:       flairColor(it),
		Author: &discordgo.MessageEmbedAuthor{
			Name: "u/" + username,
		},
	}
	if !c.cfg.Discord.SuppressAuthorEmbed {
		embed.Author.URL = authorURL
	}

	if it.IsPost() && len(imageURLs) > 0 {
		embed.Image = &discordgo.MessageEmbedImage{URL: imageURLs[0]}
	}

	payload.Embeds = []*discordgo.MessageEmbed{embed}

	for _, url := range imageURLs[min(len(imageURLs), 1):] {
		payload.Embeds = append(payload.Embeds, &discordgo.MessageEmbed{
			Image: &discordgo.MessageEmbedImage{URL: url},
		})
	}

	// Footer and timestamp go on the last embed only, so they render below
	// any trailing image embeds.
	last := payload.Embeds[len(payload.Embeds)-1]
	last.Footer = &discordgo.MessageEmbedFooter{Text: "r/" + it.Subreddit}
	last.Timestamp = time.Now().UTC().Format(time.RFC3339)

	return payload
}

func (c *Composer) contentLine(it *item.Item, username, redditURL, authorURL string) string {
	itemURL := redditURL
	if c.cfg.Discord.SuppressItemEmbed {
		itemURL = "<" + itemURL + ">"
	}
	profileURL := authorURL
	if c.cfg.Discord.SuppressAuthorEmbed {
		profileURL = "<" + profileURL + ">"
	}

	message := fmt.Sprintf("New [%s](%s) by [u/%s](%s)!", it.Kind, itemURL, username, profileURL)

	if c.cfg.Discord.PingRole && c.cfg.Discord.PingRoleID != "" {
		message += fmt.Sprintf("\n<@&%s>", c.cfg.Discord.PingRoleID)
	}

	return message
}

func (c *Composer) title(ctx context.Context, it *item.Item) string {
	if it.IsPost() {
		return Truncate(it.Title, titleLimit)
	}
	return Truncate("New comment on: "+c.parentTitle(ctx, it), titleLimit)
}

func (c *Composer) postDescription(it *item.Item, username, redditURL string) string {
	if tpl := strings.TrimSpace(c.cfg.Embed.PostTemplate); tpl != "" {
		raw := RenderTemplate(tpl, map[string]string{
			"title":     it.Title,
			"selftext":  it.Selftext,
			"url":       redditURL,
			"author":    username,
			"subreddit": it.Subreddit,
			"flair":     it.LinkFlair.Text,
		})
		return Truncate(raw, postDescLimit)
	}

	if strings.TrimSpace(it.Selftext) == "" {
		return ""
	}

	cleaned := inlineImagePattern.ReplaceAllString(it.Selftext, "")
	cleaned = blankRunsPattern.ReplaceAllString(cleaned, "\n\n")
	cleaned = strings.TrimSpace(cleaned)
	return Truncate(cleaned, postDescLimit)
}

func (c *Composer) commentDescription(ctx context.Context, it *item.Item, username, redditURL string) string {
	if tpl := strings.TrimSpace(c.cfg.Embed.CommentTemplate); tpl != "" {
		raw := RenderTemplate(tpl, map[string]string{
			"body":      it.Body,
			"postTitle": c.parentTitle(ctx, it),
			"url":       redditURL,
			"author":    username,
			"subreddit": it.Subreddit,
		})
		return Truncate(raw, commentDescLimit)
	}
	return Truncate(it.Body, commentDescLimit)
}

func (c *Composer) parentTitle(ctx context.Context, it *item.Item) string {
	if c.titles == nil || it.LinkID == "" {
		return ""
	}
	title, err := c.titles.PostTitle(ctx, it.LinkID)
	if err != nil {
		log.Printf("Composer: error fetching parent post title for %s: %v", it.UniqueID(), err)
		return ""
	}
	return title
}

// Truncate cuts text to at most limit characters; when it cuts, the last
// character is a single ellipsis so the result is exactly limit runes long.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}

// RenderTemplate substitutes {name} placeholders; unknown placeholders render
// as empty strings.
func RenderTemplate(template string, variables map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		return variables[key]
	})
}

func flairColor(it *item.Item) int {
	if !it.IsPost() {
		return defaultColor
	}
	color, ok := parseHexColor(it.LinkFlair.BackgroundColor)
	if !ok {
		return defaultColor
	}
	return color
}

func parseHexColor(hex string) (int, bool) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return 0, false
	}
	value, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0, false
	}
	return int(value), true
}

// colorBlock maps a flair background color to a coarse colored-square
// indicator. Unset or unparseable colors yield no block.
func colorBlock(hex string) string {
	value, ok := parseHexColor(hex)
	if !ok {
		return ""
	}

	r := (value >> 16) & 0xff
	g := (value >> 8) & 0xff
	b := value & 0xff

	switch {
	case r > 200 && g > 200 && b > 200:
		return "⬜"
	case r < 60 && g < 60 && b < 60:
		return "⬛"
	case r >= g && r >= b && g > r/2:
		return "🟧"
	case r >= g && r >= b:
		return "🟥"
	case g >= r && g >= b:
		return "🟩"
	default:
		return "🟦"
	}
}
