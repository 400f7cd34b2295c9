// Package tagger annotates a destination with the traffic source derived from
// the request's referring origin.
package tagger

import (
	"net/url"
	"strings"

	"github.com/angeloszaimis/link-rotator/internal/destination"
)

const DefaultParam = "sub_id"

// Rule maps a referer to a traffic label. A Match containing a dot is a
// domain and matches that host or any subdomain of it. A Match without a dot
// matches anywhere in the host. Referers that are not absolute URLs are
// matched as plain substrings.
type Rule struct {
	Match string
	Label string
}

// DefaultRules is the built-in referer table. Rules are evaluated in order
// and the first match wins.
var DefaultRules = []Rule{
	{Match: "facebook.com", Label: "FB_Traffic"},
	{Match: "fb.com", Label: "FB_Traffic"},
	{Match: "instagram.com", Label: "IG_Traffic"},
	{Match: "tiktok.com", Label: "TikTok_Traffic"},
	{Match: "t.co", Label: "X_Traffic"},
	{Match: "twitter.com", Label: "X_Traffic"},
	{Match: "x.com", Label: "X_Traffic"},
	{Match: "whatsapp", Label: "WA_Traffic"},
	{Match: "t.me", Label: "Telegram_Traffic"},
	{Match: "youtube.com", Label: "YT_Traffic"},
}

type Tagger struct {
	param string
	rules []Rule
}

// New builds a Tagger. An empty param falls back to DefaultParam and nil
// rules fall back to DefaultRules.
func New(param string, rules []Rule) *Tagger {
	if param == "" {
		param = DefaultParam
	}

	if rules == nil {
		rules = DefaultRules
	}

	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		match := strings.ToLower(strings.TrimSpace(r.Match))
		if match == "" || r.Label == "" {
			continue
		}
		normalized = append(normalized, Rule{Match: match, Label: r.Label})
	}

	return &Tagger{param: param, rules: normalized}
}

// Label returns the traffic label for referer, or "" when nothing matches.
func (t *Tagger) Label(referer string) string {
	referer = strings.ToLower(strings.TrimSpace(referer))
	if referer == "" {
		return ""
	}

	host := ""
	if u, err := url.Parse(referer); err == nil {
		host = u.Hostname()
	}

	for _, r := range t.rules {
		if host == "" && strings.Contains(referer, r.Match) {
			return r.Label
		}
		if host != "" && hostMatches(host, r.Match) {
			return r.Label
		}
	}

	return ""
}

func hostMatches(host, match string) bool {
	if !strings.Contains(match, ".") {
		return strings.Contains(host, match)
	}
	return host == match || strings.HasSuffix(host, "."+match)
}

// Tag sets the tracking parameter on dest when the referer is recognised.
// Any failure leaves dest untouched.
func (t *Tagger) Tag(dest destination.Destination, referer string) destination.Destination {
	label := t.Label(referer)
	if label == "" {
		return dest
	}

	tagged, err := dest.WithQuery(t.param, label)
	if err != nil {
		return dest
	}

	return tagged
}

// Param returns the query parameter the tagger writes.
func (t *Tagger) Param() string {
	return t.param
}
