// Package link recognises Instagram links in free text and pulls reel
// shortcodes out of them.
package link

import "regexp"

var (
	// Optional scheme, optional www., instagram.com or instagr.am, then a path.
	instagramPattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:instagram\.com|instagr\.am)/\S+`)

	// The trailing slash is required: /reel/<id> without it does not match.
	reelPattern = regexp.MustCompile(`/reel/([A-Za-z0-9_-]+)/`)
)

// ContainsInstagramLink reports whether text contains an Instagram URL anywhere.
func ContainsInstagramLink(text string) bool {
	if text == "" {
		return false
	}
	return instagramPattern.MatchString(text)
}

// ExtractReelID returns the shortcode of the first /reel/<id>/ segment in text,
// or "" when there is none (posts, profiles, stories, missing trailing slash).
func ExtractReelID(text string) string {
	m := reelPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
