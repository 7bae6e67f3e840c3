package bot

import "strings"

// escalationKeywords trigger a human-review flag on support replies.
// Matching is case-insensitive substring search over the raw message.
var escalationKeywords = []string{
	"refund",
	"billing",
	"charge",
	"payment issue",
	"cancel subscription",
	"account locked",
	"can't login",
	"hacked",
	"security",
	"speak to human",
	"talk to someone",
	"real person",
	"agent",
	"complaint",
	"lawyer",
	"legal",
	"sue",
	"urgent",
	"emergency",
}

// NeedsEscalation reports whether the message should be flagged for a
// human support agent.
func NeedsEscalation(content string) bool {
	lower := strings.ToLower(content)
	for _, kw := range escalationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
