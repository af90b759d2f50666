package contextwindow

import "strings"

// topicVocabulary is the fixed set of domain keywords scanned for topic
// continuity. Matching is substring containment, so "btc" also matches
// inside "wbtc", which is acceptable for a cheap lexical signal.
var topicVocabulary = []string{
	"bitcoin", "ethereum", "btc", "eth", "defi", "nft", "crypto", "blockchain",
}

const (
	topicWindow = 10
	maxTopics   = 5
)

// ExtractTopics scans the most recent window of messages for vocabulary
// keywords and returns up to maxTopics in first-seen order. Older messages
// do not influence the result, keeping the scan O(window).
func ExtractTopics(messages []Message) []string {
	start := len(messages) - topicWindow
	if start < 0 {
		start = 0
	}

	var topics []string
	seen := make(map[string]bool, maxTopics)
	for _, msg := range messages[start:] {
		content := strings.ToLower(msg.Content)
		for _, kw := range topicVocabulary {
			if seen[kw] || !strings.Contains(content, kw) {
				continue
			}
			seen[kw] = true
			topics = append(topics, kw)
		}
	}

	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	return topics
}
