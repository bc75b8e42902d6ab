package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// plainText strips markup with the given policy and returns unescaped text.
// Entities are decoded before sanitising so encoded markup is stripped like raw markup.
func plainText(policy *bluemonday.Policy, value string) string {
	decoded := value
	for {
		next := html.UnescapeString(decoded)
		if next == decoded {
			break
		}
		decoded = next
	}
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(decoded)))
}
