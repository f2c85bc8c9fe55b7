package pkg

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.UGCPolicy()

// Sanitize 清理用户输入的 HTML，防 XSS
func Sanitize(input string) string {
	return strings.TrimSpace(sanitizer.Sanitize(input))
}
