package utils

import "github.com/microcosm-cc/bluemonday"

var sanitizer = bluemonday.UGCPolicy()

// Sanitize cleans HTML content embedded in markdown blocks to prevent XSS.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
