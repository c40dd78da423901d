package extract

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ApplyCSSSelector narrows rawHTML to the elements matching selector,
// returning their concatenated outer HTML. Selector groups ("main, article")
// are accepted. When nothing matches, the original HTML comes back unchanged
// so downstream stages still have input.
func ApplyCSSSelector(rawHTML, selector string) (string, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return "", err
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, node := range cascadia.QueryAll(doc, sel) {
		if err := html.Render(&sb, node); err != nil {
			return "", err
		}
	}
	if sb.Len() == 0 {
		return rawHTML, nil
	}
	return sb.String(), nil
}
