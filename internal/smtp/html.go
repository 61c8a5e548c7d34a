package smtp

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	whitespaceRegex = regexp.MustCompile(`[^\S\n]+`)
	newlineRegex    = regexp.MustCompile(`\n{3,}`)
	// 零宽字符等不可见字符
	invisibleRegex = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{034F}\x{2060}-\x{2064}]+`)
)

// HTMLToText 把 HTML 正文转换为可读的纯文本
func HTMLToText(html string) (string, error) {
	if html == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, meta, link").Remove()

	// 块级元素前插入换行
	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	text := invisibleRegex.ReplaceAllString(doc.Text(), "")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	clean := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			clean = append(clean, line)
		}
	}
	text = newlineRegex.ReplaceAllString(strings.Join(clean, "\n"), "\n\n")
	return strings.TrimSpace(text), nil
}
