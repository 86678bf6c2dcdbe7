package brandimport

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"

	"github.com/c360studio/brandstudio/brand"
)

const (
	maxTaglineRunes  = 160
	maxMarkdownRunes = 4000
)

var (
	excessiveLinesRe = regexp.MustCompile(`\n{3,}`)
	shortHexRe       = regexp.MustCompile(`^#([0-9a-fA-F])([0-9a-fA-F])([0-9a-fA-F])$`)
	longHexRe        = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	rgbRe            = regexp.MustCompile(`^rgba?\(\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*(?:,[^)]*)?\)$`)
)

// Draft is a brand profile inferred from a website. The contact fields are
// left empty for the user to complete before saving.
type Draft struct {
	Brand       brand.Config `json:"brand"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Markdown    string       `json:"markdown,omitempty"`
}

// pageMeta collects the head signals of a page.
type pageMeta struct {
	title       string
	siteName    string
	appName     string
	description string
	ogImage     string
	icon        string
	touchIcon   string
	colors      []string
}

// newMarkdownConverter returns the converter used for page summaries.
func newMarkdownConverter() *md.Converter {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return conv
}

// extract builds a draft from an HTML document served at pageURL.
func extract(conv *md.Converter, pageURL string, body []byte) (*Draft, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	meta := &pageMeta{}
	collectMeta(doc, meta)

	draft := &Draft{
		Title:       meta.title,
		Description: meta.description,
		Brand: brand.Config{
			CompanyName: companyName(meta, base),
			Website:     base.String(),
			Tagline:     truncateRunes(meta.description, maxTaglineRunes),
			LogoURL:     resolve(base, firstNonEmpty(meta.touchIcon, meta.icon, meta.ogImage)),
			Colors:      meta.colors,
		},
	}

	markdown, err := conv.ConvertString(mainContent(doc))
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	draft.Markdown = truncateRunes(cleanMarkdown(markdown), maxMarkdownRunes)
	return draft, nil
}

func collectMeta(n *html.Node, meta *pageMeta) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if meta.title == "" {
				meta.title = strings.TrimSpace(textOf(n))
			}
		case "meta":
			readMeta(n, meta)
		case "link":
			readLink(n, meta)
		case "body":
			// Head signals only.
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectMeta(c, meta)
	}
}

func readMeta(n *html.Node, meta *pageMeta) {
	key := strings.ToLower(firstNonEmpty(attr(n, "name"), attr(n, "property")))
	content := strings.TrimSpace(attr(n, "content"))
	if content == "" {
		return
	}
	switch key {
	case "og:site_name":
		meta.siteName = content
	case "application-name":
		meta.appName = content
	case "description":
		meta.description = content
	case "og:description":
		if meta.description == "" {
			meta.description = content
		}
	case "og:image":
		if meta.ogImage == "" {
			meta.ogImage = content
		}
	case "theme-color", "msapplication-tilecolor":
		if c, ok := NormalizeColor(content); ok && !slices.Contains(meta.colors, c) {
			meta.colors = append(meta.colors, c)
		}
	}
}

func readLink(n *html.Node, meta *pageMeta) {
	href := strings.TrimSpace(attr(n, "href"))
	if href == "" {
		return
	}
	for _, rel := range strings.Fields(strings.ToLower(attr(n, "rel"))) {
		switch rel {
		case "apple-touch-icon":
			if meta.touchIcon == "" {
				meta.touchIcon = href
			}
		case "icon":
			if meta.icon == "" {
				meta.icon = href
			}
		}
	}
}

// companyName prefers explicit site names over the document title, and the
// title over the bare host.
func companyName(meta *pageMeta, base *url.URL) string {
	if name := firstNonEmpty(meta.siteName, meta.appName); name != "" {
		return name
	}
	if meta.title != "" {
		for _, sep := range []string{" | ", " - ", " – ", " · ", ": "} {
			if i := strings.Index(meta.title, sep); i > 0 {
				return strings.TrimSpace(meta.title[:i])
			}
		}
		return meta.title
	}
	return strings.TrimPrefix(base.Hostname(), "www.")
}

// NormalizeColor converts #rgb, #rrggbb and rgb()/rgba() colours to
// lowercase #rrggbb.
func NormalizeColor(s string) (string, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if longHexRe.MatchString(s) {
		return s, true
	}
	if m := shortHexRe.FindStringSubmatch(s); m != nil {
		return "#" + m[1] + m[1] + m[2] + m[2] + m[3] + m[3], true
	}
	if m := rgbRe.FindStringSubmatch(s); m != nil {
		var out strings.Builder
		out.WriteByte('#')
		for _, part := range m[1:] {
			v, err := strconv.Atoi(part)
			if err != nil || v > 255 {
				return "", false
			}
			fmt.Fprintf(&out, "%02x", v)
		}
		return out.String(), true
	}
	return "", false
}

// mainContent renders the page's main region, falling back to a stripped body.
func mainContent(doc *html.Node) string {
	for _, tag := range []string{"main", "article"} {
		if n := findElement(doc, tag); n != nil {
			return render(n)
		}
	}
	removeElements(doc, "nav", "header", "footer", "aside", "script", "style",
		"noscript", "iframe", "form", "button", "svg")
	if body := findElement(doc, "body"); body != nil {
		return render(body)
	}
	return render(doc)
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && (n.Data == tag || (tag == "main" && attr(n, "role") == "main")) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func removeElements(n *html.Node, tags ...string) {
	drop := make(map[string]bool, len(tags))
	for _, t := range tags {
		drop[t] = true
	}
	var doomed []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && drop[node.Data] {
			doomed = append(doomed, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	for _, node := range doomed {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func render(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

func cleanMarkdown(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(excessiveLinesRe.ReplaceAllString(s, "\n\n"))
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	return u.String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n])) + "…"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
