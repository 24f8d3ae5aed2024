// Package page finds linked thumbnails in an HTML document and turns them into
// acquisition requests.
package page

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vietddude/fullres/internal/acquire/engine"
)

// FullresAttr lets a page name the full-resolution source explicitly.
const FullresAttr = "fullres-src"

var (
	thumbnailSel = cascadia.MustCompile("a[href] img")
	videoExt     = regexp.MustCompile(`(?i)\.(mov|mp4|avi|webm|flv|wmv)($|\?)`)
)

// Candidate is one linked thumbnail.
type Candidate struct {
	ID         string `json:"id"`
	ImgSrc     string `json:"img_src"`
	AnchorHref string `json:"anchor_href"`
	FullresSrc string `json:"fullres_src,omitempty"`
	Alt        string `json:"alt,omitempty"`
}

// IsVideo reports whether the anchor links to a video file.
func (c Candidate) IsVideo() bool {
	return videoExt.MatchString(c.AnchorHref)
}

// Request maps the candidate to an engine request: the fullres-src attribute
// is the explicit target, the anchor is the hint, the img src is current.
func (c Candidate) Request() engine.Request {
	return engine.Request{
		ID:         c.ID,
		CurrentURL: c.ImgSrc,
		HintURL:    c.AnchorHref,
		TargetURL:  c.FullresSrc,
	}
}

// Scan parses r and returns every `a[href] img` in document order.
// Relative URLs are resolved against base; ids are stable for the same base
// and document.
func Scan(r io.Reader, base string) ([]Candidate, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var baseURL *url.URL
	if base != "" {
		if baseURL, err = url.Parse(base); err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
	}
	if href := baseHref(doc); href != "" {
		if ref, err := url.Parse(href); err == nil {
			if baseURL != nil {
				baseURL = baseURL.ResolveReference(ref)
			} else {
				baseURL = ref
			}
		}
	}

	nodes := thumbnailSel.MatchAll(doc)
	result := make([]Candidate, 0, len(nodes))
	for i, img := range nodes {
		anchor := closestAnchor(img)
		if anchor == nil {
			continue
		}
		c := Candidate{
			ImgSrc:     resolve(baseURL, attr(img, "src")),
			AnchorHref: resolve(baseURL, attr(anchor, "href")),
			FullresSrc: resolve(baseURL, attr(img, FullresAttr)),
			Alt:        attr(img, "alt"),
		}
		c.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d|%s|%s", base, i, c.ImgSrc, c.AnchorHref))).String()
		result = append(result, c)
	}
	return result, nil
}

func closestAnchor(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.A && hasAttr(p, "href") {
			return p
		}
	}
	return nil
}

func baseHref(doc *html.Node) string {
	if n := cascadia.Query(doc, cascadia.MustCompile("base[href]")); n != nil {
		return attr(n, "href")
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// resolve makes ref absolute against base. data: and unparsable values are
// returned unchanged.
func resolve(base *url.URL, ref string) string {
	if ref == "" || base == nil || strings.HasPrefix(strings.ToLower(ref), "data:") {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
