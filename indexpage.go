package insider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// FetchOwnershipDocument fetches a filing's raw ownership XML. If the
// URL derived from the primary document name 404s (the submissions
// index sometimes points at a rendering that was never archived under
// that name), the filing's index page is scanned for the actual .xml
// document.
func (c *Client) FetchOwnershipDocument(ctx context.Context, f Filing) ([]byte, error) {
	data, err := c.get(ctx, c.DocumentURL(f), "application/xml")
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return c.fetchViaIndexPage(ctx, f)
	}
	return data, err
}

func (c *Client) fetchViaIndexPage(ctx context.Context, f Filing) ([]byte, error) {
	indexURL := c.FilingIndexURL(f)
	page, err := c.get(ctx, indexURL, "text/html")
	if err != nil {
		return nil, err
	}

	href := findOwnershipXML(page)
	if href == "" {
		return nil, fmt.Errorf("no ownership XML listed in filing index %s", indexURL)
	}

	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("bad document link %q in filing index: %w", href, err)
	}
	return c.get(ctx, base.ResolveReference(ref).String(), "application/xml")
}

// findOwnershipXML returns the first .xml link on a filing index page,
// skipping the xslF345-rendered copies. Empty string when none found.
func findOwnershipXML(indexHTML []byte) string {
	doc, err := html.Parse(bytes.NewReader(indexHTML))
	if err != nil {
		return ""
	}

	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if strings.HasSuffix(strings.ToLower(href), ".xml") && !strings.Contains(href, "xsl") {
					found = href
					return
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return found
}
