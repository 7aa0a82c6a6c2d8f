package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"
)

const guidIsLinkKey = "guidislink"

// rssNamespaces are the element namespaces gofeed reads as RSS rather than
// as extensions.
var rssNamespaces = map[string]bool{
	"":                                            true,
	"http://purl.org/rss/1.0/":                    true,
	"http://my.netscape.com/rdf/simple/0.9/":      true,
	"http://www.w3.org/1999/02/22-rdf-syntax-ns#": true,
	"http://backend.userland.com/rss2":            true,
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Run parses raw feed data into entries, in feed order. Items carrying
// neither a guid nor a link cannot be tracked and are dropped.
func (p *Parser) Run(data []byte) ([]Entry, error) {
	gofeedParser := gofeed.NewParser()
	gofeedParser.RSSTranslator = &rssTranslator{permalinks: scanGUIDPermalinks(data)}

	feed, err := gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entry, ok := p.normalizeItem(item)
		if !ok {
			slog.Debug("Dropping feed item without guid or link", "title", item.Title)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) (Entry, bool) {
	entry := Entry{
		GUID:        strings.TrimSpace(item.GUID),
		Title:       norm.NFC.String(strings.TrimSpace(item.Title)),
		Link:        strings.TrimSpace(item.Link),
		GUIDIsLink:  item.Custom[guidIsLinkKey] == "true",
		Categories:  item.Categories,
		PublishedAt: item.PublishedParsed,
	}

	if entry.GUID == "" {
		if entry.Link == "" {
			return Entry{}, false
		}
		entry.GUID = entry.Link
		entry.GUIDIsLink = true
	}

	return entry, true
}

// rssTranslator extends the default RSS mapping with the guid-is-link flag,
// which the generic item type has no field for.
type rssTranslator struct {
	gofeed.DefaultRSSTranslator
	// permalinks holds the isPermaLink attribute of each item's guid, in
	// item order. gofeed looks the attribute up as "isPermalink" and never
	// sees the spelling feeds actually use.
	permalinks []string
}

func (t *rssTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	result, err := t.DefaultRSSTranslator.Translate(feed)
	if err != nil {
		return nil, err
	}

	rssFeed, ok := feed.(*rss.Feed)
	if !ok || len(rssFeed.Items) != len(result.Items) {
		return result, nil
	}

	permalinks := t.permalinks
	if len(permalinks) != len(rssFeed.Items) {
		permalinks = nil
	}

	for i, rssItem := range rssFeed.Items {
		if rssItem == nil || rssItem.GUID == nil {
			continue
		}
		isPermalink := rssItem.GUID.IsPermalink
		if permalinks != nil && permalinks[i] != "" {
			isPermalink = permalinks[i]
		}
		if !guidIsLink(rssItem, isPermalink) {
			continue
		}
		item := result.Items[i]
		custom := make(map[string]string, len(item.Custom)+1)
		for k, v := range item.Custom {
			custom[k] = v
		}
		custom[guidIsLinkKey] = "true"
		item.Custom = custom
	}

	return result, nil
}

// guidIsLink reports whether a guid doubles as the item's link: a permalink
// guid (the RSS default) on an item that has no <link> of its own.
func guidIsLink(item *rss.Item, isPermalink string) bool {
	if item == nil || item.GUID == nil || strings.TrimSpace(item.Link) != "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(isPermalink), "false") {
		return false
	}

	u, err := url.Parse(strings.TrimSpace(item.GUID.Value))
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https":
		return u.Host != ""
	case "magnet":
		return true
	default:
		return false
	}
}

// scanGUIDPermalinks collects the isPermaLink attribute of every RSS item's
// guid, matching the attribute name case-insensitively. Items are listed
// the way gofeed lists them: channel items first, then items at the
// document root. An item without the attribute gets "". Nil is returned
// when the document cannot be read.
func scanGUIDPermalinks(data []byte) []string {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = false
	d.CharsetReader = charset.NewReaderLabel

	var channelItems, rootItems []string
	var current *[]string
	var stack []string

	for {
		tok, err := d.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil
		}

		switch el := tok.(type) {
		case xml.StartElement:
			name := "#extension"
			if rssNamespaces[el.Name.Space] {
				name = strings.ToLower(el.Name.Local)
			}

			switch {
			case name == "item" && len(stack) == 1:
				rootItems = append(rootItems, "")
				current = &rootItems
			case name == "item" && len(stack) == 2 && stack[1] == "channel":
				channelItems = append(channelItems, "")
				current = &channelItems
			case name == "guid" && current != nil && len(stack) > 0 && stack[len(stack)-1] == "item":
				(*current)[len(*current)-1] = ""
				for _, attr := range el.Attr {
					if strings.EqualFold(attr.Name.Local, "isPermaLink") {
						(*current)[len(*current)-1] = attr.Value
					}
				}
			}
			stack = append(stack, name)

		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			if stack[len(stack)-1] == "item" && (len(stack) == 2 || len(stack) == 3) {
				current = nil
			}
			stack = stack[:len(stack)-1]
		}
	}

	return append(channelItems, rootItems...)
}
