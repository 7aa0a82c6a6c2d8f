package feed

import (
	"testing"
)

func TestParseRSS2(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>showRSS: Test</title>
    <link>https://showrss.info</link>
    <description>Test Description</description>
    <item>
      <title>Show S01E01 720p</title>
      <link>http://x/a.torrent</link>
      <guid isPermaLink="false">a1b2c3</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <category>TV</category>
    </item>
    <item>
      <title>Show S01E02 720p</title>
      <link>http://x/b.torrent</link>
      <guid>d4e5f6</guid>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	entries, err := parser.Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got: %d", len(entries))
	}

	first := entries[0]
	if first.GUID != "a1b2c3" {
		t.Errorf("Expected guid 'a1b2c3', got: %s", first.GUID)
	}
	if first.Title != "Show S01E01 720p" {
		t.Errorf("Expected title 'Show S01E01 720p', got: %s", first.Title)
	}
	if first.GUIDIsLink {
		t.Error("Expected opaque guid not to be treated as link")
	}
	if first.URI() != "http://x/a.torrent" {
		t.Errorf("Expected URI 'http://x/a.torrent', got: %s", first.URI())
	}
	if first.PublishedAt == nil {
		t.Error("Expected published date to be parsed")
	}
	if len(first.Categories) != 1 || first.Categories[0] != "TV" {
		t.Errorf("Expected categories [TV], got: %v", first.Categories)
	}

	if entries[1].GUID != "d4e5f6" {
		t.Errorf("Expected feed order to be preserved, got guid: %s", entries[1].GUID)
	}
}

func TestParseGUIDIsLink(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Magnets</title>
    <item>
      <title>Magnet Only</title>
      <guid>magnet:?xt=urn:btih:abcdef&amp;dn=show</guid>
    </item>
    <item>
      <title>URL Guid Only</title>
      <guid>http://x/c.torrent</guid>
    </item>
    <item>
      <title>URL Guid With Link</title>
      <link>http://x/d.torrent</link>
      <guid>http://x/details/d</guid>
    </item>
    <item>
      <title>Opaque Guid Without Link</title>
      <guid>not-a-url</guid>
    </item>
  </channel>
</rss>`

	entries, err := NewParser().Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("Expected 4 entries, got: %d", len(entries))
	}

	expected := []struct {
		guidIsLink bool
		uri        string
	}{
		{true, "magnet:?xt=urn:btih:abcdef&dn=show"},
		{true, "http://x/c.torrent"},
		{false, "http://x/d.torrent"},
		{false, ""},
	}

	for i, want := range expected {
		if entries[i].GUIDIsLink != want.guidIsLink {
			t.Errorf("Entry %d (%s): expected GUIDIsLink %v, got %v", i, entries[i].Title, want.guidIsLink, entries[i].GUIDIsLink)
		}
		if entries[i].URI() != want.uri {
			t.Errorf("Entry %d (%s): expected URI '%s', got '%s'", i, entries[i].Title, want.uri, entries[i].URI())
		}
	}
}

func TestParseGUIDPermaLinkFalse(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Tracker</title>
    <item>
      <title>Not A Permalink</title>
      <guid isPermaLink="false">http://tracker/abc</guid>
    </item>
    <item>
      <title>Lowercase Attribute</title>
      <guid ispermalink="FALSE">magnet:?xt=urn:btih:def</guid>
    </item>
    <item>
      <title>Explicit Permalink</title>
      <guid isPermaLink="true">http://tracker/ghi.torrent</guid>
    </item>
  </channel>
</rss>`

	entries, err := NewParser().Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got: %d", len(entries))
	}

	if entries[0].GUIDIsLink || entries[0].URI() != "" {
		t.Errorf("Expected isPermaLink=\"false\" guid not to be used as URI, got GUIDIsLink %v URI '%s'", entries[0].GUIDIsLink, entries[0].URI())
	}
	if entries[1].GUIDIsLink {
		t.Error("Expected attribute name to match case-insensitively")
	}
	if !entries[2].GUIDIsLink || entries[2].URI() != "http://tracker/ghi.torrent" {
		t.Errorf("Expected permalink guid to be used as URI, got '%s'", entries[2].URI())
	}
}

func TestScanGUIDPermalinksFollowsItemOrder(t *testing.T) {
	data := `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns="http://purl.org/rss/1.0/" xmlns:x="http://example.com/ext">
  <item><guid isPermaLink="false">root-1</guid></item>
  <channel>
    <title>Mixed</title>
    <item><link>http://x/a</link><guid isPermaLink="true">a</guid></item>
    <x:item><guid isPermaLink="false">ignored</guid></x:item>
    <item><guid>b</guid></item>
  </channel>
</rdf:RDF>`

	got := scanGUIDPermalinks([]byte(data))
	want := []string{"true", "", "false"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d items, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Item %d: expected '%s', got '%s'", i, want[i], got[i])
		}
	}

	if scanGUIDPermalinks([]byte("<rss><channel><item>")) != nil {
		t.Error("Expected nil for unreadable document")
	}
}

func TestParseMissingGUIDFallsBackToLink(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>No Guids</title>
    <item>
      <title>Link Only</title>
      <link>http://x/e.torrent</link>
    </item>
    <item>
      <title>Nothing To Track</title>
    </item>
  </channel>
</rss>`

	entries, err := NewParser().Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected untrackable item to be dropped, got %d entries", len(entries))
	}
	if entries[0].GUID != "http://x/e.torrent" {
		t.Errorf("Expected guid to fall back to link, got: %s", entries[0].GUID)
	}
	if !entries[0].GUIDIsLink {
		t.Error("Expected fallback guid to be marked as link")
	}
}

func TestParseAtom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Torrents</title>
  <id>urn:feed</id>
  <updated>2023-07-03T12:00:00Z</updated>
  <entry>
    <title>Atom Show S02E01</title>
    <link href="http://x/atom.torrent"/>
    <id>urn:entry:1</id>
    <updated>2023-07-03T10:00:00Z</updated>
  </entry>
</feed>`

	entries, err := NewParser().Run([]byte(atomData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got: %d", len(entries))
	}
	if entries[0].GUID != "urn:entry:1" {
		t.Errorf("Expected guid 'urn:entry:1', got: %s", entries[0].GUID)
	}
	if entries[0].URI() != "http://x/atom.torrent" {
		t.Errorf("Expected URI 'http://x/atom.torrent', got: %s", entries[0].URI())
	}
}

func TestParseNormalizesTitle(t *testing.T) {
	// "e" followed by a combining acute accent composes to "é" under NFC.
	rssData := "<?xml version=\"1.0\"?><rss version=\"2.0\"><channel><title>T</title>" +
		"<item><title>  Cafe\u0301 S01E01  </title><link>http://x/f.torrent</link><guid>f</guid></item>" +
		"</channel></rss>"

	entries, err := NewParser().Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if entries[0].Title != "Caf\u00e9 S01E01" {
		t.Errorf("Expected NFC-normalized trimmed title, got: %q", entries[0].Title)
	}
}

func TestParseInvalidFeed(t *testing.T) {
	_, err := NewParser().Run([]byte("this is not a feed"))
	if err == nil {
		t.Error("Expected error for invalid feed data")
	}
}
