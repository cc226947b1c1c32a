package publish

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mmcdole/gofeed"
)

const itunesNS = "http://www.itunes.com/dtds/podcast-1.0.dtd"

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	ITunes  string     `xml:"xmlns:itunes,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	Author        string    `xml:"itunes:author,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string       `xml:"title"`
	Description string       `xml:"description"`
	GUID        rssGUID      `xml:"guid"`
	PubDate     string       `xml:"pubDate"`
	Enclosure   rssEnclosure `xml:"enclosure"`
	Block       string       `xml:"itunes:block,omitempty"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// loadItems reads the existing feed's items through gofeed. A missing feed
// yields no items.
func loadItems(parser *gofeed.Parser, path string) ([]rssItem, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	feed, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	items := make([]rssItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		out := rssItem{
			Title:       item.Title,
			Description: item.Description,
			GUID:        rssGUID{IsPermaLink: "false", Value: item.GUID},
			PubDate:     item.Published,
		}
		if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
			enc := item.Enclosures[0]
			length, _ := strconv.ParseInt(enc.Length, 10, 64)
			out.Enclosure = rssEnclosure{URL: enc.URL, Length: length, Type: enc.Type}
		}
		if item.ITunesExt != nil {
			out.Block = item.ITunesExt.Block
		}
		items = append(items, out)
	}
	return items, nil
}

func hasGUID(items []rssItem, guid string) bool {
	for _, item := range items {
		if item.GUID.Value == guid {
			return true
		}
	}
	return false
}

func encodeFeed(w io.Writer, channel rssChannel) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	doc := rssDocument{Version: "2.0", ITunes: itunesNS, Channel: channel}
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func formatPubDate(t time.Time) string {
	return t.UTC().Format(time.RFC1123Z)
}
