// Package feed 生成 RSS 2.0 订阅源与 sitemap。
// 正文放进 content:encoded 的 CDATA 段,阅读器无需二次转义。
package feed

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// Site 描述站点级别的订阅源元数据。
type Site struct {
	Title       string
	URL         string
	Description string
	Lang        string
}

// Item 是进入订阅源或站点地图的一条内容。
// HTML 应当是自包含的(内联样式),Path 是以 / 开头的站内路径。
type Item struct {
	Title     string
	Path      string
	HTML      string
	Summary   string
	Published time.Time
	Updated   time.Time
}

type rssEnvelope struct {
	XMLName   xml.Name   `xml:"rss"`
	Version   string     `xml:"version,attr"`
	ContentNS string     `xml:"xmlns:content,attr"`
	AtomNS    string     `xml:"xmlns:atom,attr"`
	Channel   rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	SelfLink      *atomLink `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string      `xml:"title"`
	Link        string      `xml:"link"`
	GUID        rssGUID     `xml:"guid"`
	PubDate     string      `xml:"pubDate"`
	Description string      `xml:"description,omitempty"`
	Content     *rssContent `xml:"content:encoded,omitempty"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssContent struct {
	Text string `xml:",cdata"`
}

// RSS 把条目编码成 RSS 2.0 文档。lastBuildDate 取最新的发布时间。
func RSS(site Site, items []Item) ([]byte, error) {
	channel := rssChannel{
		Title:       site.Title,
		Link:        site.URL,
		Description: site.Description,
		Language:    site.Lang,
		SelfLink: &atomLink{
			Href: absURL(site.URL, "/feed.xml"),
			Rel:  "self",
			Type: "application/rss+xml",
		},
	}

	var latest time.Time
	for _, it := range items {
		link := absURL(site.URL, it.Path)
		ri := rssItem{
			Title:       it.Title,
			Link:        link,
			GUID:        rssGUID{IsPermaLink: "true", Value: link},
			PubDate:     it.Published.Format(time.RFC1123Z),
			Description: it.Summary,
		}
		if it.HTML != "" {
			ri.Content = &rssContent{Text: it.HTML}
		}
		channel.Items = append(channel.Items, ri)
		if it.Published.After(latest) {
			latest = it.Published
		}
	}
	if !latest.IsZero() {
		channel.LastBuildDate = latest.Format(time.RFC1123Z)
	}

	doc := rssEnvelope{
		Version:   "2.0",
		ContentNS: "http://purl.org/rss/1.0/modules/content/",
		AtomNS:    "http://www.w3.org/2005/Atom",
		Channel:   channel,
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal rss: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	NS      string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// Sitemap 生成站点地图,首页在最前,lastmod 优先取更新时间。
func Sitemap(site Site, items []Item) ([]byte, error) {
	set := urlSet{NS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	set.URLs = append(set.URLs, sitemapURL{Loc: absURL(site.URL, "/")})
	for _, it := range items {
		mod := it.Updated
		if mod.IsZero() {
			mod = it.Published
		}
		u := sitemapURL{Loc: absURL(site.URL, it.Path)}
		if !mod.IsZero() {
			u.LastMod = mod.Format("2006-01-02")
		}
		set.URLs = append(set.URLs, u)
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sitemap: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func absURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
