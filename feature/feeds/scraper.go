package feeds

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"leadsync/feature/leads/models"
)

// Posting is one discovered job posting, parsed from a feed entry.
type Posting struct {
	URL     string
	Keyword string
	Fields  models.FieldValues
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string   `xml:"title"`
	Link    atomLink `xml:"link"`
	Summary string   `xml:"summary"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
}

// Scraper parses job-board atom feeds into postings.
type Scraper struct {
	log         *zap.Logger
	allowedHost string
	location    *time.Location
	now         func() time.Time
}

// NewScraper creates a feed scraper. An unknown timezone falls back to UTC
// with a warning.
func NewScraper(log *zap.Logger, cfg Config) *Scraper {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn("unknown timezone, using UTC", zap.String("timezone", cfg.Timezone))
		loc = time.UTC
	}
	return &Scraper{log: log, allowedHost: cfg.AllowedHost, location: loc, now: time.Now}
}

// Parse decodes one atom feed and extracts a posting per entry. Entries with
// missing or off-host links are dropped with a warning.
func (s *Scraper) Parse(data []byte, keyword string) ([]Posting, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("feeds: decode feed: %w", err)
	}

	// The shift is the team shift the scrape ran in, not the posting time.
	shift := shiftBucket(s.now().In(s.location))

	postings := make([]Posting, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		link := strings.TrimSpace(entry.Link.Href)
		if !s.validLink(link) {
			s.log.Warn("dropping entry with invalid link",
				zap.String("keyword", keyword),
				zap.String("link", link))
			continue
		}

		fields := s.parseSummary(entry.Summary)
		fields["title"] = cleanTitle(entry.Title)
		fields["shift"] = shift

		postings = append(postings, Posting{
			URL:     canonicalURL(link),
			Keyword: keyword,
			Fields:  fields,
		})
	}
	return postings, nil
}

func (s *Scraper) validLink(link string) bool {
	if link == "" {
		return false
	}
	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	if s.allowedHost != "" && u.Host != s.allowedHost {
		return false
	}
	return true
}

// parseSummary extracts the labeled values out of an entry summary. The
// summary is HTML with lines like "Budget: $500" and "Country: Germany".
func (s *Scraper) parseSummary(summary string) models.FieldValues {
	fields := models.FieldValues{}
	text := CleanHTML(summary)

	for _, line := range strings.Split(text, "\n") {
		label, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		label = strings.ToLower(strings.TrimSpace(label))
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch label {
		case "budget":
			if n, ok := NumberFromString(value); ok {
				fields["budget"] = int(n)
			}
		case "hourly range":
			if rate, ok := hourlyRate(value); ok {
				fields["hourly"] = rate
			}
		case "country":
			fields["country"] = value
		case "category":
			fields["category"] = value
		}
	}

	// A budget means a fixed-price posting, an hourly range an hourly one.
	if _, ok := fields["budget"]; ok {
		fields["project_type"] = "fixed"
	} else if _, ok := fields["hourly"]; ok {
		fields["project_type"] = "hourly"
	}
	return fields
}

// hourlyRate reads a "$15.00-$30.00" range as its upper bound; a single
// rate is taken as-is.
func hourlyRate(value string) (float64, bool) {
	if strings.Count(value, "$") == 2 {
		_, value, _ = strings.Cut(value, "-")
	}
	return NumberFromString(value)
}

// shiftBucket maps a local time onto the team's working shifts.
func shiftBucket(t time.Time) string {
	switch hour := t.Hour(); {
	case hour < 4:
		return "0-4"
	case hour < 8:
		return "4-8"
	case hour < 16:
		return "8-16"
	default:
		return "16-24"
	}
}

// cleanTitle drops the keyword suffix feeds append to entry titles.
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		title = title[:idx]
	}
	return strings.TrimSpace(title)
}

// canonicalURL strips tracking query parameters so the same posting always
// yields the same identity url.
func canonicalURL(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
