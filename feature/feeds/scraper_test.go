package feeds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func timeAtHour(hour int) time.Time {
	return time.Date(2026, 8, 20, hour, 0, 0, 0, time.UTC)
}

const sampleFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>golang jobs</title>
  <entry>
    <title>Go backend developer needed - golang</title>
    <link href="https://jobs.example/posting/12345?source=rss"/>
    <published>2026-08-20T14:30:00Z</published>
    <summary>&lt;b&gt;Budget&lt;/b&gt;: $1,500&lt;br/&gt;&lt;b&gt;Category&lt;/b&gt;: Web Development&lt;br/&gt;&lt;b&gt;Country&lt;/b&gt;: Germany&lt;br/&gt;</summary>
  </entry>
  <entry>
    <title>Hourly API work - golang</title>
    <link href="https://jobs.example/posting/67890"/>
    <published>2026-08-20T22:10:00Z</published>
    <summary>&lt;b&gt;Hourly Range&lt;/b&gt;: $15.00-$30.00&lt;br/&gt;&lt;b&gt;Category&lt;/b&gt;: Backend&lt;br/&gt;&lt;b&gt;Country&lt;/b&gt;: Poland&lt;br/&gt;</summary>
  </entry>
  <entry>
    <title>Spam offsite - golang</title>
    <link href="https://spam.example/click"/>
    <published>2026-08-20T10:00:00Z</published>
    <summary>nothing</summary>
  </entry>
</feed>`

func testScraper() *Scraper {
	s := NewScraper(zap.NewNop(), Config{AllowedHost: "jobs.example", Timezone: "UTC"})
	s.now = func() time.Time { return timeAtHour(14) }
	return s
}

func TestParseFeed(t *testing.T) {
	postings, err := testScraper().Parse([]byte(sampleFeed), "golang")
	require.NoError(t, err)
	require.Len(t, postings, 2)

	first := postings[0]
	// Tracking parameters are stripped from the identity url.
	assert.Equal(t, "https://jobs.example/posting/12345", first.URL)
	assert.Equal(t, "golang", first.Keyword)
	assert.Equal(t, "Go backend developer needed", first.Fields["title"])
	assert.Equal(t, 1500, first.Fields["budget"])
	assert.Equal(t, "fixed", first.Fields["project_type"])
	assert.Equal(t, "Web Development", first.Fields["category"])
	assert.Equal(t, "Germany", first.Fields["country"])
	assert.Equal(t, "8-16", first.Fields["shift"])

	second := postings[1]
	assert.Equal(t, "hourly", second.Fields["project_type"])
	assert.Equal(t, 30.0, second.Fields["hourly"])
}

func TestParseFeedRejectsOffHostLinks(t *testing.T) {
	postings, err := testScraper().Parse([]byte(sampleFeed), "golang")
	require.NoError(t, err)
	for _, p := range postings {
		assert.NotContains(t, p.URL, "spam.example")
	}
}

func TestParseFeedBadXML(t *testing.T) {
	_, err := testScraper().Parse([]byte("not xml at all"), "golang")
	assert.Error(t, err)
}

func TestShiftBuckets(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "0-4"},
		{3, "0-4"},
		{4, "4-8"},
		{7, "4-8"},
		{8, "8-16"},
		{15, "8-16"},
		{16, "16-24"},
		{23, "16-24"},
	}
	for _, tt := range tests {
		got := shiftBucket(timeAtHour(tt.hour))
		assert.Equal(t, tt.want, got, "hour %d", tt.hour)
	}
}

func TestHourlyRate(t *testing.T) {
	rate, ok := hourlyRate("$15.00-$30.00")
	assert.True(t, ok)
	assert.Equal(t, 30.0, rate)

	rate, ok = hourlyRate("$40.00")
	assert.True(t, ok)
	assert.Equal(t, 40.0, rate)

	_, ok = hourlyRate("negotiable")
	assert.False(t, ok)
}

func TestCleanHTML(t *testing.T) {
	out := CleanHTML("<b>Budget</b>: $500<br/><b>Country</b>: Germany<br/>")
	assert.Equal(t, "Budget: $500\nCountry: Germany", out)
}

func TestNumberFromString(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"$1,500", 1500, true},
		{"$15.00", 15, true},
		{"no numbers", 0, false},
	}
	for _, tt := range tests {
		got, ok := NumberFromString(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
