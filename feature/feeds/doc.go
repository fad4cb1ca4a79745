// Package feeds discovers new job postings from the board's atom feeds:
// fetch per keyword, parse the labeled summaries, and save unseen postings
// as local records awaiting enrichment and push.
package feeds
