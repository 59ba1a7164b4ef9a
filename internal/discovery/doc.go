// Package discovery finds prospect contact addresses by crawling seed
// websites. Crawling is polite: robots.txt is honored per origin, fetches
// stay on the seed's origin, depth and per-page link counts are bounded,
// and concurrency is capped. Extracted addresses pass through validation
// before they are inserted as leads; known addresses are skipped, so a
// re-run of the same seeds adds nothing.
package discovery
