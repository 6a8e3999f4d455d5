// Package event decodes verified scrape callbacks into typed events.
//
// A callback body is an envelope:
//
//	{
//	  "webhook": "scrape-complete",
//	  "data": {"type": "scraped", "data": {"url": "https://example.com", "results": "..."}},
//	  "headers": {}
//	}
//
// data.type selects exactly one variant (links, scraped or explore) and the
// object under data.data must carry that variant's fields and nothing else.
// ParseEvent should only be called on a body that already passed webhook
// verification.
package event
