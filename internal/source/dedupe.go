package source

import (
	"log/slog"
	"sort"
)

// DefaultBlacklist excludes general encyclopedias in favour of primary sources.
var DefaultBlacklist = []string{"wikipedia.org", "wikipedia.com"}

// Deduplicator collapses raw results to one canonical source per domain.
type Deduplicator struct {
	rules     Rules
	blacklist []string
	logger    *slog.Logger
}

// NewDeduplicator creates a Deduplicator. A nil blacklist uses DefaultBlacklist.
func NewDeduplicator(rules Rules, blacklist []string, logger *slog.Logger) *Deduplicator {
	if blacklist == nil {
		blacklist = DefaultBlacklist
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{rules: rules, blacklist: blacklist, logger: logger}
}

// Blacklisted reports whether domain or one of its parents is blacklisted.
func (d *Deduplicator) Blacklisted(domain string) bool {
	for _, b := range d.blacklist {
		if matchesDomain(domain, b) {
			return true
		}
	}
	return false
}

// Deduplicate validates raw, drops blacklisted domains and keeps the
// highest-scored result of each domain as canonical (the earliest wins ties).
// The remaining results of a domain are returned separately, flagged as
// duplicates of the canonical URL. active is sorted by descending score.
func (d *Deduplicator) Deduplicate(raw []RawResult) (active, duplicates []Enhanced) {
	groups := make(map[string][]Enhanced)
	var order []string

	for _, r := range raw {
		if !r.Complete() {
			d.logger.Debug("skipping invalid source", "url", r.URL, "title_len", len(r.Title), "snippet_len", len(r.Snippet))
			continue
		}
		domain, err := Domain(r.URL)
		if err != nil {
			d.logger.Debug("skipping source with invalid url", "url", r.URL, "err", err)
			continue
		}
		if d.Blacklisted(domain) {
			d.logger.Debug("skipping blacklisted source", "url", r.URL, "domain", domain)
			continue
		}

		if _, seen := groups[domain]; !seen {
			order = append(order, domain)
		}
		groups[domain] = append(groups[domain], Enhanced{
			RawResult:   r,
			Reliability: d.rules.Classify(domain),
			Domain:      domain,
		})
	}

	for _, domain := range order {
		g := groups[domain]
		best := 0
		for i := 1; i < len(g); i++ {
			if g[i].Score > g[best].Score {
				best = i
			}
		}
		active = append(active, g[best])
		for i, e := range g {
			if i == best {
				continue
			}
			e.IsDuplicate = true
			e.DuplicateOf = g[best].URL
			duplicates = append(duplicates, e)
		}
	}

	sort.SliceStable(active, func(i, j int) bool { return active[i].Score > active[j].Score })

	d.logger.Debug("deduplication complete", "input", len(raw), "active", len(active), "duplicates", len(duplicates))
	return active, duplicates
}
