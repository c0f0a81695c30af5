package source

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// TierLists holds one list of domains or suffixes per reliability tier.
type TierLists struct {
	High   []string `yaml:"high"`
	Medium []string `yaml:"medium"`
	Low    []string `yaml:"low"`
}

// Rules decide the reliability tier of a domain: curated domain lists first
// (exact match, then subdomain), then TLD suffixes, else Medium.
type Rules struct {
	Domains TierLists `yaml:"domains"`
	TLDs    TierLists `yaml:"tlds"`
}

// DefaultRules returns the built-in curated lists.
func DefaultRules() Rules {
	return Rules{
		Domains: TierLists{
			High: []string{
				"factcheck.org", "snopes.com", "reuters.com", "ap.org", "bbc.com",
				"npr.org", "pbs.org", "wikipedia.org", "scholar.google.com",
				"pubmed.ncbi.nlm.nih.gov", "arxiv.org", "researchgate.net",
				"academia.edu", "jstor.org", "ieee.org", "acm.org", "nature.com",
				"science.org", "thelancet.com", "nejm.org", "who.int", "cdc.gov",
				"nih.gov", "fda.gov", "epa.gov", "nasa.gov", "noaa.gov", "usgs.gov",
				"whitehouse.gov", "congress.gov", "supremecourt.gov",
			},
			Medium: []string{
				"nytimes.com", "washingtonpost.com", "wsj.com", "latimes.com",
				"chicagotribune.com", "usatoday.com", "cnn.com", "foxnews.com",
				"msnbc.com", "abcnews.go.com", "cbsnews.com", "nbcnews.com",
				"time.com", "newsweek.com", "theatlantic.com", "newyorker.com",
				"harvard.edu", "mit.edu", "stanford.edu", "yale.edu",
				"princeton.edu", "columbia.edu", "berkeley.edu", "ucla.edu",
				"ucsd.edu", "umich.edu", "utexas.edu", "gatech.edu", "cmu.edu",
				"caltech.edu",
			},
			Low: []string{
				"blogspot.com", "wordpress.com", "tumblr.com", "medium.com",
				"substack.com", "facebook.com", "twitter.com", "instagram.com",
				"tiktok.com", "youtube.com", "reddit.com", "quora.com", "yahoo.com",
				"aol.com", "msn.com", "buzzfeed.com", "vice.com", "vox.com",
				"huffpost.com", "dailywire.com", "breitbart.com", "infowars.com",
				"naturalnews.com", "mercola.com", "drudgereport.com",
				"worldnetdaily.com",
			},
		},
		TLDs: TierLists{
			High:   []string{".gov", ".edu", ".int", ".mil", ".org.au", ".gov.au", ".edu.au"},
			Medium: []string{".org", ".ac.uk", ".gov.uk", ".nhs.uk", ".ca", ".gc.ca", ".gov.ca"},
			Low:    []string{".com", ".net", ".info", ".biz", ".co", ".io", ".me", ".tv"},
		},
	}
}

// LoadRules reads rules from a YAML file. Entries in the file are added to
// the built-in lists; an entry moves out of any other tier it was in, so
// the file can promote or demote a built-in domain or suffix.
func LoadRules(path string) (Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}

	var file Rules
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Rules{}, fmt.Errorf("parse rules %s: %w", path, err)
	}

	r := DefaultRules()
	r.Domains = mergeTiers(r.Domains, file.Domains)
	r.TLDs = mergeTiers(r.TLDs, file.TLDs)
	return r, nil
}

func mergeTiers(base, extra TierLists) TierLists {
	listed := make(map[string]bool)
	for _, l := range [][]string{extra.High, extra.Medium, extra.Low} {
		for _, e := range l {
			listed[strings.ToLower(e)] = true
		}
	}
	keep := func(defaults, added []string) []string {
		out := slices.DeleteFunc(slices.Clone(defaults), func(e string) bool { return listed[e] })
		for _, e := range added {
			out = append(out, strings.ToLower(e))
		}
		return out
	}
	return TierLists{
		High:   keep(base.High, extra.High),
		Medium: keep(base.Medium, extra.Medium),
		Low:    keep(base.Low, extra.Low),
	}
}

// Classify returns the reliability tier for a normalised domain.
func (r Rules) Classify(domain string) Reliability {
	domain = strings.ToLower(domain)
	tiers := []struct {
		tier    Reliability
		domains []string
		tlds    []string
	}{
		{High, r.Domains.High, r.TLDs.High},
		{Medium, r.Domains.Medium, r.TLDs.Medium},
		{Low, r.Domains.Low, r.TLDs.Low},
	}

	for _, t := range tiers {
		if slices.Contains(t.domains, domain) {
			return t.tier
		}
	}
	for _, t := range tiers {
		for _, d := range t.domains {
			if matchesDomain(domain, d) {
				return t.tier
			}
		}
	}
	for _, t := range tiers {
		for _, suffix := range t.tlds {
			if strings.HasSuffix(domain, suffix) {
				return t.tier
			}
		}
	}
	return Medium
}
