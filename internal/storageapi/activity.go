// SPDX-License-Identifier: MIT

package storageapi

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldReplacer = strings.NewReplacer(
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O",
	"ß", "ss",
)

// MatchKey reduces a stream name or filename stem to the form used to pair
// status.json resources with recordings: accents folded, then everything but
// ASCII letters and digits removed. Case is preserved.
func MatchKey(s string) string {
	s = foldReplacer.Replace(s)
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ActiveSet is the set of recording filenames currently busy with one kind
// of activity.
type ActiveSet map[string]struct{}

// Has reports whether the recording is in the set.
func (s ActiveSet) Has(r Recording) bool {
	_, ok := s[r.Filename]
	return ok
}

// MatchActivity returns the recordings whose filename stem matches the Name
// of a status.json resource of the given kind.
func MatchActivity(resources []Resource, kind string, recordings []Recording) ActiveSet {
	names := make(map[string]struct{})
	for _, res := range resources {
		if res.Resource != kind {
			continue
		}
		if k := MatchKey(res.Name); k != "" {
			names[k] = struct{}{}
		}
	}
	out := make(ActiveSet)
	if len(names) == 0 {
		return out
	}
	for _, rec := range recordings {
		if _, ok := names[MatchKey(rec.Stem())]; ok {
			out[rec.Filename] = struct{}{}
		}
	}
	return out
}
