package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	gitleaksconfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksregexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// minPieceLen is the shortest line of a multi-line secret that is replaced
// on its own. Shorter lines such as a lone "=" would match unrelated text.
const minPieceLen = 8

// Finding is a detected secret.
type Finding struct {
	RuleID string
	Line   int
	Secret string
}

// Redactor detects secrets with the default gitleaks rules plus an allowlist.
// Building one compiles several hundred rules, so reuse it across files.
type Redactor struct {
	detector *detect.Detector
	paths    []*regexp.Regexp
}

// NewRedactor builds a Redactor. allowlist may be nil.
func NewRedactor(allowlist *Allowlist) (*Redactor, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading gitleaks rules: %w", err)
	}
	r := &Redactor{detector: detector}
	if allowlist == nil {
		return r, nil
	}

	if r.paths, err = compileAll(allowlist.Paths); err != nil {
		return nil, err
	}
	regexes, err := compileAll(allowlist.Regexes)
	if err != nil {
		return nil, err
	}
	if len(regexes) > 0 {
		entry := &gitleaksconfig.Allowlist{Description: "codeindex allowlist"}
		for _, re := range regexes {
			entry.Regexes = append(entry.Regexes, (*gitleaksregexp.Regexp)(re))
		}
		detector.Config.Allowlists = append(detector.Config.Allowlists, entry)
	}
	return r, nil
}

// Scan returns the secrets in content. Files whose relPath matches an
// allowlisted path are not scanned.
func (r *Redactor) Scan(relPath, content string) []Finding {
	for _, re := range r.paths {
		if re.MatchString(relPath) {
			return nil
		}
	}
	found := r.detector.DetectString(content)
	out := make([]Finding, 0, len(found))
	for _, f := range found {
		if f.Secret == "" {
			continue
		}
		out = append(out, Finding{RuleID: f.RuleID, Line: f.StartLine, Secret: f.Secret})
	}
	return out
}

// Marker is the text that replaces a secret detected by ruleID.
func Marker(ruleID string) string {
	return "[REDACTED:" + ruleID + "]"
}

// Apply replaces every occurrence of the findings' secrets in content.
//
// A secret spanning several lines is replaced line by line so that the line
// count of content never changes; chunk line ranges stay valid.
func Apply(content string, findings []Finding) string {
	if len(findings) == 0 {
		return content
	}
	// Longest first, so a secret containing another is replaced whole.
	sorted := append([]Finding(nil), findings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Secret) > len(sorted[j].Secret)
	})

	for _, f := range sorted {
		marker := Marker(f.RuleID)
		if !strings.Contains(f.Secret, "\n") {
			content = strings.ReplaceAll(content, f.Secret, marker)
			continue
		}
		for _, piece := range strings.Split(f.Secret, "\n") {
			piece = strings.TrimSpace(piece)
			if len(piece) < minPieceLen {
				continue
			}
			content = strings.ReplaceAll(content, piece, marker)
		}
	}
	return content
}

// RuleCounts tallies findings per rule, for logging without the secrets.
func RuleCounts(findings []Finding) map[string]int {
	counts := make(map[string]int, len(findings))
	for _, f := range findings {
		counts[f.RuleID]++
	}
	return counts
}
