package outcomes

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// externalIDPatterns pull a job-board listing identifier out of
// notification links.
var externalIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`jobId=(\d+)`),
	regexp.MustCompile(`/job/(\d+)`),
}

// twoLevelTLDs are country registries where the registrable label sits
// one position further left (example.com.au).
var twoLevelTLDs = map[string]bool{
	"au": true,
	"uk": true,
}

var agencyMarkers = []string{"recruit", "talent", "agency", "staff"}

var whitespaceRun = regexp.MustCompile(`\s+`)

// HTMLToText strips an HTML body down to its visible text.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style").Remove()
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(doc.Text()), " ")
}

// ExtractExternalID finds a listing identifier in the text, or "".
func ExtractExternalID(text string) string {
	for _, pattern := range externalIDPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// SenderDomain returns the lowercased domain of an email address, or "".
func SenderDomain(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}

// RootLabel extracts the registrable label of a domain: the label left
// of the public suffix, accounting for two-level country TLDs.
func RootLabel(domain string) string {
	tokens := strings.Split(strings.ToLower(domain), ".")
	if len(tokens) < 2 {
		return domain
	}
	if len(tokens) >= 3 && twoLevelTLDs[tokens[len(tokens)-1]] {
		return tokens[len(tokens)-3]
	}
	return tokens[len(tokens)-2]
}

// IsAgencyDomain reports whether the domain looks like a recruitment
// agency rather than a direct employer.
func IsAgencyDomain(domain string) bool {
	lower := strings.ToLower(domain)
	for _, marker := range agencyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
