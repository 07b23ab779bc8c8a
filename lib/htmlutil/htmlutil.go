package htmlutil

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

func Parse(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// FirstAttrValue returns the value attribute of the first element whose
// name attribute equals name and whose value is non-empty. This is how
// anti-forgery tokens are embedded in login forms.
func FirstAttrValue(doc *goquery.Document, name string) (string, bool) {
	var found string
	doc.Find(fmt.Sprintf(`[name=%q][value]`, name)).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		value := s.AttrOr("value", "")
		if value == "" {
			return true
		}
		found = value
		return false
	})
	return found, found != ""
}
