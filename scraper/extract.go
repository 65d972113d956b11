package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// Strategy reads one value from the first element matching Selector.
// An empty Attr reads the element text.
type Strategy struct {
	Selector string
	Attr     string
}

// Field is an ordered list of strategies; the first non-empty value wins.
type Field []Strategy

// From evaluates the field inside s. It returns nil when no strategy yields
// a non-blank value.
func (f Field) From(s *goquery.Selection) *string {
	for _, st := range f {
		node := s
		if st.Selector != "" {
			node = s.Find(st.Selector).First()
		}
		if node.Length() == 0 {
			continue
		}
		var value string
		if st.Attr == "" {
			value = node.Text()
		} else {
			value, _ = node.Attr(st.Attr)
		}
		value = strings.TrimSpace(value)
		if value != "" {
			return &value
		}
	}
	return nil
}

// AdSignal reports whether a listing container is marked as sponsored.
type AdSignal func(*goquery.Selection) bool

// MarkerText matches when any of the selectors has non-blank text.
func MarkerText(selectors ...string) AdSignal {
	return func(s *goquery.Selection) bool {
		for _, sel := range selectors {
			found := false
			s.Find(sel).EachWithBreak(func(_ int, n *goquery.Selection) bool {
				found = strings.TrimSpace(n.Text()) != ""
				return !found
			})
			if found {
				return true
			}
		}
		return false
	}
}

// AriaLabelContains matches an aria-label on the container or a descendant
// containing substr, case-insensitively.
func AriaLabelContains(substr string) AdSignal {
	substr = strings.ToLower(substr)
	return func(s *goquery.Selection) bool {
		return attrContains(s, "aria-label", substr)
	}
}

// DataTestID matches a data-testid on the container or a descendant
// containing marker, case-insensitively.
func DataTestID(marker string) AdSignal {
	marker = strings.ToLower(marker)
	return func(s *goquery.Selection) bool {
		return attrContains(s, "data-testid", marker)
	}
}

// TextContains matches when the text under selector contains substr,
// case-insensitively. It is not part of the default signals.
func TextContains(selector, substr string) AdSignal {
	substr = strings.ToLower(substr)
	return func(s *goquery.Selection) bool {
		found := false
		s.Find(selector).EachWithBreak(func(_ int, n *goquery.Selection) bool {
			found = strings.Contains(strings.ToLower(n.Text()), substr)
			return !found
		})
		return found
	}
}

func attrContains(s *goquery.Selection, attr, substr string) bool {
	if v, ok := s.Attr(attr); ok && strings.Contains(strings.ToLower(v), substr) {
		return true
	}
	found := false
	s.Find("[" + attr + "]").EachWithBreak(func(_ int, n *goquery.Selection) bool {
		v, _ := n.Attr(attr)
		found = strings.Contains(strings.ToLower(v), substr)
		return !found
	})
	return found
}

// Selectors describes how listing records are located on a results page.
type Selectors struct {
	// Containers are tried in order; the first with at least one match is
	// used for the whole page.
	Containers []string

	Name   Field
	Seller Field

	// PriceScopes locate the element holding the displayed price. The first
	// scope where PriceWhole matches supplies both price parts; the
	// container itself is the last resort.
	PriceScopes []string
	PriceWhole  Field
	PriceCents  Field

	Permalink   Field
	Rating      Field
	ReviewCount Field

	AdSignals []AdSignal

	// NextPage is evaluated against the whole document.
	NextPage Field
}

// DefaultSelectors returns the strategies for the current MercadoLibre
// listing markup, with older layouts as fallbacks.
func DefaultSelectors() Selectors {
	return Selectors{
		Containers: []string{
			"div.ui-search-result__wrapper",
			"li.ui-search-layout__item",
			"div.poly-card",
		},
		Name: Field{
			{Selector: "a.poly-component__title"},
			{Selector: "h2.ui-search-item__title"},
			{Selector: "h3.poly-component__title-wrapper"},
			{Selector: "a.ui-search-link", Attr: "title"},
		},
		Seller: Field{
			{Selector: "span.poly-component__seller"},
			{Selector: "p.ui-search-official-store-label"},
			{Selector: "span.ui-search-item__brand-discoverability"},
		},
		PriceScopes: []string{
			".poly-price__current",
			".ui-search-price__second-line",
			".andes-money-amount:not(.andes-money-amount--previous)",
		},
		PriceWhole: Field{{Selector: ".andes-money-amount__fraction"}},
		PriceCents: Field{{Selector: ".andes-money-amount__cents"}},
		Permalink: Field{
			{Selector: "a.poly-component__title", Attr: "href"},
			{Selector: "a.ui-search-item__group__element", Attr: "href"},
			{Selector: "a.ui-search-link", Attr: "href"},
		},
		Rating: Field{
			{Selector: "span.poly-reviews__rating"},
			{Selector: "span.ui-search-reviews__rating-number"},
		},
		ReviewCount: Field{
			{Selector: "span.poly-reviews__total"},
			{Selector: "span.ui-search-reviews__amount"},
		},
		AdSignals: []AdSignal{
			MarkerText(".ui-search-item__ad-label", ".ui-search-item__ad-badge", ".poly-component__ads-promotions"),
			AriaLabelContains("publicidad"),
			DataTestID("ad-label"),
		},
		NextPage: Field{
			{Selector: "a[rel=next]", Attr: "href"},
			{Selector: "link[rel=next]", Attr: "href"},
			{Selector: "li.andes-pagination__button--next a", Attr: "href"},
			{Selector: "a.andes-pagination__link[title=Siguiente]", Attr: "href"},
		},
	}
}

// WithAdSignals returns a copy with extra ad predicates appended.
func (s Selectors) WithAdSignals(signals ...AdSignal) Selectors {
	merged := make([]AdSignal, 0, len(s.AdSignals)+len(signals))
	merged = append(merged, s.AdSignals...)
	merged = append(merged, signals...)
	s.AdSignals = merged
	return s
}

// containers returns the listing nodes of doc and the selector that matched.
func (s Selectors) containers(doc *goquery.Document) (*goquery.Selection, string) {
	for _, sel := range s.Containers {
		found := doc.Find(sel)
		if found.Length() > 0 {
			return found, sel
		}
	}
	return &goquery.Selection{}, ""
}

// Extract returns one RawItem per listing container in document order.
// base resolves relative permalinks and may be nil.
func Extract(doc *goquery.Document, base *url.URL, sel Selectors) []models.RawItem {
	nodes, _ := sel.containers(doc)
	items := make([]models.RawItem, 0, nodes.Length())
	nodes.Each(func(_ int, node *goquery.Selection) {
		items = append(items, extractItem(node, base, sel))
	})
	return items
}

func extractItem(node *goquery.Selection, base *url.URL, sel Selectors) models.RawItem {
	link := sel.Permalink.From(node)
	if link != nil && base != nil {
		if ref, err := url.Parse(*link); err == nil {
			abs := base.ResolveReference(ref).String()
			link = &abs
		}
	}

	var id *string
	if link != nil {
		id = ExtractItemID(*link)
	}

	isAd := false
	for _, signal := range sel.AdSignals {
		if signal(node) {
			isAd = true
			break
		}
	}

	return models.RawItem{
		ItemID:      id,
		Name:        sel.Name.From(node),
		Seller:      sel.Seller.From(node),
		PriceText:   AssemblePrice(sel.price(node)),
		Permalink:   link,
		Rating:      sel.Rating.From(node),
		ReviewCount: sel.ReviewCount.From(node),
		IsAd:        models.FlagOf(isAd),
	}
}

// price reads the integer and cents parts from one price scope, so cents
// never come from a different price than the integer part.
func (s Selectors) price(node *goquery.Selection) (whole, cents *string) {
	for _, scope := range s.PriceScopes {
		found := node.Find(scope).First()
		if found.Length() == 0 {
			continue
		}
		if whole = s.PriceWhole.From(found); whole != nil {
			return whole, s.PriceCents.From(found)
		}
	}
	return s.PriceWhole.From(node), s.PriceCents.From(node)
}

// AssemblePrice joins the integer and cents parts as "<whole>,<cc>".
// Missing cents become "00", a single digit is left-padded and anything
// longer is cut to two digits.
func AssemblePrice(whole, cents *string) *string {
	if whole == nil {
		return nil
	}
	w := strings.TrimSpace(*whole)
	if w == "" {
		return nil
	}

	c := ""
	if cents != nil {
		c = strings.TrimSpace(*cents)
	}
	switch {
	case c == "":
		c = "00"
	case len(c) == 1:
		c = "0" + c
	case len(c) > 2:
		c = c[:2]
	}

	price := w + "," + c
	return &price
}

var itemIDPattern = regexp.MustCompile(`(ML[A-Z])-?(\d+)`)

// ExtractItemID finds the catalog id in a listing link ("MLA-123" and
// "MLA123" both give "MLA123").
func ExtractItemID(link string) *string {
	m := itemIDPattern.FindStringSubmatch(link)
	if m == nil {
		return nil
	}
	id := m[1] + m[2]
	return &id
}
