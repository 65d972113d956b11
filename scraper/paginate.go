package scraper

import (
	"net/url"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// ResultsPerPage is the default number of listings on a full results page.
// The controller's page size is also the step of the "_Desde_" offset.
const ResultsPerPage = 48

const offsetMarker = "_Desde_"

// State is the pagination state.
type State int

const (
	StateFetching State = iota
	StateDone
)

func (s State) String() string {
	if s == StateDone {
		return "done"
	}
	return "fetching"
}

// Controller decides, after each parsed page, whether another page is
// requested and which URL it is.
type Controller struct {
	run      *models.CrawlRun
	pageSize int
	next     Field
	visited  *lru.Cache[string, struct{}]
	state    State
	reason   models.StopReason
}

// NewController starts in StateFetching at run.StartURL.
func NewController(run *models.CrawlRun, pageSize int, next Field) *Controller {
	if pageSize <= 0 {
		pageSize = ResultsPerPage
	}
	size := run.MaxPages + 1
	if size < 2 {
		size = 2
	}
	visited, _ := lru.New[string, struct{}](size)
	visited.Add(canonical(run.StartURL), struct{}{})
	return &Controller{
		run:      run,
		pageSize: pageSize,
		next:     next,
		visited:  visited,
		state:    StateFetching,
	}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Reason returns why pagination ended. It is empty while fetching.
func (c *Controller) Reason() models.StopReason { return c.reason }

// Stop ends pagination for a reason outside the controller.
func (c *Controller) Stop(reason models.StopReason) {
	c.state = StateDone
	c.reason = reason
}

// Advance records a successfully parsed page and returns the next URL to
// fetch. ok is false once pagination is done.
func (c *Controller) Advance(page *Page, itemsOnPage int) (string, bool) {
	if c.state == StateDone {
		return "", false
	}

	c.run.PagesFetched++
	if c.run.PagesFetched >= c.run.MaxPages {
		c.Stop(models.StopBudget)
		return "", false
	}

	next := c.linkedNext(page)
	if next == "" && itemsOnPage >= c.pageSize && page != nil && page.URL != nil {
		next = OffsetURL(page.URL.String(), c.pageSize*c.run.PagesFetched)
	}
	if next == "" {
		c.Stop(models.StopEndOfResults)
		return "", false
	}

	key := canonical(next)
	if c.visited.Contains(key) {
		c.Stop(models.StopEndOfResults)
		return "", false
	}
	c.visited.Add(key, struct{}{})
	return next, true
}

func (c *Controller) linkedNext(page *Page) string {
	if page == nil || page.Doc == nil {
		return ""
	}
	href := c.next.From(page.Doc.Selection)
	if href == nil {
		return ""
	}
	ref, err := url.Parse(*href)
	if err != nil {
		return ""
	}
	if page.URL != nil {
		ref = page.URL.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

// OffsetURL drops any existing "_Desde_" offset from current and appends
// one starting at offset.
func OffsetURL(current string, offset int) string {
	base, _, _ := strings.Cut(current, offsetMarker)
	return base + offsetMarker + strconv.Itoa(offset)
}

func canonical(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/")
}
