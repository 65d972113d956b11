package lookup

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-listings/cache"
)

const apiBase = "https://api.test"

func newMockedClient(opts ...Option) (*Client, *httpmock.MockTransport) {
	transport := httpmock.NewMockTransport()
	opts = append([]Option{WithTransport(transport)}, opts...)
	return NewClient(apiBase, "MLA", time.Second, opts...), transport
}

func TestDomainDiscovery(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		wantLen   int
	}{
		{
			name: "list body",
			responder: httpmock.NewStringResponder(http.StatusOK,
				`[{"domain_id":"MLA-CELLPHONES","domain_name":"Celulares","category_id":"MLA1055","category_name":"Celulares y Smartphones"}]`),
			wantLen: 1,
		},
		{
			name: "wrapped body",
			responder: httpmock.NewStringResponder(http.StatusOK,
				`{"results":[{"domain_id":"A"},{"domain_id":"B"}]}`),
			wantLen: 2,
		},
		{
			name:      "unexpected object",
			responder: httpmock.NewStringResponder(http.StatusOK, `{"message":"ok"}`),
			wantLen:   0,
		},
		{
			name:      "server error",
			responder: httpmock.NewStringResponder(http.StatusInternalServerError, `oops`),
			wantLen:   0,
		},
		{
			name:      "transport error",
			responder: httpmock.NewErrorResponder(errors.New("connection reset")),
			wantLen:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, transport := newMockedClient()
			transport.RegisterResponderWithQuery("GET", apiBase+"/sites/MLA/domain_discovery/search",
				map[string]string{"q": "celular samsung", "limit": "5"}, tt.responder)

			got := client.DomainDiscovery(context.Background(), " celular samsung ", 0)
			require.NotNil(t, got)
			assert.Len(t, got, tt.wantLen)
			assert.Equal(t, 1, transport.GetTotalCallCount())
		})
	}
}

func TestDomainDiscoveryFields(t *testing.T) {
	client, transport := newMockedClient()
	transport.RegisterResponder("GET", apiBase+"/sites/MLA/domain_discovery/search",
		httpmock.NewStringResponder(http.StatusOK,
			`[{"domain_id":"MLA-CELLPHONES","domain_name":"Celulares","category_id":"MLA1055","category_name":"Celulares y Smartphones","relevance":0.9}]`))

	got := client.DomainDiscovery(context.Background(), "celular", 3)
	require.Len(t, got, 1)
	assert.Equal(t, "MLA-CELLPHONES", got[0].DomainID)
	assert.Equal(t, "MLA1055", got[0].CategoryID)
	assert.InDelta(t, 0.9, got[0].Relevance, 1e-9)
}

func TestDomainDiscoveryBlankQuery(t *testing.T) {
	client, transport := newMockedClient()
	assert.Empty(t, client.DomainDiscovery(context.Background(), "   ", 5))
	assert.Equal(t, 0, transport.GetTotalCallCount())
}

func TestCategoryAttributesCached(t *testing.T) {
	client, transport := newMockedClient(WithCache(cache.NewLRUService(16, time.Minute), time.Minute))
	transport.RegisterResponder("GET", apiBase+"/categories/MLA1055/attributes",
		httpmock.NewStringResponder(http.StatusOK,
			`[{"id":"BRAND","name":"Marca","value_type":"string","values":[{"id":"206","name":"Samsung"}],"tags":{"required":true}}]`))

	first := client.CategoryAttributes(context.Background(), "MLA1055")
	second := client.CategoryAttributes(context.Background(), "MLA1055")

	require.Len(t, first, 1)
	assert.Equal(t, "BRAND", first[0].ID)
	assert.Equal(t, "Samsung", first[0].Values[0].Name)
	assert.Equal(t, true, first[0].Tags["required"])
	assert.Equal(t, first, second)
	assert.Equal(t, 1, transport.GetTotalCallCount(), "second call is served from cache")
}

func TestCategoryAttributesNonList(t *testing.T) {
	client, transport := newMockedClient()
	transport.RegisterResponder("GET", apiBase+"/categories/MLA1/attributes",
		httpmock.NewStringResponder(http.StatusOK, `{"error":"not_found"}`))

	assert.Empty(t, client.CategoryAttributes(context.Background(), "MLA1"))
	assert.Empty(t, client.CategoryAttributes(context.Background(), ""))
}

func TestManyCategoryAttributes(t *testing.T) {
	client, transport := newMockedClient()
	transport.RegisterResponder("GET", apiBase+"/categories/MLA1/attributes",
		httpmock.NewStringResponder(http.StatusOK, `[{"id":"A"}]`))
	transport.RegisterResponder("GET", apiBase+"/categories/MLA2/attributes",
		httpmock.NewStringResponder(http.StatusNotFound, `{}`))

	got := client.ManyCategoryAttributes(context.Background(), []string{"MLA1", "", "MLA2", "MLA1"}, time.Millisecond)

	require.Len(t, got, 2)
	assert.Len(t, got["MLA1"], 1)
	assert.Empty(t, got["MLA2"])
	assert.Equal(t, 2, transport.GetTotalCallCount(), "duplicates are fetched once")
}

func TestManyCategoryAttributesStopsOnCancel(t *testing.T) {
	client, transport := newMockedClient()
	transport.RegisterResponder("GET", `=~^https://api\.test/categories/.+/attributes$`,
		httpmock.NewStringResponder(http.StatusOK, `[]`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := client.ManyCategoryAttributes(ctx, []string{"MLA1", "MLA2", "MLA3"}, time.Hour)

	assert.Len(t, got, 1)
}
