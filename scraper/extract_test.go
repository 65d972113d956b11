package scraper

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-listings/models"
)

func strPtr(s string) *string { return &s }

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestAssemblePrice(t *testing.T) {
	tests := []struct {
		name  string
		whole *string
		cents *string
		want  *string
	}{
		{name: "missing whole", whole: nil, cents: strPtr("50"), want: nil},
		{name: "blank whole", whole: strPtr("  "), cents: strPtr("5"), want: nil},
		{name: "missing cents", whole: strPtr("1.234"), cents: nil, want: strPtr("1.234,00")},
		{name: "blank cents", whole: strPtr("7"), cents: strPtr(" "), want: strPtr("7,00")},
		{name: "single digit cents padded", whole: strPtr("1.234"), cents: strPtr("5"), want: strPtr("1.234,05")},
		{name: "two digit cents", whole: strPtr("99"), cents: strPtr("50"), want: strPtr("99,50")},
		{name: "long cents cut", whole: strPtr("10"), cents: strPtr("999"), want: strPtr("10,99")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssemblePrice(tt.whole, tt.cents))
		})
	}
}

func TestExtractItemID(t *testing.T) {
	tests := []struct {
		link string
		want *string
	}{
		{link: "https://articulo.mercadolibre.com.ar/MLA-1403817581-celular-_JM", want: strPtr("MLA1403817581")},
		{link: "https://www.mercadolibre.com.ar/samsung-a15/p/MLA29623364", want: strPtr("MLA29623364")},
		{link: "https://produto.mercadolivre.com.br/MLB-998-x", want: strPtr("MLB998")},
		{link: "https://www.mercadolibre.com.ar/ofertas", want: nil},
		{link: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractItemID(tt.link))
		})
	}
}

const polyCardPage = `<html><body><ol>
<li class="ui-search-layout__item"><div class="ui-search-result__wrapper"><div class="poly-card">
  <a class="poly-component__title" href="https://articulo.mercadolibre.com.ar/MLA-111-celular-_JM">Celular A</a>
  <span class="poly-component__seller">Tienda Oficial</span>
  <div class="poly-price__prev"><span class="andes-money-amount__fraction">2.000</span></div>
  <div class="poly-price__current"><span class="andes-money-amount__fraction">1.234</span><span class="andes-money-amount__cents">5</span></div>
  <span class="poly-reviews__rating">4.8</span><span class="poly-reviews__total">(120)</span>
  <span class="ui-search-item__ad-label">Publicidad</span>
</div></div></li>
<li class="ui-search-layout__item"><div class="ui-search-result__wrapper"><div class="poly-card">
  <a class="poly-component__title" href="/MLA-222-celular-_JM">Celular B</a>
  <span class="ui-search-item__ad-label">  </span>
  <span class="poly-component__highlight">Promo del dia</span>
</div></div></li>
<li class="ui-search-layout__item"><div class="ui-search-result__wrapper" aria-label="Publicidad de Celular C">
  <a class="poly-component__title">Celular C</a>
  <span class="andes-money-amount__fraction">15</span>
</div></li>
</ol></body></html>`

func TestExtractPolyCards(t *testing.T) {
	base, _ := url.Parse("https://listado.mercadolibre.com.ar/celular")
	items := Extract(mustDoc(t, polyCardPage), base, DefaultSelectors())
	require.Len(t, items, 3)

	first := items[0]
	assert.Equal(t, strPtr("MLA111"), first.ItemID)
	assert.Equal(t, strPtr("Celular A"), first.Name)
	assert.Equal(t, strPtr("Tienda Oficial"), first.Seller)
	assert.Equal(t, strPtr("1.234,05"), first.PriceText, "current price wins over the previous one")
	assert.Equal(t, strPtr("4.8"), first.Rating)
	assert.Equal(t, strPtr("(120)"), first.ReviewCount)
	assert.Equal(t, models.FlagOf(true), first.IsAd)

	second := items[1]
	assert.Equal(t, strPtr("https://listado.mercadolibre.com.ar/MLA-222-celular-_JM"), second.Permalink)
	assert.Equal(t, strPtr("MLA222"), second.ItemID)
	assert.Nil(t, second.Seller)
	assert.Nil(t, second.PriceText)
	assert.Nil(t, second.Rating)
	assert.Nil(t, second.ReviewCount)
	assert.Equal(t, models.FlagOf(false), second.IsAd, "blank marker and promo text are not ads by default")

	third := items[2]
	assert.Nil(t, third.Permalink)
	assert.Nil(t, third.ItemID)
	assert.Equal(t, strPtr("15,00"), third.PriceText)
	assert.Equal(t, models.FlagOf(true), third.IsAd)
}

func TestExtractPluggableAdSignal(t *testing.T) {
	sel := DefaultSelectors().WithAdSignals(TextContains(".poly-component__highlight", "promo"))
	items := Extract(mustDoc(t, polyCardPage), nil, sel)
	require.Len(t, items, 3)
	assert.Equal(t, models.FlagOf(true), items[1].IsAd)
	assert.Len(t, DefaultSelectors().AdSignals, 3, "defaults are not mutated")
}

func TestExtractFallbackContainers(t *testing.T) {
	html := `<html><body><ol>
<li class="ui-search-layout__item">
  <h2 class="ui-search-item__title">Notebook</h2>
  <a class="ui-search-link" href="https://articulo.mercadolibre.com.ar/MLA-9-notebook"></a>
  <span class="ui-search-reviews__amount">7</span>
  <div data-testid="ad-label-wrapper"></div>
</li>
<li class="ui-search-layout__item"><h2 class="ui-search-item__title">Mouse</h2></li>
</ol></body></html>`

	items := Extract(mustDoc(t, html), nil, DefaultSelectors())
	require.Len(t, items, 2)
	assert.Equal(t, strPtr("Notebook"), items[0].Name)
	assert.Equal(t, strPtr("MLA9"), items[0].ItemID)
	assert.Equal(t, strPtr("7"), items[0].ReviewCount)
	assert.Equal(t, models.FlagOf(true), items[0].IsAd)
	assert.Equal(t, strPtr("Mouse"), items[1].Name)
	assert.Equal(t, models.FlagOf(false), items[1].IsAd)
}

func TestExtractPriceCentsStayWithTheirPrice(t *testing.T) {
	html := `<html><body><ol>
<li class="ui-search-layout__item">
  <h2 class="poly-component__title">Heladera</h2>
  <s class="andes-money-amount andes-money-amount--previous">
    <span class="andes-money-amount__fraction">2.000</span><span class="andes-money-amount__cents">50</span>
  </s>
  <div class="poly-price__current">
    <span class="andes-money-amount"><span class="andes-money-amount__fraction">1.500</span></span>
  </div>
</li>
<li class="ui-search-layout__item">
  <h2 class="ui-search-item__title">Lavarropas</h2>
  <s class="andes-money-amount andes-money-amount--previous">
    <span class="andes-money-amount__fraction">900</span><span class="andes-money-amount__cents">99</span>
  </s>
  <span class="andes-money-amount"><span class="andes-money-amount__fraction">750</span></span>
</li>
</ol></body></html>`

	items := Extract(mustDoc(t, html), nil, DefaultSelectors())
	require.Len(t, items, 2)
	assert.Equal(t, strPtr("1.500,00"), items[0].PriceText)
	assert.Equal(t, strPtr("750,00"), items[1].PriceText)
}

func TestExtractNoContainers(t *testing.T) {
	items := Extract(mustDoc(t, `<html><body><p>Sin resultados</p></body></html>`), nil, DefaultSelectors())
	assert.Empty(t, items)
}
