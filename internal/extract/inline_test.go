package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storescout/internal/document"
	"storescout/internal/model"
)

func docOf(t *testing.T, html string) *document.StaticContext {
	t.Helper()
	ctx, err := document.ParseString("test", html)
	require.NoError(t, err)
	return ctx
}

func TestFromInlineScriptsEmbeddedPayload(t *testing.T) {
	html := `<html><body>
	<script>
	window.__BOOT__ = {"stores":[{"name":"A","address":{"city":"Springfield","streetAddress":"1 Main St"}}]};
	window.__BOOT__.ready = true;
	</script>
	</body></html>`

	stores := FromInlineScripts(docOf(t, html).Document())
	require.Len(t, stores, 1)
	assert.Equal(t, "A", stores[0].Name)
	assert.Equal(t, "1 Main St", stores[0].Address)
	assert.Equal(t, "Springfield", stores[0].City)
	assert.Equal(t, model.SourceInlineScript, stores[0].Source)
}

func TestFromInlineScriptsTruncatedPayload(t *testing.T) {
	html := `<script>var x = {"stores":[{"name":"A"}</script>`
	assert.Empty(t, FromInlineScripts(docOf(t, html).Document()))
}

func TestFromInlineScriptsBadBlockDoesNotPoisonOthers(t *testing.T) {
	html := `<html><body>
	<script>var bad = {"stores": not json at all};</script>
	<script>var good = {"stores":[{"name":"B","latitude":1.5,"longitude":-2.5}]};</script>
	</body></html>`

	stores := FromInlineScripts(docOf(t, html).Document())
	require.Len(t, stores, 1)
	assert.Equal(t, "B", stores[0].Name)
	require.NotNil(t, stores[0].Latitude)
	assert.Equal(t, 1.5, *stores[0].Latitude)
	require.NotNil(t, stores[0].Longitude)
	assert.Equal(t, -2.5, *stores[0].Longitude)
}

func TestFromInlineScriptsPageItems(t *testing.T) {
	html := `<script>init({"stores":null,"page":{"items":[{"title":"C","position":{"lat":10.0,"lng":20.0}}]}});</script>`

	stores := FromInlineScripts(docOf(t, html).Document())
	require.Len(t, stores, 1)
	assert.Equal(t, "C", stores[0].Name)
	require.NotNil(t, stores[0].Latitude)
	assert.Equal(t, 10.0, *stores[0].Latitude)
}

func TestFromInlineScriptsPrefersNestedAddress(t *testing.T) {
	html := `<script>var s = {"stores":[{"name":"D","city":"Wrongville","address":{"city":"Rightville"}}]};</script>`

	stores := FromInlineScripts(docOf(t, html).Document())
	require.Len(t, stores, 1)
	assert.Equal(t, "Rightville", stores[0].City)
}

func TestFromInlineScriptsNoMarker(t *testing.T) {
	html := `<script>var data = {"locations":[{"name":"E"}]};</script>`
	assert.Empty(t, FromInlineScripts(docOf(t, html).Document()))
}
