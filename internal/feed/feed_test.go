package feed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<!DOCTYPE html>
<html>
<head>
  <title>15.6 inch Android Wall Mount Signage</title>
  <meta name="description" content="OEM digital signage display">
  <link rel="canonical" href="https://www.alibaba.com/product-detail/signage_156.html">
  <style>.price { color: red }</style>
</head>
<body>
  <nav>Home | Categories</nav>
  <div class="company">Shenzhen TechDisplay Co., Ltd.</div>
  <ul>
    <li>Price: $135 per unit</li>
    <li>MOQ: 100 pieces</li>
  </ul>
  <p>Android 11<br>DC 12V, no battery</p>
  <script>trackView()</script>
  <footer>Copyright</footer>
</body>
</html>`

func TestParsePage(t *testing.T) {
	p, err := ParsePage(strings.NewReader(listingPage))
	require.NoError(t, err)

	assert.Equal(t, "15.6 inch Android Wall Mount Signage", p.Title)
	assert.Equal(t, "OEM digital signage display", p.Description)
	assert.Equal(t, "https://www.alibaba.com/product-detail/signage_156.html", p.URL)

	lines := strings.Split(p.Text, "\n")
	assert.Equal(t, []string{
		"15.6 inch Android Wall Mount Signage",
		"OEM digital signage display",
		"Shenzhen TechDisplay Co., Ltd.",
		"Price: $135 per unit",
		"MOQ: 100 pieces",
		"Android 11",
		"DC 12V, no battery",
	}, lines)
	assert.NotContains(t, p.Text, "trackView")
	assert.NotContains(t, p.Text, "Copyright")
	assert.NotContains(t, p.Text, "Categories")
}

func TestHTMLText_NoBody(t *testing.T) {
	text, err := HTMLText(strings.NewReader("<title>Only a title</title>"))
	require.NoError(t, err)
	assert.Equal(t, "Only a title", text)
}

func TestPlatformFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.alibaba.com/product-detail/x.html", "alibaba"},
		{"https://techdisplay.en.made-in-china.com/product/abc", "made-in-china"},
		{"https://www.globalsources.com/item/1", "globalsources"},
		{"https://vendor.example.cn", "other"},
		{"not a url", "other"},
		{"", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, PlatformFromURL(tt.url))
		})
	}
}

func TestCollect_JSONLines(t *testing.T) {
	in := `{"raw_text": "first listing", "platform": "Alibaba", "keyword": "signage"}
{"raw_text": "second listing", "url": "https://www.globalsources.com/item/2"}
`
	got, err := Collect(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alibaba", got[0].Platform)
	assert.Equal(t, "signage", got[0].Keyword)
	assert.Equal(t, "globalsources", got[1].Platform)
}

func TestCollect_Array(t *testing.T) {
	in := `  [
  {"raw_text": "one"},
  {"html": "<body><p>Price: $80</p></body>", "vendor_name": "Acme Displays Ltd"}
]`
	got, err := Collect(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Text)
	assert.Equal(t, "Price: $80", got[1].Text)
	assert.Empty(t, got[1].HTML)
	assert.Equal(t, "Acme Displays Ltd", got[1].Vendor)
}

func TestCollect_Empty(t *testing.T) {
	got, err := Collect(context.Background(), strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCollect_Malformed(t *testing.T) {
	_, err := Collect(context.Background(), strings.NewReader(`{"raw_text": "ok"}
{"raw_text": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed: decode listing 2")
}

func TestCollect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, strings.NewReader(`{"raw_text": "a"}`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("b_listings.jsonl", `{"raw_text": "jsonl listing", "keyword": "own keyword"}`+"\n")
	write("a_page.html", listingPage)
	write("c_notes.txt", "plain text listing")
	write("d_ignored.csv", "a,b,c")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	got, err := Load(context.Background(), dir, "android signage")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Contains(t, got[0].Text, "Shenzhen TechDisplay Co., Ltd.")
	assert.Equal(t, "alibaba", got[0].Platform)
	assert.Equal(t, "android signage", got[0].Keyword)

	assert.Equal(t, "jsonl listing", got[1].Text)
	assert.Equal(t, "own keyword", got[1].Keyword)

	assert.Equal(t, "plain text listing", got[2].Text)
}

func TestLoad_MissingPath(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed: stat")
}
