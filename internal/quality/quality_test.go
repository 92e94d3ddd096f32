package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/oem-scout/internal/model"
)

func TestIsPlaceholderEmail(t *testing.T) {
	t.Parallel()

	const vendor = "Shenzhen HYY Technology Co., Ltd."
	tests := []struct {
		name   string
		email  string
		vendor string
		want   bool
	}{
		{"empty", "", vendor, true},
		{"null token", "null", vendor, true},
		{"None token", "None", vendor, true},
		{"template", "sales@company.com", vendor, true},
		{"template case-insensitive", "Example@Example.com", "", true},
		{"fabricated from vendor word", "sales@shenzhyy.com", vendor, true},
		{"fabricated contained in word", "info@hyy.cn", vendor, true},
		{"personal mailbox", "realcontact@gmail.com", vendor, false},
		{"role account unrelated domain", "sales@gmail.com", vendor, false},
		{"role account without vendor", "sales@shenzhyy.com", "", false},
		{"named person on vendor domain", "lily@shenzhyy.com", vendor, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, reason := IsPlaceholderEmail(tt.email, tt.vendor)
			assert.Equal(t, tt.want, got, reason)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestFabricationSignatureReason(t *testing.T) {
	t.Parallel()

	bad, reason := IsPlaceholderEmail("sales@shenzhyy.com", "Shenzhen HYY Technology Co., Ltd.")
	require.True(t, bad)
	assert.Contains(t, reason, "fabricated")
	assert.Contains(t, reason, "hyy")
}

func TestHeuristicsArePure(t *testing.T) {
	t.Parallel()

	price := 150.0
	for range 3 {
		b1, r1 := IsPlaceholderEmail("sales@shenzhyy.com", "Shenzhen HYY Technology")
		b2, r2 := IsPlaceholderEmail("sales@shenzhyy.com", "Shenzhen HYY Technology")
		assert.Equal(t, b1, b2)
		assert.Equal(t, r1, r2)

		u1, ur1 := IsPlaceholderURL("https://hyy.en.alibaba.com")
		u2, ur2 := IsPlaceholderURL("https://hyy.en.alibaba.com")
		assert.Equal(t, u1, u2)
		assert.Equal(t, ur1, ur2)

		p1, pr1 := IsPlaceholderPrice(&price)
		p2, pr2 := IsPlaceholderPrice(&price)
		assert.Equal(t, p1, p2)
		assert.Equal(t, pr1, pr2)

		n1, nr1 := IsGenericVendorName("Acme")
		n2, nr2 := IsGenericVendorName("Acme")
		assert.Equal(t, n1, n2)
		assert.Equal(t, nr1, nr2)
	}
}

func TestIsPlaceholderURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
	}{
		{"", true},
		{"None", true},
		{"product-page-url", true},
		{"company-website", true},
		{"http://example.com/item/1", true},
		{"www.example.com", true},
		{"vendor-website.com", true},
		{"https://placeholder.io/x", true},
		{"ftp://files.vendor.cn", true},
		{"hyy.en.alibaba.com", true},
		{"https://hyy.en.alibaba.com", false},
		{"http://www.techdisplay.com/product/156-signage", false},
	}
	for _, tt := range tests {
		got, reason := IsPlaceholderURL(tt.url)
		assert.Equal(t, tt.want, got, "%s: %s", tt.url, reason)
	}
}

func TestIsPlaceholderPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		price *float64
		want  bool
	}{
		{nil, true},
		{model.Float(150.0), true},
		{model.Float(100.0), true},
		{model.Float(125.5), true},
		{model.Float(99.99), true},
		{model.Float(500), true},
		{model.Float(50), false},
		{model.Float(87.50), false},
		{model.Float(135), false},
		{model.Float(175), false},
	}
	for _, tt := range tests {
		got, reason := IsPlaceholderPrice(tt.price)
		assert.Equal(t, tt.want, got, reason)
	}
}

func TestIsGenericVendorName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"", true},
		{"null", true},
		{"Company Name", true},
		{"vendor name", true},
		{"Unknown Supplier Ltd", true},
		{"Acme", true},
		{"Shenzhen X Co.", false},
		{"Beijing Loop Player Inc.", false},
		{"Acme Display Manufacturing", false},
	}
	for _, tt := range tests {
		got, reason := IsGenericVendorName(tt.name)
		assert.Equal(t, tt.want, got, "%s: %s", tt.name, reason)
	}
}

func TestCheckUniqueness(t *testing.T) {
	t.Parallel()

	c := &model.Candidate{
		VendorName: "Shenzhen TechDisplay Co., Ltd.",
		Email:      model.Str("sales@techdisplay.com"),
		Price:      model.Float(87.5),
		ProductURL: model.Str("https://techdisplay.com/product/1"),
	}

	t.Run("unique", func(t *testing.T) {
		ok, _ := CheckUniqueness(c, []model.Candidate{{VendorName: "Other Vendor Co", Price: model.Float(87.5)}})
		assert.True(t, ok)
	})

	t.Run("shared email", func(t *testing.T) {
		var hist []model.Candidate
		for range 4 {
			hist = append(hist, model.Candidate{Email: model.Str("sales@techdisplay.com")})
		}
		ok, reason := CheckUniqueness(c, hist)
		assert.False(t, ok)
		assert.Contains(t, reason, "appears in 4 vendors")
	})

	t.Run("three shared emails tolerated", func(t *testing.T) {
		var hist []model.Candidate
		for range 3 {
			hist = append(hist, model.Candidate{Email: model.Str("sales@techdisplay.com")})
		}
		ok, _ := CheckUniqueness(c, hist)
		assert.True(t, ok)
	})

	t.Run("shared price", func(t *testing.T) {
		var hist []model.Candidate
		for range 6 {
			hist = append(hist, model.Candidate{Price: model.Float(87.5)})
		}
		ok, reason := CheckUniqueness(c, hist)
		assert.False(t, ok)
		assert.Contains(t, reason, "price")
	})

	t.Run("exact duplicate", func(t *testing.T) {
		hist := []model.Candidate{{
			VendorName: "Shenzhen TechDisplay Co., Ltd.",
			ProductURL: model.Str("https://techdisplay.com/product/1"),
		}}
		ok, reason := CheckUniqueness(c, hist)
		assert.False(t, ok)
		assert.Contains(t, reason, "duplicate")
	})
}

func TestCheckExtraction(t *testing.T) {
	t.Parallel()

	t.Run("clean record", func(t *testing.T) {
		c := &model.Candidate{
			VendorName: "Shenzhen TechDisplay Co., Ltd.",
			Email:      model.Str("lily@gmail.com"),
			ProductURL: model.Str("https://techdisplay.com/product/156"),
			VendorURL:  model.Str("https://techdisplay.com"),
			Price:      model.Float(87.5),
		}
		r := CheckExtraction(c, nil)
		assert.True(t, r.Passed)
		assert.Empty(t, r.Issues)
		assert.InDelta(t, 1.0, r.Confidence, 1e-9)
	})

	t.Run("single severe issue passes", func(t *testing.T) {
		c := &model.Candidate{
			VendorName: "Shenzhen TechDisplay Co., Ltd.",
			Email:      model.Str("lily@gmail.com"),
			ProductURL: model.Str("https://techdisplay.com/product/156"),
			VendorURL:  model.Str("https://techdisplay.com"),
			Price:      model.Float(150),
		}
		r := CheckExtraction(c, nil)
		assert.True(t, r.Passed)
		assert.Len(t, r.Issues, 1)
		assert.InDelta(t, 0.8, r.Confidence, 1e-9)
	})

	t.Run("missing contacts fail", func(t *testing.T) {
		c := &model.Candidate{VendorName: "Shenzhen TechDisplay Co., Ltd.", Price: model.Float(135)}
		r := CheckExtraction(c, nil)
		assert.False(t, r.Passed)
		assert.Len(t, r.Issues, 3)
		assert.InDelta(t, 0.2, r.Confidence, 1e-9)
	})

	t.Run("confidence floored at zero", func(t *testing.T) {
		hist := []model.Candidate{{VendorName: "Acme", ProductURL: model.Str("x")}}
		r := CheckExtraction(&model.Candidate{VendorName: "Acme", ProductURL: model.Str("x")}, hist)
		assert.False(t, r.Passed)
		assert.Equal(t, 0.0, r.Confidence)
	})
}

func TestRecoverEmail(t *testing.T) {
	t.Parallel()

	text := "Contact sales@company.com or lily@gmail.com, or write to sales@techdisplay.com"
	assert.Equal(t, "sales@techdisplay.com", RecoverEmail(text, "Tech Display"))
	assert.Equal(t, "lily@gmail.com", RecoverEmail(text, ""))
	assert.Equal(t, "", RecoverEmail("no address here", "Tech Display"))
	assert.Equal(t, "", RecoverEmail("only example@example.com", ""))
}

func TestRecoverURLs(t *testing.T) {
	t.Parallel()

	t.Run("vendor and product", func(t *testing.T) {
		text := "Shop: https://techdisplay.en.alibaba.com see https://techdisplay.en.alibaba.com/product/1.html and https://www.alibaba.com/product-detail/156.html."
		u := RecoverURLs(text)
		assert.Equal(t, "https://techdisplay.en.alibaba.com", u.Vendor)
		assert.Equal(t, "https://www.alibaba.com/product-detail/156.html", u.Product)
	})

	t.Run("two path segments is a product", func(t *testing.T) {
		u := RecoverURLs("https://vendor.cn/a/b")
		assert.Equal(t, "https://vendor.cn/a/b", u.Product)
		assert.Equal(t, "https://vendor.cn/a/b", u.Vendor)
	})

	t.Run("single vendor url fills both roles", func(t *testing.T) {
		u := RecoverURLs("home page https://vendor.cn")
		assert.Equal(t, "https://vendor.cn", u.Vendor)
		assert.Equal(t, "https://vendor.cn", u.Product)
	})

	t.Run("placeholders skipped", func(t *testing.T) {
		assert.Equal(t, URLs{}, RecoverURLs("see http://example.com/product/1"))
		assert.Equal(t, URLs{}, RecoverURLs("nothing"))
	})
}

func TestSanitize_FabricatedEmailCleared(t *testing.T) {
	t.Parallel()

	c := &model.Candidate{
		VendorName: "Shenzhen HYY Technology",
		Email:      model.Str("sales@shenzhyy.com"),
		RawText:    "Shenzhen HYY Technology. 15.6 inch wall mount display. Price: $88",
		Price:      model.Float(88),
	}
	r := Sanitize(c, nil)

	assert.Nil(t, c.Email)
	require.NotEmpty(t, r.Issues)
	assert.Contains(t, r.Issues[0], "fabricated")
	assert.Empty(t, c.Recovered)
	assert.Equal(t, r, c.Quality)
}

func TestSanitize_RecoveryOverridesExtractor(t *testing.T) {
	t.Parallel()

	c := &model.Candidate{
		VendorName: "Shenzhen TechDisplay Co., Ltd.",
		Email:      model.Str("info@company.com"),
		VendorURL:  model.Str("company-website"),
		RawText:    "Shenzhen TechDisplay Co., Ltd. mail: sales@techdisplay.com web https://techdisplay.com",
	}
	Sanitize(c, nil)

	require.NotNil(t, c.Email)
	assert.Equal(t, "sales@techdisplay.com", *c.Email)
	require.NotNil(t, c.VendorURL)
	assert.Equal(t, "https://techdisplay.com", *c.VendorURL)
	assert.ElementsMatch(t, []string{model.FieldEmail, model.FieldVendorURL, model.FieldProductURL}, c.Recovered)
}

func TestSanitize_UngroundedURLCleared(t *testing.T) {
	t.Parallel()

	c := &model.Candidate{
		VendorName: "Guangzhou Bright Display Co., Ltd.",
		ProductURL: model.Str("https://bright.com/product/1"),
		RawText:    "Guangzhou Bright Display Co., Ltd. no links in this listing",
	}
	Sanitize(c, nil)
	assert.Nil(t, c.ProductURL)
}
