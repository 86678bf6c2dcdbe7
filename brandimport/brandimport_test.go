package brandimport_test

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/brandstudio/brandimport"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://chaipoint.in", false},
		{"https://chaipoint.in:8443/about", false},
		{"http://chaipoint.in", true},
		{"ftp://chaipoint.in", true},
		{"https://localhost/", true},
		{"https://127.0.0.1/", true},
		{"https://[::1]/", true},
		{"https://10.0.0.8/", true},
		{"https://192.168.1.1/", true},
		{"https://169.254.169.254/latest/meta-data", true},
		{"https://100.64.1.1/", true},
		{"https://printer.local/", true},
		{"https://db.internal/", true},
		{"https:///nohost", true},
		{"https://8.8.8.8/", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := brandimport.ValidateURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, brandimport.ErrBlockedURL))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	assert.True(t, brandimport.IsPrivateIP(net.ParseIP("::ffff:127.0.0.1")))
	assert.True(t, brandimport.IsPrivateIP(net.ParseIP("fd00::1")))
	assert.True(t, brandimport.IsPrivateIP(net.ParseIP("0.0.0.0")))
	assert.False(t, brandimport.IsPrivateIP(net.ParseIP("1.1.1.1")))
	assert.False(t, brandimport.IsPrivateIP(net.ParseIP("2606:4700:4700::1111")))
}

func TestNormalizeColor(t *testing.T) {
	tests := map[string]string{
		"#4F46E5":           "#4f46e5",
		"#fa0":              "#ffaa00",
		" rgb(255, 0, 16) ": "#ff0010",
		"rgba(0,0,0,0.5)":   "#000000",
	}
	for in, want := range tests {
		got, ok := brandimport.NormalizeColor(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"red", "#12345", "rgb(300,0,0)", ""} {
		_, ok := brandimport.NormalizeColor(bad)
		assert.False(t, ok, bad)
	}
}

const chaiPage = `<!doctype html>
<html>
<head>
  <title>Chai Point | Fresh chai, delivered</title>
  <meta name="description" content="Freshly brewed chai across India.">
  <meta property="og:site_name" content="Chai Point">
  <meta property="og:image" content="https://cdn.chaipoint.in/og.png">
  <meta name="theme-color" content="#E85D04">
  <meta name="msapplication-TileColor" content="#e85d04">
  <link rel="icon" href="/favicon.ico">
  <link rel="apple-touch-icon" href="/static/touch.png">
</head>
<body>
  <nav>Menu Careers</nav>
  <main>
    <h1>Fresh chai</h1>
    <p>Brewed daily in 100 cities.</p>
  </main>
  <footer>Copyright</footer>
</body>
</html>`

func TestExtract(t *testing.T) {
	imp := brandimport.NewImporter()

	draft, err := imp.Extract("https://www.chaipoint.in/about", []byte(chaiPage))
	require.NoError(t, err)

	assert.Equal(t, "Chai Point", draft.Brand.CompanyName)
	assert.Equal(t, "https://www.chaipoint.in/about", draft.Brand.Website)
	assert.Equal(t, "Freshly brewed chai across India.", draft.Brand.Tagline)
	assert.Equal(t, "https://www.chaipoint.in/static/touch.png", draft.Brand.LogoURL)
	assert.Equal(t, []string{"#e85d04"}, draft.Brand.Colors)
	assert.Equal(t, "Chai Point | Fresh chai, delivered", draft.Title)

	assert.Contains(t, draft.Markdown, "Fresh chai")
	assert.Contains(t, draft.Markdown, "Brewed daily in 100 cities.")
	assert.NotContains(t, draft.Markdown, "Careers")
	assert.NotContains(t, draft.Markdown, "Copyright")
}

func TestExtract_Fallbacks(t *testing.T) {
	imp := brandimport.NewImporter()

	page := `<html><head><title>Masala Co - Spices</title>
<meta property="og:description" content="Spices from Kerala">
<meta property="og:image" content="/hero.jpg"></head>
<body><nav>skip me</nav><p>Whole spices.</p><script>track()</script></body></html>`

	draft, err := imp.Extract("https://masala.example/", []byte(page))
	require.NoError(t, err)
	assert.Equal(t, "Masala Co", draft.Brand.CompanyName)
	assert.Equal(t, "Spices from Kerala", draft.Brand.Tagline)
	assert.Equal(t, "https://masala.example/hero.jpg", draft.Brand.LogoURL)
	assert.Empty(t, draft.Brand.Colors)
	assert.Contains(t, draft.Markdown, "Whole spices.")
	assert.NotContains(t, draft.Markdown, "skip me")
	assert.NotContains(t, draft.Markdown, "track()")

	draft, err = imp.Extract("https://www.bare.example/", []byte("<p>hi</p>"))
	require.NoError(t, err)
	assert.Equal(t, "bare.example", draft.Brand.CompanyName)
}

func TestExtract_LongDescriptionIsTruncated(t *testing.T) {
	long := strings.Repeat("chai ", 100)
	page := `<html><head><meta name="description" content="` + long + `"></head><body></body></html>`

	draft, err := brandimport.NewImporter().Extract("https://x.example/", []byte(page))
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(draft.Brand.Tagline)), 161)
	assert.True(t, strings.HasSuffix(draft.Brand.Tagline, "…"))
}
