package pages

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/pagesuite/pkg/driver"
	"github.com/kidandcat/pagesuite/pkg/driver/drivertest"
)

func newPage(t *testing.T, elements map[string]drivertest.Element) *drivertest.Page {
	t.Helper()
	fake := drivertest.New()
	for sel, el := range elements {
		fake.Elements[sel] = el
	}
	b, err := fake.Launch(t.Context(), driver.LaunchOptions{})
	require.NoError(t, err)
	c, err := b.NewContext(t.Context(), driver.ContextOptions{})
	require.NoError(t, err)
	p, err := c.NewPage(t.Context())
	require.NoError(t, err)
	p.SetDefaultTimeout(50 * time.Millisecond)
	return p.(*drivertest.Page)
}

func TestBasePage(t *testing.T) {
	ctx := t.Context()
	page := newPage(t, map[string]drivertest.Element{
		"#go":   {Navigate: "https://example.com/next"},
		"#name": {},
		"h1":    {},
	})
	p := &BasePage{Page: page, BaseURL: "https://example.com/"}

	require.NoError(t, p.Open(ctx, "/start"))
	u, err := p.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/start", u)

	require.NoError(t, p.Click(ctx, "#go"))
	require.NoError(t, p.WaitForURL(ctx, "/next"))
	assert.True(t, driver.IsTimeout(p.WaitForURL(ctx, "/elsewhere")))

	require.NoError(t, p.Fill(ctx, "#name", "Ada"))
	assert.Contains(t, page.Actions(), "fill #name=Ada")

	ok, err := p.AnyVisible(ctx, "header", "h1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = p.AnyVisible(ctx, "header", "footer")
	require.NoError(t, err)
	assert.False(t, ok)

	path := filepath.Join(t.TempDir(), "shots", "base.png")
	require.NoError(t, p.Screenshot(ctx, path))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestHomePage(t *testing.T) {
	ctx := t.Context()
	page := newPage(t, map[string]drivertest.Element{
		HomeSearchInput: {},
		HomeLoginLink:   {Navigate: "https://example.com/login"},
	})
	p := NewHomePage(page, "https://example.com")

	require.NoError(t, p.NavigateToHome(ctx))
	ok, err := p.IsHeaderVisible(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Search(ctx, "shoes"))
	assert.Equal(t, []string{
		"goto https://example.com",
		"fill " + HomeSearchInput + "=shoes",
		"press " + HomeSearchInput + " Enter",
	}, page.Actions())

	require.NoError(t, p.ClickLogin(ctx))
	u, _ := p.URL(ctx)
	assert.Equal(t, "https://example.com/login", u)

	assert.True(t, driver.IsTimeout(p.ClickSignup(ctx)))
}

func TestLoginPage(t *testing.T) {
	ctx := t.Context()
	page := newPage(t, map[string]drivertest.Element{
		LoginEmailInput:    {},
		LoginPasswordInput: {},
		LoginButton:        {},
	})
	p := NewLoginPage(page, "https://example.com")

	require.NoError(t, p.NavigateToLogin(ctx))
	require.NoError(t, p.Login(ctx, "user@test.com", "secret"))
	assert.Equal(t, []string{
		"goto https://example.com/login",
		"fill " + LoginEmailInput + "=user@test.com",
		"fill " + LoginPasswordInput + "=secret",
		"click " + LoginButton,
	}, page.Actions())

	msg, err := p.ErrorMessage(ctx)
	require.NoError(t, err)
	assert.Empty(t, msg)

	page.SetElement(LoginErrorMessage, drivertest.Element{Text: "  Invalid credentials \n"})
	shown, err := p.IsErrorDisplayed(ctx)
	require.NoError(t, err)
	assert.True(t, shown)
	msg, err = p.ErrorMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Invalid credentials", msg)
}

func TestOutfitteryAcceptCookiesWithoutBanner(t *testing.T) {
	page := newPage(t, nil)
	p := NewOutfitteryHomePage(page, "https://www.outfittery.com")

	require.NoError(t, p.AcceptCookies(t.Context()))
	assert.Empty(t, page.Actions())
}

func TestOutfitteryAcceptCookies(t *testing.T) {
	page := newPage(t, map[string]drivertest.Element{
		OutfitteryCookieBanner: {},
		OutfitteryCookieAccept: {},
	})
	p := NewOutfitteryHomePage(page, "https://www.outfittery.com")

	require.NoError(t, p.AcceptCookies(t.Context()))
	assert.Equal(t, []string{"click " + OutfitteryCookieAccept}, page.Actions())
}

func TestOutfitteryHomePage(t *testing.T) {
	ctx := t.Context()
	page := newPage(t, map[string]drivertest.Element{
		OutfitteryHeader: {},
		"html":           {Attrs: map[string]string{"lang": "de"}},
	})
	p := NewOutfitteryHomePage(page, "https://www.outfittery.com")

	require.NoError(t, p.NavigateToHome(ctx))
	ok, err := p.IsHeaderVisible(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = p.IsLogoVisible(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	lang, err := p.PageLanguage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "de", lang)

	page.SetElement("html", drivertest.Element{})
	lang, err = p.PageLanguage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "unknown", lang)

	// The fake evaluates scripts to nil, so no link is ever found.
	err = p.ClickForMen(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "For Men")
}

func TestShopLogin(t *testing.T) {
	ctx := t.Context()
	page := newPage(t, map[string]drivertest.Element{
		ShopEmail:    {},
		ShopPassword: {},
		ShopSubmit:   {Navigate: "http://localhost:8000/products.html"},
	})
	p := NewShopPage(page, "http://localhost:8000")

	require.NoError(t, p.Login(ctx, ShopAccount.Email, ShopAccount.Password))
	require.NoError(t, p.WaitForURL(ctx, ShopProducts))
	assert.Equal(t, "goto http://localhost:8000/login.html", page.Actions()[0])

	msg, err := p.LoginError(ctx)
	require.NoError(t, err)
	assert.Empty(t, msg)

	page.SetElement(ShopLoginError, drivertest.Element{Text: "Invalid email or password"})
	msg, err = p.LoginError(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Invalid email or password", msg)
}

func TestShopSignup(t *testing.T) {
	ctx := t.Context()
	page := newPage(t, map[string]drivertest.Element{
		ShopName:            {},
		ShopEmail:           {},
		ShopPassword:        {},
		ShopConfirmPassword: {},
		ShopTerms:           {},
		ShopSubmit:          {},
		ShopSignupError:     {Text: "Passwords do not match"},
	})
	p := NewShopPage(page, "http://localhost:8000/")

	require.NoError(t, p.Signup(ctx, Signup{
		Name:            "Ada",
		Email:           "ada@test.com",
		Password:        "Test123!",
		ConfirmPassword: "Other123!",
		AcceptTerms:     true,
	}))
	assert.Contains(t, page.Actions(), "check #terms=true")

	ok, msg, err := p.SignupResult(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "Passwords do not match", msg)

	page.SetElement(ShopSignupSuccess, drivertest.Element{Text: "Account created"})
	ok, msg, err = p.SignupResult(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Account created", msg)
}

func TestShopCart(t *testing.T) {
	ctx := t.Context()
	page := newPage(t, map[string]drivertest.Element{
		ShopSearchInput:  {},
		ShopSearchButton: {},
		ShopProductCard:  {Count: 3},
		ShopAddToCart:    {},
		ShopCartCount:    {Text: " 1 "},
		ShopCartItem:     {},
		ShopRemoveItem:   {},
	})
	p := NewShopPage(page, "http://localhost:8000")

	require.NoError(t, p.Search(ctx, "shirt"))
	n, err := p.ProductCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, p.AddFirstToCart(ctx))
	accept, set := page.DialogPolicy()
	assert.True(t, set)
	assert.True(t, accept)

	n, err = p.CartCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = p.CartItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	empty, err := p.IsCartEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)

	require.NoError(t, p.RemoveFirstItem(ctx))
	require.NoError(t, p.Checkout(ctx))

	page.SetElement(ShopCartCount, drivertest.Element{Text: "n/a"})
	_, err = p.CartCount(ctx)
	assert.Error(t, err)
}
