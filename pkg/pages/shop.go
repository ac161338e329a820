package pages

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

// Pages of the local TestShop.
const (
	ShopIndex    = "index.html"
	ShopLogin    = "login.html"
	ShopSignup   = "signup.html"
	ShopProducts = "products.html"
	ShopCart     = "cart.html"
)

const (
	ShopEmail           = "#email"
	ShopPassword        = "#password"
	ShopSubmit          = "button[type='submit']"
	ShopLoginError      = "#login-error"
	ShopName            = "#name"
	ShopConfirmPassword = "#confirm-password"
	ShopTerms           = "#terms"
	ShopSignupSuccess   = "#signup-success"
	ShopSignupError     = "#signup-error"

	ShopSearchInput  = "#search-input"
	ShopSearchButton = "#search-input + button"
	ShopProductCard  = ".product-card"
	ShopCartCount    = "#cart-count"
	ShopAddToCart    = ".btn-primary"
	ShopCartItem     = ".cart-item"
	ShopCartSummary  = "#cart-summary"
	ShopCartEmpty    = "#cart-empty"
	ShopRemoveItem   = ".remove-btn"
)

// ShopAccount is the account the TestShop accepts.
var ShopAccount = struct{ Email, Password string }{"test@testshop.com", "Test123!"}

type Signup struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	AcceptTerms     bool
}

// ShopPage drives the TestShop demo site served from BaseURL.
type ShopPage struct {
	BasePage
}

func NewShopPage(page driver.Page, baseURL string) *ShopPage {
	return &ShopPage{BasePage{Page: page, BaseURL: baseURL}}
}

// Login submits the login form. A valid account lands on the products page.
func (p *ShopPage) Login(ctx context.Context, email, password string) error {
	if err := p.Open(ctx, ShopLogin); err != nil {
		return err
	}
	if err := p.Fill(ctx, ShopEmail, email); err != nil {
		return err
	}
	if err := p.Fill(ctx, ShopPassword, password); err != nil {
		return err
	}
	return p.Click(ctx, ShopSubmit)
}

// LoginError returns the login error text, "" when none is shown.
func (p *ShopPage) LoginError(ctx context.Context) (string, error) {
	return p.VisibleText(ctx, ShopLoginError)
}

func (p *ShopPage) Signup(ctx context.Context, s Signup) error {
	if err := p.Open(ctx, ShopSignup); err != nil {
		return err
	}
	fields := []struct{ sel, value string }{
		{ShopName, s.Name},
		{ShopEmail, s.Email},
		{ShopPassword, s.Password},
		{ShopConfirmPassword, s.ConfirmPassword},
	}
	for _, f := range fields {
		if err := p.Fill(ctx, f.sel, f.value); err != nil {
			return err
		}
	}
	if s.AcceptTerms {
		if err := p.Page.Check(ctx, ShopTerms, true); err != nil {
			return err
		}
	}
	return p.Click(ctx, ShopSubmit)
}

// SignupResult returns whether the signup succeeded and the message shown.
func (p *ShopPage) SignupResult(ctx context.Context) (bool, string, error) {
	msg, err := p.VisibleText(ctx, ShopSignupSuccess)
	if err != nil || msg != "" {
		return msg != "", msg, err
	}
	msg, err = p.VisibleText(ctx, ShopSignupError)
	return false, msg, err
}

func (p *ShopPage) Search(ctx context.Context, query string) error {
	if err := p.Fill(ctx, ShopSearchInput, query); err != nil {
		return err
	}
	return p.Click(ctx, ShopSearchButton)
}

func (p *ShopPage) ProductCount(ctx context.Context) (int, error) {
	return p.Page.Count(ctx, ShopProductCard)
}

// AddFirstToCart adds the first listed product, accepting the confirmation
// dialog the shop shows.
func (p *ShopPage) AddFirstToCart(ctx context.Context) error {
	p.Page.HandleDialogs(true)
	return p.Click(ctx, ShopAddToCart)
}

func (p *ShopPage) CartCount(ctx context.Context) (int, error) {
	text, err := p.Page.Text(ctx, ShopCartCount)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("cart count %q: %w", text, err)
	}
	return n, nil
}

func (p *ShopPage) CartItems(ctx context.Context) (int, error) {
	return p.Page.Count(ctx, ShopCartItem)
}

func (p *ShopPage) IsCartEmpty(ctx context.Context) (bool, error) {
	return p.IsVisible(ctx, ShopCartEmpty)
}

func (p *ShopPage) RemoveFirstItem(ctx context.Context) error {
	p.Page.HandleDialogs(true)
	return p.Click(ctx, ShopRemoveItem)
}

func (p *ShopPage) Checkout(ctx context.Context) error {
	p.Page.HandleDialogs(true)
	_, err := p.Page.Evaluate(ctx, "checkout()")
	return err
}
