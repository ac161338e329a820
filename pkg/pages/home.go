package pages

import (
	"context"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

const (
	HomeHeader      = `header, .header, nav`
	HomeLogo        = `a[href="/"], .logo, img[alt*="logo"]`
	HomeSearchInput = `input[type="search"], input[placeholder*="Search"]`
	HomeLoginLink   = `a[href*="login"]`
	HomeSignupLink  = `a[href*="signup"], a[href*="register"]`
)

type HomePage struct {
	BasePage
}

func NewHomePage(page driver.Page, baseURL string) *HomePage {
	return &HomePage{BasePage{Page: page, BaseURL: baseURL}}
}

func (p *HomePage) NavigateToHome(ctx context.Context) error {
	return p.Navigate(ctx, p.BaseURL)
}

// IsHeaderVisible accepts a header, or any body or h1 on pages without one.
func (p *HomePage) IsHeaderVisible(ctx context.Context) (bool, error) {
	return p.AnyVisible(ctx, HomeHeader, "body", "h1")
}

func (p *HomePage) ClickLogo(ctx context.Context) error {
	return p.Click(ctx, HomeLogo)
}

// Search types query into the search box and submits it.
func (p *HomePage) Search(ctx context.Context, query string) error {
	if err := p.Fill(ctx, HomeSearchInput, query); err != nil {
		return err
	}
	return p.Page.Press(ctx, HomeSearchInput, "Enter")
}

func (p *HomePage) ClickLogin(ctx context.Context) error {
	return p.Click(ctx, HomeLoginLink)
}

func (p *HomePage) ClickSignup(ctx context.Context) error {
	return p.Click(ctx, HomeSignupLink)
}
