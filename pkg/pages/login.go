package pages

import (
	"context"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

const (
	LoginEmailInput    = `input[name="email"], input[type="email"], #email`
	LoginPasswordInput = `input[name="password"], input[type="password"], #password`
	LoginButton        = `button[type="submit"], input[type="submit"]`
	LoginErrorMessage  = `.error, .alert-danger, [role="alert"]`
)

type LoginPage struct {
	BasePage
}

func NewLoginPage(page driver.Page, baseURL string) *LoginPage {
	return &LoginPage{BasePage{Page: page, BaseURL: baseURL}}
}

func (p *LoginPage) NavigateToLogin(ctx context.Context) error {
	return p.Open(ctx, "/login")
}

func (p *LoginPage) Login(ctx context.Context, username, password string) error {
	if err := p.Fill(ctx, LoginEmailInput, username); err != nil {
		return err
	}
	if err := p.Fill(ctx, LoginPasswordInput, password); err != nil {
		return err
	}
	return p.Click(ctx, LoginButton)
}

// ErrorMessage returns the visible error text, "" when none is shown.
func (p *LoginPage) ErrorMessage(ctx context.Context) (string, error) {
	return p.VisibleText(ctx, LoginErrorMessage)
}

func (p *LoginPage) IsErrorDisplayed(ctx context.Context) (bool, error) {
	return p.IsVisible(ctx, LoginErrorMessage)
}
