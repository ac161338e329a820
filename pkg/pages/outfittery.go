package pages

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

const (
	OutfitteryHeader        = `header, nav, [role="navigation"]`
	OutfitteryLogo          = `a[href="/"], img[alt*="Outfittery"], .logo`
	OutfitteryCookieBanner  = `[class*="cookie"], [id*="cookie"], #onetrust-banner-sdk`
	OutfitteryCookieAccept  = `#onetrust-accept-btn-handler`
	OutfitteryCookieTimeout = 3 * time.Second
)

// Link texts are matched in English and German.
var (
	HowItWorksTexts = []string{"How it works", "Wie es funktioniert"}
	ForMenTexts     = []string{"For Men", "Für Männer"}
	ForWomenTexts   = []string{"For Women", "Für Frauen"}
	GetStartedTexts = []string{"Get started", "Jetzt starten"}
)

type OutfitteryHomePage struct {
	BasePage
}

func NewOutfitteryHomePage(page driver.Page, baseURL string) *OutfitteryHomePage {
	return &OutfitteryHomePage{BasePage{Page: page, BaseURL: baseURL}}
}

func (p *OutfitteryHomePage) NavigateToHome(ctx context.Context) error {
	return p.Navigate(ctx, p.BaseURL)
}

// AcceptCookies dismisses the cookie banner. A banner that does not show up
// within OutfitteryCookieTimeout is not an error.
func (p *OutfitteryHomePage) AcceptCookies(ctx context.Context) error {
	wctx, cancel := context.WithTimeout(ctx, OutfitteryCookieTimeout)
	err := p.Page.WaitFor(wctx, OutfitteryCookieBanner, driver.StateVisible)
	cancel()
	if err != nil {
		if driver.IsTimeout(err) && ctx.Err() == nil {
			return nil
		}
		return err
	}

	visible, err := p.IsVisible(ctx, OutfitteryCookieAccept)
	if err != nil || !visible {
		clicked, cerr := p.clickText(ctx, "button", "Accept", "Akzeptieren")
		if cerr != nil || !clicked {
			return cerr
		}
	} else if err := p.Click(ctx, OutfitteryCookieAccept); err != nil {
		return err
	}
	return pause(ctx, time.Second)
}

func (p *OutfitteryHomePage) IsLogoVisible(ctx context.Context) (bool, error) {
	return p.IsVisible(ctx, OutfitteryLogo)
}

func (p *OutfitteryHomePage) IsHeaderVisible(ctx context.Context) (bool, error) {
	return p.IsVisible(ctx, OutfitteryHeader)
}

func (p *OutfitteryHomePage) ClickHowItWorks(ctx context.Context) error {
	return p.clickLink(ctx, "a", HowItWorksTexts...)
}

func (p *OutfitteryHomePage) ClickForMen(ctx context.Context) error {
	return p.clickLink(ctx, "a", ForMenTexts...)
}

func (p *OutfitteryHomePage) ClickForWomen(ctx context.Context) error {
	return p.clickLink(ctx, "a", ForWomenTexts...)
}

func (p *OutfitteryHomePage) ClickGetStarted(ctx context.Context) error {
	return p.clickLink(ctx, "a, button", GetStartedTexts...)
}

func (p *OutfitteryHomePage) ScrollToFooter(ctx context.Context) error {
	if _, err := p.Page.Evaluate(ctx, "window.scrollTo(0, document.body.scrollHeight)"); err != nil {
		return err
	}
	return pause(ctx, 500*time.Millisecond)
}

// PageLanguage returns the lang attribute of the document, or "unknown".
func (p *OutfitteryHomePage) PageLanguage(ctx context.Context) (string, error) {
	lang, ok, err := p.Page.Attribute(ctx, "html", "lang")
	if err != nil {
		return "", err
	}
	if !ok || lang == "" {
		return "unknown", nil
	}
	return lang, nil
}

func (p *OutfitteryHomePage) clickLink(ctx context.Context, tags string, texts ...string) error {
	clicked, err := p.clickText(ctx, tags, texts...)
	if err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("no %s with text %q", tags, texts)
	}
	return nil
}

// clickText clicks the first visible element among tags whose text contains
// one of texts. CSS cannot match on text, so this runs in the page.
func (p *OutfitteryHomePage) clickText(ctx context.Context, tags string, texts ...string) (bool, error) {
	sel, err := json.Marshal(tags)
	if err != nil {
		return false, err
	}
	want, err := json.Marshal(texts)
	if err != nil {
		return false, err
	}
	script := fmt.Sprintf(`(() => {
	const texts = %s;
	for (const el of document.querySelectorAll(%s)) {
		if (el.offsetParent === null) continue;
		const text = el.textContent.trim();
		if (texts.some(t => text.includes(t))) { el.click(); return true; }
	}
	return false;
})()`, want, sel)
	v, err := p.Page.Evaluate(ctx, script)
	if err != nil {
		return false, err
	}
	clicked, _ := v.(bool)
	return clicked, nil
}
