// Package fixtures holds the test data shared by scripted suites and Go
// tests: accounts, form input, search queries and device viewports.
package fixtures

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

type User struct {
	Email    string
	Password string
	Name     string
}

// Credentials are login inputs that must be rejected with ExpectedError.
type Credentials struct {
	Email         string
	Password      string
	ExpectedError string
}

type ContactForm struct {
	Name    string
	Email   string
	Subject string
	Message string
}

var Users = []User{
	{Email: "testuser1@example.com", Password: "ValidPass123!", Name: "Test User One"},
	{Email: "testuser2@example.com", Password: "ValidPass456!", Name: "Test User Two"},
}

var InvalidCredentials = []Credentials{
	{Email: "invalid@example.com", Password: "wrongpassword", ExpectedError: "Invalid credentials"},
	{Email: "notanemail", Password: "password123", ExpectedError: "Invalid email format"},
	{Email: "", Password: "", ExpectedError: "Email is required"},
}

var URLs = map[string]string{
	"login":     "/login",
	"signup":    "/signup",
	"dashboard": "/dashboard",
	"profile":   "/profile",
	"settings":  "/settings",
}

var Contact = ContactForm{
	Name:    "John Doe",
	Email:   "john.doe@example.com",
	Subject: "Test Inquiry",
	Message: "This is a test message for automation testing.",
}

var (
	ValidQueries        = []string{"test", "example", "demo"}
	SpecialCharsQueries = []string{"test@123", "hello#world", "test & trial"}
	LongQuery           = strings.Repeat("a", 200)
)

var Viewports = map[string]driver.Viewport{
	"mobile":  {Width: 375, Height: 667},
	"tablet":  {Width: 768, Height: 1024},
	"desktop": {Width: 1920, Height: 1080},
	"4k":      {Width: 3840, Height: 2160},
}

// TestUser returns the i-th valid user, wrapping around the list.
func TestUser(i int) User {
	return Users[((i%len(Users))+len(Users))%len(Users)]
}

// InvalidCredential returns the i-th rejected login, wrapping around the list.
func InvalidCredential(i int) Credentials {
	n := len(InvalidCredentials)
	return InvalidCredentials[((i%n)+n)%n]
}

// URL returns the path of a named page, "/" when the name is unknown.
func URL(name string) string {
	if u, ok := URLs[name]; ok {
		return u
	}
	return "/"
}

// Viewport returns the viewport of a device. Unknown devices get the desktop
// size.
func Viewport(device string) driver.Viewport {
	if v, ok := LookupViewport(device); ok {
		return v
	}
	return Viewports["desktop"]
}

// LookupViewport is Viewport without the fallback.
func LookupViewport(device string) (driver.Viewport, bool) {
	v, ok := Viewports[strings.ToLower(strings.TrimSpace(device))]
	return v, ok
}

func RandomEmail(domain string) string {
	if domain == "" {
		domain = "test.com"
	}
	local := lo.RandomString(10, append(lo.LowerCaseLettersCharset, lo.NumbersCharset...))
	return "test_" + local + "@" + domain
}

func RandomString(n int) string {
	if n <= 0 {
		return ""
	}
	return lo.RandomString(n, lo.AlphanumericCharset)
}

// Timestamp formats t the way artifact names do.
func Timestamp(t time.Time) string {
	return t.Format("20060102_150405")
}
