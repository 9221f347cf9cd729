// Package templates holds the HTML views of the web server as templ
// components. Edit pages.templ and run `templ generate`; pages_templ.go is
// generated.
package templates

// IndexData feeds the upload page.
type IndexData struct {
	DefaultLanguage string
	Fields          []string
	HoldingsTag     string

	// Error, when set, is shown above the form.
	Error *Alert
}

// Alert is a user-facing error message.
type Alert struct {
	Message string
	Action  string
	Code    string
}
