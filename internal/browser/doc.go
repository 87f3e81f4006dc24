// Package browser provides analyzer.Session implementations. The Chrome
// backend drives a real headless browser via chromedp; the HTTP backend
// fetches pages with colly and is used where no browser is installed. Both
// hand the loaded document to ExtractPageData, which classifies links the
// same way regardless of backend.
package browser
