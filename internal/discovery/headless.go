package discovery

import (
	"context"

	"github.com/brstats/statshub/internal/browser"
)

const anchorListJS = `Array.from(document.querySelectorAll("a[href]")).map(a => a.href)`

// BrowserFallback adapts a headless engine into a listing fallback. Each call
// opens a throwaway session so the listing page gets the same challenge
// handling and proxy rotation as report pages.
func BrowserFallback(engine *browser.Engine) HeadlessFallback {
	return func(ctx context.Context, url string) ([]string, error) {
		session, err := engine.OpenSession(ctx)
		if err != nil {
			return nil, err
		}
		defer session.Close()

		if err := session.Navigate(ctx, url); err != nil {
			return nil, err
		}
		var hrefs []string
		if err := session.Evaluate(ctx, anchorListJS, &hrefs); err != nil {
			return nil, err
		}
		var urls []string
		for _, href := range hrefs {
			if matchPathRe.MatchString(href) {
				urls = append(urls, href)
			}
		}
		return urls, nil
	}
}
