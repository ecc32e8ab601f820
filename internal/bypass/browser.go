package bypass

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ssanime/manga-nexus-hub/internal/fetcher"
)

// renderWithChrome loads targetURL in a throwaway headless Chrome and returns
// the rendered document.
func renderWithChrome(ctx context.Context, targetURL string, waitForSelector string, timeout time.Duration) (string, error) {
	userAgents := fetcher.UserAgents()
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgents[rand.IntN(len(userAgents))]),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-gpu", true),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	tasks := chromedp.Tasks{
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body"),
	}
	if selector := strings.TrimSpace(waitForSelector); selector != "" {
		tasks = append(tasks, chromedp.WaitVisible(selector))
	}

	var html string
	tasks = append(tasks, chromedp.OuterHTML("html", &html))
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return "", fmt.Errorf("headless browser: %w", err)
	}
	return html, nil
}
