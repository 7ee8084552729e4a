// Package fakedom is a scripted, in-memory stand-in for the live browser
// page. Selectors are resolved with htmlquery against the current markup, so
// locator, builder, executor and capture logic can be exercised without a
// browser.
package fakedom

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/polzovatel/navshot/internal/snapshot"
)

// ClickFunc reacts to a resolved click. It runs with the page unlocked and
// may call Show, ShowAfter or Go.
type ClickFunc func(p *Page, target *html.Node)

type pendingState struct {
	after  int
	markup string
}

// Page is a scripted document.
type Page struct {
	mu        sync.Mutex
	url       string
	markup    string
	routes    map[string]string
	pending   []pendingState
	clicks    []string
	navs      []string
	snapshots int
	navErr    map[string]error

	// OnClick is invoked for every click that resolved to an element.
	OnClick ClickFunc
}

// New returns a page showing markup at url. url is also registered as a
// navigation route.
func New(url, markup string) *Page {
	return &Page{
		url:    url,
		markup: markup,
		routes: map[string]string{url: markup},
		navErr: map[string]error{},
	}
}

// Route registers the markup served when navigating to url.
func (p *Page) Route(url, markup string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = markup
}

// FailNavigation makes navigation to url return err.
func (p *Page) FailNavigation(url string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navErr[url] = err
}

// Show replaces the current markup immediately.
func (p *Page) Show(markup string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markup = markup
	p.pending = nil
}

// ShowAfter replaces the current markup once n more snapshots were taken,
// mimicking asynchronous rendering.
func (p *Page) ShowAfter(markup string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, pendingState{after: n, markup: markup})
}

// Go simulates an in-app navigation: the URL changes and markup is shown.
// The URL becomes routable so it can be reloaded later.
func (p *Page) Go(url, markup string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.markup = markup
	p.pending = nil
	if _, ok := p.routes[url]; !ok {
		p.routes[url] = markup
	}
}

// Snapshot parses the current markup.
func (p *Page) Snapshot(ctx context.Context) (*html.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.snapshots++
	kept := p.pending[:0]
	for _, st := range p.pending {
		if st.after <= 0 {
			p.markup = st.markup
			continue
		}
		st.after--
		kept = append(kept, st)
	}
	p.pending = kept
	markup := p.markup
	p.mu.Unlock()
	return snapshot.Parse(markup)
}

// Click resolves selector against the current markup and clicks the first
// match.
func (p *Page) Click(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	markup := p.markup
	p.mu.Unlock()

	doc, err := snapshot.Parse(markup)
	if err != nil {
		return false, err
	}
	nodes, err := snapshot.Query(doc, strings.TrimPrefix(selector, "xpath="))
	if err != nil {
		return false, err
	}
	if len(nodes) == 0 {
		return false, nil
	}
	p.mu.Lock()
	p.clicks = append(p.clicks, selector)
	fn := p.OnClick
	p.mu.Unlock()
	if fn != nil {
		fn(p, nodes[0])
	}
	return true, nil
}

// Navigate loads the markup routed at url.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navs = append(p.navs, url)
	if err := p.navErr[url]; err != nil {
		return err
	}
	markup, ok := p.routes[url]
	if !ok {
		return fmt.Errorf("fakedom: no route for %s", url)
	}
	p.url = url
	p.markup = markup
	p.pending = nil
	return nil
}

// URL is the current location.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Settle is immediate; asynchronous rendering is modelled by ShowAfter.
func (p *Page) Settle(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Clicks returns every resolved click selector in order.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Navigations returns every navigation target in order, failed ones
// included.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navs...)
}

// Snapshots counts Snapshot calls.
func (p *Page) Snapshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshots
}

// Markup returns the current markup.
func (p *Page) Markup() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.markup
}
