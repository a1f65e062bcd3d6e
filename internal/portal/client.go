package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/dgnsrekt/fleet_routes/internal/config"
)

// Portal is the set of UI capabilities the exporter needs. Layout knowledge
// lives behind it so a portal redesign touches one implementation.
type Portal interface {
	Login(ctx context.Context, creds Credentials) error
	NavigateToHistory(ctx context.Context) error
	ResolveVehicle(ctx context.Context, name string) (Resolution, error)
	TriggerDownload(ctx context.Context, res Resolution, date string) error
}

var _ Portal = (*Client)(nil)

// Timeouts bounds the waits the client performs.
type Timeouts struct {
	Login   time.Duration
	History time.Duration
}

// Client drives the portal through a chromedp tab.
type Client struct {
	tab      context.Context
	profile  *config.PortalProfile
	timeouts Timeouts
}

// NewClient returns a client acting on the chromedp tab context tab.
func NewClient(tab context.Context, profile *config.PortalProfile, timeouts Timeouts) *Client {
	if profile == nil {
		profile = config.DefaultPortalProfile()
	}
	if timeouts.Login <= 0 {
		timeouts.Login = 30 * time.Second
	}
	if timeouts.History <= 0 {
		timeouts.History = 10 * time.Second
	}
	return &Client{tab: tab, profile: profile, timeouts: timeouts}
}

// Login opens the portal root, accepts the cookie interstitial when shown
// and submits the login form when the login page is shown.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	ctx, cancel := c.scope(ctx)
	defer cancel()
	sel := c.profile.Selectors

	var title string
	if err := chromedp.Run(ctx, chromedp.Navigate(c.profile.BaseURL), chromedp.Title(&title)); err != nil {
		return actionErr(ctx, err, "open portal")
	}
	slog.Debug("portal opened", "title", title)

	if title == c.profile.CookieTitle {
		if err := c.requireNode(ctx, sel.CookieAccept, chromedp.ByQuery); err != nil {
			return err
		}
		if err := chromedp.Run(ctx, chromedp.Click(sel.CookieAccept, chromedp.ByQuery)); err != nil {
			return actionErr(ctx, err, "accept cookies")
		}
		// The click only starts a navigation; the interstitial's own body is
		// still ready until the next document replaces it.
		waitCtx, waitCancel := context.WithTimeout(ctx, c.timeouts.Login)
		err := chromedp.Run(waitCtx,
			chromedp.WaitNotPresent(sel.CookieAccept, chromedp.ByQuery),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Title(&title),
		)
		waitCancel()
		if err != nil {
			return waitErr(err, "page after cookie interstitial")
		}
		slog.Info("cookie interstitial accepted", "title", title)
	}

	if strings.Contains(title, c.profile.LoginTitle) {
		for _, field := range []string{sel.AccountField, sel.UsernameField, sel.PasswordField} {
			if err := c.requireNode(ctx, field, chromedp.ByQuery); err != nil {
				return err
			}
		}
		err := chromedp.Run(ctx,
			chromedp.SendKeys(sel.AccountField, creds.Account, chromedp.ByQuery),
			chromedp.SendKeys(sel.UsernameField, creds.Username, chromedp.ByQuery),
			chromedp.SendKeys(sel.PasswordField, creds.Password+kb.Enter, chromedp.ByQuery),
		)
		if err != nil {
			return actionErr(ctx, err, "submit login form")
		}
		slog.Info("logging in", "username", creds.Username)
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, c.timeouts.Login)
	defer waitCancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitReady(sel.TabContainer, chromedp.ByQuery)); err != nil {
		return waitErr(err, "tab container after login")
	}
	return nil
}

// NavigateToHistory opens the history tab, waits for the ping list inside
// the history frame and clicks it.
func (c *Client) NavigateToHistory(ctx context.Context) error {
	ctx, cancel := c.scope(ctx)
	defer cancel()
	sel := c.profile.Selectors

	if err := c.requireNode(ctx, sel.HistoryTabXPath, chromedp.BySearch); err != nil {
		return err
	}
	if err := chromedp.Run(ctx, chromedp.Click(sel.HistoryTabXPath, chromedp.BySearch)); err != nil {
		return actionErr(ctx, err, "open history tab")
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, c.timeouts.History)
	defer waitCancel()
	frame, err := c.frameNode(waitCtx)
	if err != nil {
		return err
	}
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(sel.PingList, chromedp.ByQuery, chromedp.FromNode(frame))); err != nil {
		return waitErr(err, "ping list")
	}
	if err := chromedp.Run(ctx, chromedp.Click(sel.PingList, chromedp.ByQuery, chromedp.FromNode(frame))); err != nil {
		return actionErr(ctx, err, "click ping list")
	}
	return nil
}

// ResolveVehicle selects name in the vehicle dropdown, runs the history
// query and reads back the option value the export handler expects.
func (c *Client) ResolveVehicle(ctx context.Context, name string) (Resolution, error) {
	ctx, cancel := c.scope(ctx)
	defer cancel()
	sel := c.profile.Selectors

	var raw string
	if err := chromedp.Run(ctx, chromedp.Evaluate(jsSelectVehicle(sel.HistoryFrame, sel.VehicleSelect, name), &raw)); err != nil {
		return Resolution{}, actionErr(ctx, err, "select vehicle")
	}
	if err := decodeEnvelope(raw, nil); err != nil {
		return Resolution{}, err
	}

	frame, err := c.frameNode(ctx)
	if err != nil {
		return Resolution{}, err
	}
	if err := chromedp.Run(ctx, chromedp.Click(sel.RunHistory, chromedp.ByQuery, chromedp.FromNode(frame))); err != nil {
		return Resolution{}, actionErr(ctx, err, "run history")
	}

	// The run posts the frame back; wait for the dropdown to return before re-reading it.
	waitCtx, waitCancel := context.WithTimeout(ctx, c.timeouts.History)
	defer waitCancel()
	frame, err = c.frameNode(waitCtx)
	if err != nil {
		return Resolution{}, err
	}
	if err := chromedp.Run(waitCtx, chromedp.WaitReady(sel.VehicleSelect, chromedp.ByQuery, chromedp.FromNode(frame))); err != nil {
		return Resolution{}, waitErr(err, "vehicle dropdown")
	}

	var id string
	if err := chromedp.Run(ctx, chromedp.Evaluate(jsOptionValue(sel.HistoryFrame, sel.VehicleSelect, name), &raw)); err != nil {
		return Resolution{}, actionErr(ctx, err, "read vehicle id")
	}
	if err := decodeEnvelope(raw, &id); err != nil {
		return Resolution{}, err
	}
	if id == "" {
		return Resolution{}, NewError(CodeElementNotFound, fmt.Sprintf("option %q has no value", name), nil)
	}
	return Resolution{DisplayName: name, InternalID: id}, nil
}

// TriggerDownload navigates the tab to the export URL for res on date.
func (c *Client) TriggerDownload(ctx context.Context, res Resolution, date string) error {
	ctx, cancel := c.scope(ctx)
	defer cancel()

	u := ExportURL(c.profile.BaseURL, date, res)
	slog.Debug("requesting export", "vehicle", res.DisplayName, "url", u)
	err := chromedp.Run(ctx, chromedp.Navigate(u))
	// Attachments abort the navigation once the download starts.
	if err != nil && !strings.Contains(err.Error(), "net::ERR_ABORTED") {
		return actionErr(ctx, err, "request export")
	}
	return nil
}

// scope derives a context from the tab that is also canceled with ctx.
// Canceling it never closes the tab.
func (c *Client) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	tctx, cancel := context.WithCancel(c.tab)
	stop := context.AfterFunc(ctx, cancel)
	return tctx, func() {
		stop()
		cancel()
	}
}

// requireNode fails with ELEMENT_NOT_FOUND when sel matches nothing on the
// current page. It does not wait for the element to appear.
func (c *Client) requireNode(ctx context.Context, sel string, by chromedp.QueryOption, opts ...chromedp.QueryOption) error {
	var nodes []*cdp.Node
	opts = append([]chromedp.QueryOption{by}, opts...)
	opts = append(opts, chromedp.AtLeast(0))
	if err := chromedp.Run(ctx, chromedp.Nodes(sel, &nodes, opts...)); err != nil {
		return actionErr(ctx, err, "query "+sel)
	}
	if len(nodes) == 0 {
		return NewError(CodeElementNotFound, "element not found: "+sel, nil)
	}
	return nil
}

// frameNode waits for the history frame and returns its node. An expired
// ctx means the frame never appeared.
func (c *Client) frameNode(ctx context.Context) (*cdp.Node, error) {
	var nodes []*cdp.Node
	err := chromedp.Run(ctx, chromedp.Nodes(c.profile.Selectors.HistoryFrame, &nodes, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, NewError(CodeElementNotFound, "history frame not found", err)
	}
	if err != nil {
		return nil, actionErr(ctx, err, "query history frame")
	}
	if len(nodes) == 0 {
		return nil, NewError(CodeElementNotFound, "history frame not found", nil)
	}
	return nodes[0], nil
}

// actionErr wraps a failed browser action. Cancellation is returned as is.
func actionErr(ctx context.Context, err error, what string) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return NewError(CodeBrowserUnavailable, what, err)
}
