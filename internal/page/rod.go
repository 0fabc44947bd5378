package page

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"linkboard/internal/domain"
)

// RodOptions locate the management page in a browser.
type RodOptions struct {
	// ControlURL is the DevTools websocket of a running browser. When empty a
	// visible browser is launched and PageURL is opened in it.
	ControlURL string
	// PageURL is opened in a freshly launched browser.
	PageURL string
	// URLMatch picks the first existing tab whose URL contains it.
	URLMatch string

	// Headless and NoSandbox only apply to a launched browser.
	Headless  bool
	NoSandbox bool
}

// Rod is a Document backed by a live browser tab.
type Rod struct {
	browser  *rod.Browser
	page     *rod.Page
	launched bool
	log      logrus.FieldLogger
}

// Globals are the page-level variables the management page keeps.
type Globals struct {
	ManagementSiteID string              `json:"management_site_id"`
	CurrentPlatform  string              `json:"current_platform"`
	CurrentUser      string              `json:"current_user"`
	Filters          *domain.FilterState `json:"filters"`
}

// ConnectRod attaches to the management page.
func ConnectRod(ctx context.Context, opts RodOptions, logger logrus.FieldLogger) (*Rod, error) {
	log := logger.WithField("component", "rod_page")

	controlURL := opts.ControlURL
	launched := false
	if controlURL == "" {
		path, exists := launcher.LookPath()
		if !exists {
			log.Error("Cannot find browser executable for rod")
			return nil, errors.New("rod browser dependency not found")
		}
		u, err := launcher.New().Bin(path).Headless(opts.Headless).NoSandbox(opts.NoSandbox).Launch()
		if err != nil {
			log.WithError(err).Error("Failed to launch browser")
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
		launched = true
	}

	// The connection outlives ctx so Close still works after an interrupt.
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		log.WithError(err).Error("Failed to connect to rod browser")
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	var p *rod.Page
	var err error
	if launched {
		p, err = openPage(browser.Context(ctx), opts.PageURL)
		if err != nil {
			_ = browser.Close()
			return nil, err
		}
	} else {
		p, err = findPage(browser.Context(ctx), opts.URLMatch)
		if err != nil {
			return nil, err
		}
	}

	log.Info("Attached to management page")
	return &Rod{browser: browser, page: p, launched: launched, log: log}, nil
}

// Launched reports whether ConnectRod started the browser itself.
func (r *Rod) Launched() bool {
	return r.launched
}

// Close shuts down a launched browser. A browser that was attached to is
// left running.
func (r *Rod) Close() error {
	if !r.launched {
		return nil
	}
	if err := r.browser.Close(); err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	r.log.Info("Closed launched browser")
	return nil
}

func openPage(browser *rod.Browser, pageURL string) (*rod.Page, error) {
	if pageURL == "" {
		return nil, errors.New("page url is required when launching a browser")
	}
	p, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed waiting for page load: %w", err)
	}
	return p, nil
}

func findPage(browser *rod.Browser, match string) (*rod.Page, error) {
	pages, err := browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("failed to list browser pages: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if strings.Contains(info.URL, match) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no open page matches %q", match)
}

func (r *Rod) element(ctx context.Context, id string) (*rod.Element, error) {
	has, el, err := r.page.Context(ctx).Has("#" + id)
	if err != nil {
		return nil, fmt.Errorf("failed to query #%s: %w", id, err)
	}
	if !has {
		return nil, fmt.Errorf("%w: #%s", ErrElementNotFound, id)
	}
	return el, nil
}

func (r *Rod) Value(ctx context.Context, id string) (string, error) {
	el, err := r.element(ctx, id)
	if err != nil {
		return "", err
	}
	v, err := el.Property("value")
	if err != nil {
		return "", fmt.Errorf("failed to read #%s value: %w", id, err)
	}
	return v.Str(), nil
}

func (r *Rod) SetValue(ctx context.Context, id, value string) error {
	el, err := r.element(ctx, id)
	if err != nil {
		return err
	}
	if _, err := el.Eval(`(v) => { this.value = v }`, value); err != nil {
		return fmt.Errorf("failed to set #%s value: %w", id, err)
	}
	return nil
}

func (r *Rod) Checked(ctx context.Context, id string) (bool, error) {
	el, err := r.element(ctx, id)
	if err != nil {
		return false, err
	}
	v, err := el.Property("checked")
	if err != nil {
		return false, fmt.Errorf("failed to read #%s checked: %w", id, err)
	}
	return v.Bool(), nil
}

func (r *Rod) SetChecked(ctx context.Context, id string, checked bool) error {
	el, err := r.element(ctx, id)
	if err != nil {
		return err
	}
	if _, err := el.Eval(`(v) => { this.checked = v }`, checked); err != nil {
		return fmt.Errorf("failed to set #%s checked: %w", id, err)
	}
	return nil
}

func (r *Rod) Count(ctx context.Context, selector string) (int, error) {
	els, err := r.page.Context(ctx).Elements(selector)
	if err != nil {
		return 0, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	return len(els), nil
}

// DisplayLinks hands links to the page's own displayLinks function.
func (r *Rod) DisplayLinks(ctx context.Context, links []domain.Link) error {
	if _, err := r.page.Context(ctx).Eval(`(data) => displayLinks(data)`, links); err != nil {
		return fmt.Errorf("displayLinks failed: %w", err)
	}
	return nil
}

// Alert shows message with window.alert. The alert is deferred so the
// evaluation returns before the dialog blocks the page.
func (r *Rod) Alert(ctx context.Context, message string) error {
	if _, err := r.page.Context(ctx).Eval(`(m) => { setTimeout(() => alert(m), 0) }`, message); err != nil {
		return fmt.Errorf("alert failed: %w", err)
	}
	return nil
}

// SyncFilters writes filters back into the page's currentFilters, if the
// page defines it.
func (r *Rod) SyncFilters(ctx context.Context, filters domain.FilterState) error {
	_, err := r.page.Context(ctx).Eval(syncFiltersJS, filters)
	if err != nil {
		return fmt.Errorf("failed to sync currentFilters: %w", err)
	}
	return nil
}

// Globals reads managementSiteId, currentPlatform, currentUser and
// currentFilters from the page.
func (r *Rod) Globals(ctx context.Context) (Globals, error) {
	res, err := r.page.Context(ctx).Eval(globalsJS)
	if err != nil {
		return Globals{}, fmt.Errorf("failed to read page globals: %w", err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return Globals{}, fmt.Errorf("marshal page globals: %w", err)
	}
	return decodeGlobals(raw)
}

func decodeGlobals(raw []byte) (Globals, error) {
	var g Globals
	if err := json.Unmarshal(raw, &g); err != nil {
		return Globals{}, fmt.Errorf("decode page globals: %w", err)
	}
	return g, nil
}

const globalsJS = `() => {
	const str = (v) => (v === undefined || v === null) ? '' : String(v);
	return {
		management_site_id: typeof managementSiteId !== 'undefined' ? str(managementSiteId) : '',
		current_platform: typeof currentPlatform !== 'undefined' ? str(currentPlatform) : '',
		current_user: typeof currentUser !== 'undefined' ? str(currentUser) : '',
		filters: typeof currentFilters !== 'undefined' && currentFilters ? currentFilters : null,
	};
}`

const syncFiltersJS = `(f) => {
	if (typeof currentFilters !== 'undefined') {
		currentFilters = f;
	}
}`
