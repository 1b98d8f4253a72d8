// Package bizneo performs the actual clock-in against a Bizneo HCM
// instance by replaying a user's browser session.
//
// The flow mirrors what the web UI does: fetch the home page and the
// chronometer fragment to harvest both CSRF tokens, then POST the chrono
// form with the htmx headers the server expects.
package bizneo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"clockbot/internal/store"
	logx "clockbot/pkg/logx"
)

type Client struct {
	http *http.Client
	log  logx.Logger

	// baseURL overrides the https://{domain} scheme/host, for tests.
	baseURL string
}

func NewClient(timeout time.Duration, log logx.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

func (c *Client) origin(sess store.Session) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return "https://" + sess.Cookies.Domain
}

func cookieHeader(sess store.Session) string {
	return fmt.Sprintf("_hcmex_key=%s; device_id=%s; geo=%s",
		sess.Cookies.Hcmex, sess.Cookies.DeviceID, sess.Cookies.Geo)
}

// ClockIn replays the chrono form submission for sess. The returned error
// text is what gets recorded verbatim on a failed task.
func (c *Client) ClockIn(ctx context.Context, sess store.Session) error {
	metaCSRF, inputCSRF, err := c.csrfTokens(ctx, sess)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("_csrf_token", inputCSRF)
	form.Set("location_id", "")
	form.Set("user_id", strconv.FormatInt(sess.UserID, 10))
	form.Set("shift_id", "")

	origin := c.origin(sess)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, origin+"/chrono", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Cookie", cookieHeader(sess))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-CSRF-Token", metaCSRF)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Target", "chronometer-wrapper")
	req.Header.Set("HX-Trigger", "chrono-form-hub_chrono")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", origin+"/")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	c.log.Debug("clock-in accepted", logx.Int64("user_id", sess.UserID), logx.Int("status", resp.StatusCode))
	return nil
}

// csrfTokens harvests the two CSRF tokens the chrono form needs: the meta
// tag on the home page and the hidden input on the chronometer fragment.
func (c *Client) csrfTokens(ctx context.Context, sess store.Session) (metaCSRF, inputCSRF string, err error) {
	origin := c.origin(sess)

	metaCSRF, err = c.selectAttr(ctx, sess, origin+"/", `meta[name="csrf"]`, "content")
	if err != nil {
		return "", "", err
	}

	chronoURL := fmt.Sprintf("%s/chrono/%d/hub_chrono", origin, sess.UserID)
	inputCSRF, err = c.selectAttr(ctx, sess, chronoURL, `input[name="_csrf_token"]`, "value")
	if err != nil {
		return "", "", err
	}
	return metaCSRF, inputCSRF, nil
}

func (c *Client) selectAttr(ctx context.Context, sess store.Session, pageURL, selector, attr string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Cookie", cookieHeader(sess))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}
	v, _ := doc.Find(selector).First().Attr(attr)
	return v, nil
}
