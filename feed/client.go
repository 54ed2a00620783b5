package feed

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/IvanBrykalov/thumbcache/transport"
)

// DefaultURL is the public photos feed in plain JSON.
const DefaultURL = "https://api.flickr.com/services/feeds/photos_public.gne?format=json&nojsoncallback=1"

// Client fetches and decodes the feed.
type Client struct {
	Fetcher transport.Fetcher
	// URL overrides DefaultURL.
	URL    string
	Logger log.Logger
}

// Fetch returns the current feed, optionally filtered by tags.
// Errors are *photoerr.NetworkError or *photoerr.DecodeError, wrapped.
func (c *Client) Fetch(ctx context.Context, tags ...string) ([]Photo, error) {
	u, err := c.feedURL(tags)
	if err != nil {
		return nil, err
	}
	raw, err := c.Fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, errors.Wrap(err, "fetching feed")
	}
	photos, err := ParseFeed(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parsing feed")
	}
	if c.Logger != nil {
		level.Debug(c.Logger).Log("msg", "feed loaded", "url", u, "photos", len(photos))
	}
	return photos, nil
}

// Photos is Fetch without an error: any error is
// logged and an empty list is returned, so the grid simply shows nothing.
func (c *Client) Photos(ctx context.Context, tags ...string) []Photo {
	photos, err := c.Fetch(ctx, tags...)
	if err != nil {
		if c.Logger != nil {
			level.Warn(c.Logger).Log("msg", "feed unavailable", "err", err)
		}
		return []Photo{}
	}
	return photos
}

func (c *Client) feedURL(tags []string) (string, error) {
	base := c.URL
	if base == "" {
		base = DefaultURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(err, "parsing feed URL %q", base)
	}
	if len(tags) > 0 {
		q := u.Query()
		q.Set("tags", strings.Join(tags, ","))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
