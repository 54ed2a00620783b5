// Package feed decodes the public photo feed into photo records and fetches
// it over a transport.Fetcher.
package feed

import (
	"bytes"
	"strings"

	"github.com/Jeffail/gabs"
	"github.com/pkg/errors"

	"github.com/IvanBrykalov/thumbcache/photoerr"
)

// Photo is one feed record. ImageURL doubles as the image cache key.
type Photo struct {
	Title    string
	ImageURL string

	Link      string
	Author    string
	Tags      []string
	Published string
}

const jsonpPrefix = "jsonFlickrFeed("

// ParseFeed decodes a feed payload. Both the plain JSON body and the
// jsonFlickrFeed(...) JSONP wrapper are accepted. Items without an image URL
// are skipped. A malformed payload is a *photoerr.DecodeError.
func ParseFeed(raw []byte) ([]Photo, error) {
	body, err := unwrap(raw)
	if err != nil {
		return nil, photoerr.Decode("feed", err)
	}
	doc, err := gabs.ParseJSON(body)
	if err != nil {
		return nil, photoerr.Decode("feed", err)
	}
	if !doc.Exists("items") {
		return nil, photoerr.Decode("feed", errors.New("missing items"))
	}
	items, err := doc.S("items").Children()
	if err != nil {
		return nil, photoerr.Decode("feed", errors.Wrap(err, "items is not an array"))
	}

	photos := make([]Photo, 0, len(items))
	for _, it := range items {
		src := str(it, "media", "m")
		if src == "" {
			continue
		}
		photos = append(photos, Photo{
			Title:     str(it, "title"),
			ImageURL:  src,
			Link:      str(it, "link"),
			Author:    str(it, "author"),
			Tags:      strings.Fields(str(it, "tags")),
			Published: str(it, "published"),
		})
	}
	return photos, nil
}

// unwrap strips the JSONP callback and repairs the \' escapes the feed
// emits inside strings, which strict JSON rejects.
func unwrap(raw []byte) ([]byte, error) {
	body := bytes.TrimSpace(raw)
	if bytes.HasPrefix(body, []byte(jsonpPrefix)) {
		body = bytes.TrimSuffix(bytes.TrimSpace(body[len(jsonpPrefix):]), []byte(";"))
		if !bytes.HasSuffix(body, []byte(")")) {
			return nil, errors.New("unterminated JSONP wrapper")
		}
		body = body[:len(body)-1]
	}
	if len(body) == 0 {
		return nil, errors.New("empty payload")
	}
	return bytes.ReplaceAll(body, []byte(`\'`), []byte(`'`)), nil
}

func str(c *gabs.Container, path ...string) string {
	s, _ := c.Search(path...).Data().(string)
	return s
}
