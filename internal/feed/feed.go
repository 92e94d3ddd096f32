// Package feed reads candidate listings produced by the discovery step:
// JSON or JSON Lines records, saved listing pages and plain text files.
package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Listing is one raw candidate from a marketplace search.
type Listing struct {
	Text     string `json:"raw_text"`
	HTML     string `json:"html,omitempty"`
	Platform string `json:"platform,omitempty"`
	Keyword  string `json:"keyword,omitempty"`
	URL      string `json:"url,omitempty"`
	// Vendor is the seller name shown on the search result, when known.
	Vendor string `json:"vendor_name,omitempty"`
}

// platformHosts maps marketplace host fragments to platform names.
var platformHosts = []struct {
	fragment string
	platform string
}{
	{"alibaba.", "alibaba"},
	{"made-in-china.", "made-in-china"},
	{"globalsources.", "globalsources"},
	{"aliexpress.", "aliexpress"},
	{"1688.", "1688"},
}

// PlatformFromURL names the marketplace hosting rawURL, or "other".
func PlatformFromURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "other"
	}
	host := strings.ToLower(u.Host)
	for _, p := range platformHosts {
		if strings.Contains(host, p.fragment) {
			return p.platform
		}
	}
	return "other"
}

// normalize fills Text from HTML and Platform from URL when missing.
func (l *Listing) normalize() error {
	if strings.TrimSpace(l.Text) == "" && l.HTML != "" {
		text, err := HTMLText(strings.NewReader(l.HTML))
		if err != nil {
			return err
		}
		l.Text = text
	}
	l.HTML = ""
	if l.Platform == "" && l.URL != "" {
		l.Platform = PlatformFromURL(l.URL)
	}
	l.Platform = strings.ToLower(l.Platform)
	return nil
}

// Decode streams listings from r, which holds either a JSON array or a
// sequence of JSON objects (JSON Lines). Both channels are closed when
// decoding completes.
func Decode(ctx context.Context, r io.Reader) (<-chan Listing, <-chan error) {
	outCh := make(chan Listing, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		br := bufio.NewReader(r)
		first, err := peekNonSpace(br)
		if err != nil {
			if err != io.EOF {
				errCh <- eris.Wrap(err, "feed: read")
			}
			return
		}

		dec := json.NewDecoder(br)
		if first == '[' {
			if _, err := dec.Token(); err != nil {
				errCh <- eris.Wrap(err, "feed: read opening token")
				return
			}
		}

		for n := 1; dec.More(); n++ {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "feed: context cancelled")
				return
			}

			var l Listing
			if err := dec.Decode(&l); err != nil {
				errCh <- eris.Wrapf(err, "feed: decode listing %d", n)
				return
			}
			if err := l.normalize(); err != nil {
				errCh <- eris.Wrapf(err, "feed: listing %d", n)
				return
			}

			select {
			case outCh <- l:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "feed: context cancelled")
				return
			}
		}
	}()

	return outCh, errCh
}

// Collect drains Decode into a slice.
func Collect(ctx context.Context, r io.Reader) ([]Listing, error) {
	outCh, errCh := Decode(ctx, r)
	var out []Listing
	for l := range outCh {
		out = append(out, l)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n', 0xEF, 0xBB, 0xBF:
			if _, err := br.ReadByte(); err != nil {
				return 0, err
			}
		default:
			return b[0], nil
		}
	}
}

// Load reads listings from path. A directory is read entry by entry in name
// order; .json and .jsonl files hold listing records, .html and .htm files
// are saved listing pages and .txt files are raw listing text. Other files
// are skipped. keyword is applied to listings that carry none.
func Load(ctx context.Context, path, keyword string) ([]Listing, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: stat %s", path)
	}

	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, eris.Wrapf(err, "feed: read dir %s", path)
		}
		files = files[:0]
		for _, e := range entries {
			if !e.IsDir() {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		sort.Strings(files)
	}

	var out []Listing
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "feed: context cancelled")
		}
		ls, err := loadFile(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, ls...)
	}

	for i := range out {
		if out[i].Keyword == "" {
			out[i].Keyword = keyword
		}
	}
	return out, nil
}

func loadFile(ctx context.Context, path string) ([]Listing, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json", ".jsonl", ".html", ".htm", ".txt":
	default:
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	switch ext {
	case ".json", ".jsonl":
		ls, err := Collect(ctx, f)
		if err != nil {
			return nil, eris.Wrapf(err, "feed: %s", filepath.Base(path))
		}
		return ls, nil
	case ".html", ".htm":
		page, err := ParsePage(f)
		if err != nil {
			return nil, eris.Wrapf(err, "feed: %s", filepath.Base(path))
		}
		l := Listing{Text: page.Text, URL: page.URL}
		if err := l.normalize(); err != nil {
			return nil, err
		}
		return []Listing{l}, nil
	default:
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, eris.Wrapf(err, "feed: read %s", path)
		}
		return []Listing{{Text: string(data)}}, nil
	}
}
