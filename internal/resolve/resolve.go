// Package resolve maps URL paths onto files under the views and public
// roots and lists the files of the public root.
package resolve

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	RootDocument     = "index.html"
	NotFoundDocument = "not-found.html"
)

// Resource is a file on disk, or the not-found document when NotFound is set.
type Resource struct {
	Path     string
	MIME     string
	NotFound bool
}

// Status is 404 for the not-found document, 200 otherwise.
func (r Resource) Status() int {
	if r.NotFound {
		return 404
	}
	return 200
}

type Resolver struct {
	views    string
	public   string
	confined bool
}

type Option func(*Resolver)

// WithoutConfinement joins the URL path onto each root verbatim, letting
// ".." segments escape the roots.
func WithoutConfinement() Option {
	return func(r *Resolver) { r.confined = false }
}

// New returns a resolver that looks in views first, then public.
func New(views, public string, opts ...Option) (*Resolver, error) {
	v, err := filepath.Abs(views)
	if err != nil {
		return nil, err
	}
	p, err := filepath.Abs(public)
	if err != nil {
		return nil, err
	}
	r := &Resolver{views: v, public: p, confined: true}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Resolver) ViewsRoot() string  { return r.views }
func (r *Resolver) PublicRoot() string { return r.public }

// Resolve picks the resource for urlPath: the root document for "/", then
// a regular file under views, then under public, else the not-found document.
func (r *Resolver) Resolve(urlPath string) Resource {
	if urlPath == "/" {
		return file(filepath.Join(r.views, RootDocument))
	}

	for _, root := range []string{r.views, r.public} {
		candidate, ok := r.join(root, urlPath)
		if ok && isRegular(candidate) {
			return file(candidate)
		}
	}

	return r.NotFound()
}

func (r *Resolver) NotFound() Resource {
	res := file(filepath.Join(r.views, NotFoundDocument))
	res.NotFound = true
	return res
}

func (r *Resolver) join(root, urlPath string) (string, bool) {
	if !r.confined {
		return root + urlPath, true
	}

	decoded, err := url.PathUnescape(urlPath)
	if err != nil {
		return "", false
	}
	// Clean on a rooted path drops any ".." that would climb above "/".
	cleaned := path.Clean("/" + decoded)
	if cleaned == "/" {
		return "", false
	}
	joined := filepath.Join(root, filepath.FromSlash(cleaned))
	if !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", false
	}
	return joined, true
}

func file(p string) Resource {
	return Resource{Path: p, MIME: TypeByExtension(p)}
}

func isRegular(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
