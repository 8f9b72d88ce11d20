package services

import (
	"GuardianAI/models"
	"GuardianAI/repositories"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

const playStoreTitleSuffix = " - Apps on Google Play"

// AppMetadata is what an external catalog knows about a package.
type AppMetadata struct {
	Name    string
	IconURL string
}

// CatalogFetcher looks up display metadata for a package/domain.
type CatalogFetcher interface {
	Fetch(ctx context.Context, domain string) (AppMetadata, error)
}

// CatalogService resolves app domains to App rows, creating them on first sighting.
type CatalogService struct {
	AppRepo repositories.AppRepository
	Fetcher CatalogFetcher

	cache map[string]models.App
	mutex sync.RWMutex
}

func NewCatalogService(appRepo repositories.AppRepository, fetcher CatalogFetcher) *CatalogService {
	return &CatalogService{
		AppRepo: appRepo,
		Fetcher: fetcher,
		cache:   make(map[string]models.App),
	}
}

// GetOrCreate always yields an App for the domain. Catalog failures fall back
// to a derived name and an empty icon; only storage failures are returned.
func (s *CatalogService) GetOrCreate(ctx context.Context, domain string) (models.App, error) {
	return s.getOrCreate(ctx, ctx, domain)
}

// getOrCreate bounds the external lookup by lookupCtx; storage uses ctx.
func (s *CatalogService) getOrCreate(ctx, lookupCtx context.Context, domain string) (models.App, error) {
	s.mutex.RLock()
	if cached, exists := s.cache[domain]; exists {
		s.mutex.RUnlock()
		return cached, nil
	}
	s.mutex.RUnlock()

	app, err := s.AppRepo.FindByDomain(ctx, domain)
	if err == nil {
		s.remember(app)
		return app, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.App{}, storageError("find app", err)
	}

	candidate := models.App{Domain: domain}
	meta, err := s.fetch(lookupCtx, domain)
	if err != nil {
		log.Printf("[Catalog] lookup failed for %s, creating basic entry: %v", domain, err)
		candidate.AppName = FallbackAppName(domain)
	} else {
		candidate.AppName = meta.Name
		candidate.IconURL = meta.IconURL
		log.Printf("[Catalog] created app entry for %s: %s", domain, meta.Name)
	}

	app, err = s.AppRepo.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return models.App{}, storageError("create app", err)
	}
	s.remember(app)
	return app, nil
}

func (s *CatalogService) fetch(ctx context.Context, domain string) (meta AppMetadata, err error) {
	if s.Fetcher == nil {
		return AppMetadata{}, fmt.Errorf("%w: no catalog configured", ErrCatalogLookup)
	}
	if ctx.Err() != nil {
		return AppMetadata{}, fmt.Errorf("%w: %v", ErrCatalogLookup, ctx.Err())
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCatalogLookup, r)
		}
	}()
	meta, err = s.Fetcher.Fetch(ctx, domain)
	if err != nil {
		return AppMetadata{}, err
	}
	if strings.TrimSpace(meta.Name) == "" {
		return AppMetadata{}, fmt.Errorf("%w: empty name for %s", ErrCatalogLookup, domain)
	}
	return meta, nil
}

// Forget drops a cached entry so the next lookup re-reads the row (blocked_count changes).
func (s *CatalogService) Forget(domain string) {
	s.mutex.Lock()
	delete(s.cache, domain)
	s.mutex.Unlock()
}

func (s *CatalogService) remember(app models.App) {
	s.mutex.Lock()
	s.cache[app.Domain] = app
	s.mutex.Unlock()
}

// FallbackAppName derives a display name from the last dot segment,
// e.g. "com.whatsapp" -> "Whatsapp".
func FallbackAppName(domain string) string {
	segments := strings.Split(strings.TrimSpace(domain), ".")
	for i := len(segments) - 1; i >= 0; i-- {
		if seg := strings.TrimSpace(segments[i]); seg != "" {
			return cases.Title(language.English).String(seg)
		}
	}
	return "Unknown"
}

// PlayStoreFetcher scrapes the public detail page of an Android package.
type PlayStoreFetcher struct {
	BaseURL string
	Lang    string
	Client  *http.Client
}

func NewPlayStoreFetcher(baseURL string, timeout time.Duration) *PlayStoreFetcher {
	return &PlayStoreFetcher{
		BaseURL: baseURL,
		Lang:    "en",
		Client:  &http.Client{Timeout: timeout},
	}
}

func (f *PlayStoreFetcher) Fetch(ctx context.Context, domain string) (AppMetadata, error) {
	endpoint, err := url.Parse(f.BaseURL)
	if err != nil {
		return AppMetadata{}, fmt.Errorf("%w: %v", ErrCatalogLookup, err)
	}
	q := endpoint.Query()
	q.Set("id", domain)
	q.Set("hl", f.Lang)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return AppMetadata{}, fmt.Errorf("%w: %v", ErrCatalogLookup, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return AppMetadata{}, fmt.Errorf("%w: %v", ErrCatalogLookup, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return AppMetadata{}, fmt.Errorf("%w: unknown package %s", ErrCatalogLookup, domain)
	}
	if resp.StatusCode != http.StatusOK {
		return AppMetadata{}, fmt.Errorf("%w: catalog returned %d", ErrCatalogLookup, resp.StatusCode)
	}

	return parseCatalogPage(io.LimitReader(resp.Body, 4<<20))
}

// parseCatalogPage reads og:title / og:image, falling back to <title>.
func parseCatalogPage(r io.Reader) (AppMetadata, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return AppMetadata{}, fmt.Errorf("%w: %v", ErrCatalogLookup, err)
	}

	var meta AppMetadata
	var title string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				property := attr(n, "property")
				switch property {
				case "og:title":
					meta.Name = attr(n, "content")
				case "og:image":
					meta.IconURL = attr(n, "content")
				}
			case "title":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = n.FirstChild.Data
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if meta.Name == "" {
		meta.Name = title
	}
	meta.Name = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(meta.Name), playStoreTitleSuffix))
	if meta.Name == "" {
		return AppMetadata{}, fmt.Errorf("%w: malformed catalog page", ErrCatalogLookup)
	}
	return meta, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
