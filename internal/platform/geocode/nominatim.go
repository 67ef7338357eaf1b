package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

// CountryResolver maps a free-text place to an English country name.
// An empty result with a nil error means the place could not be resolved.
type CountryResolver interface {
	Country(ctx context.Context, place string) (string, error)
}

type Options struct {
	BaseURL           string
	UserAgent         string
	RequestsPerSecond float64
	Timeout           time.Duration
}

type nominatim struct {
	log        *logger.Logger
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewNominatim returns a resolver that does a forward search followed by a
// reverse lookup of the top hit, both rate limited together.
func NewNominatim(log *logger.Logger, opts Options) (CountryResolver, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = "https://nominatim.openstreetmap.org"
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "embers-fuse"
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &nominatim{
		log:        log.With("client", "nominatim"),
		baseURL:    base,
		userAgent:  ua,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

type searchHit struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

type reverseResult struct {
	Address map[string]string `json:"address"`
}

func (n *nominatim) Country(ctx context.Context, place string) (string, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return "", nil
	}

	var hits []searchHit
	q := url.Values{}
	q.Set("q", place)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	q.Set("accept-language", "en")
	if err := n.get(ctx, "/search", q, &hits); err != nil {
		return "", fmt.Errorf("geocode search %q: %w", place, err)
	}
	if len(hits) == 0 {
		return "", nil
	}

	var rev reverseResult
	r := url.Values{}
	r.Set("lat", hits[0].Lat)
	r.Set("lon", hits[0].Lon)
	r.Set("format", "jsonv2")
	r.Set("accept-language", "en")
	if err := n.get(ctx, "/reverse", r, &rev); err != nil {
		return "", fmt.Errorf("geocode reverse %q: %w", place, err)
	}
	return strings.TrimSpace(rev.Address["country"]), nil
}

func (n *nominatim) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("nominatim http %d: %s", resp.StatusCode, string(raw))
	}
	return json.Unmarshal(raw, out)
}
