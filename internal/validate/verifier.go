package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/util"
	"github.com/sethvargo/go-retry"
)

const verifyMaxRetries = 2

// Verification is the outcome of checking one source URL
type Verification struct {
	SourceID     string
	URL          string
	StatusCode   int
	IsAccessible bool
	RedirectURL  string
	Error        string
}

// Verifier checks that evidence source URLs are reachable
type Verifier struct {
	httpClient *http.Client
	userAgent  string
	maxWorkers int
	backoff    time.Duration
}

// NewVerifier creates a new URL verifier
func NewVerifier(cfg model.HTTPConfig, maxWorkers int) *Verifier {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}

	return &Verifier{
		httpClient: util.NewHTTPClient(cfg.Timeout, cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy, 3),
		userAgent:  cfg.UserAgent,
		maxWorkers: maxWorkers,
		backoff:    time.Second,
	}
}

// VerifyAll checks every source concurrently and returns results in input order
func (v *Verifier) VerifyAll(ctx context.Context, sources []model.EvidenceSource) []Verification {
	results := make([]Verification, len(sources))
	if len(sources) == 0 {
		return results
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, v.maxWorkers)

	for i, src := range sources {
		wg.Add(1)
		go func(idx int, s model.EvidenceSource) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = Verification{SourceID: s.ID, URL: s.SourceURL, Error: "context cancelled"}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			result := v.Verify(ctx, s.SourceURL)
			result.SourceID = s.ID
			results[idx] = result
		}(i, src)
	}

	wg.Wait()
	return results
}

// Verify checks a single URL, retrying server errors and rate limiting
func (v *Verifier) Verify(ctx context.Context, rawURL string) Verification {
	if strings.TrimSpace(rawURL) == "" {
		return Verification{Error: "no source url"}
	}

	var result Verification
	b := retry.WithMaxRetries(verifyMaxRetries, retry.NewExponential(v.backoff))
	_ = retry.Do(ctx, b, func(ctx context.Context) error {
		result = v.check(ctx, rawURL)
		if isRetryable(result) {
			return retry.RetryableError(fmt.Errorf("status %d: %s", result.StatusCode, result.Error))
		}
		return nil
	})

	return result
}

func (v *Verifier) check(ctx context.Context, rawURL string) Verification {
	result := Verification{URL: rawURL}

	resp, err := v.do(ctx, http.MethodHead, rawURL)
	// Some servers reject HEAD; fall back to GET
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		_ = resp.Body.Close()
		resp, err = v.do(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	result.IsAccessible = resp.StatusCode >= 200 && resp.StatusCode < 400
	if final := resp.Request.URL.String(); final != rawURL {
		result.RedirectURL = final
	}

	return result
}

func (v *Verifier) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", v.userAgent)
	return v.httpClient.Do(req)
}

func isRetryable(result Verification) bool {
	if result.StatusCode >= 500 || result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if result.Error != "" {
		s := strings.ToLower(result.Error)
		return strings.Contains(s, "timeout") ||
			strings.Contains(s, "connection refused") ||
			strings.Contains(s, "connection reset")
	}
	return false
}
