package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/model"
	"go.uber.org/zap"
)

// ErrNoFetcher is returned by FetchURL when URL ingestion is not configured
var ErrNoFetcher = errors.New("ingest: no page fetcher configured")

// FetchURL fetches a page, stores its readable text as a source and
// indexes it. An empty name falls back to the page host.
func (i *Ingester) FetchURL(ctx context.Context, rawURL, name, topic string) (*model.EvidenceSource, error) {
	if i.fetcher == nil {
		return nil, ErrNoFetcher
	}

	result, err := i.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	page, err := extract.ParsePage(result.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	if strings.TrimSpace(page.Text) == "" {
		return nil, fmt.Errorf("page %s has no readable text", rawURL)
	}

	src := &model.EvidenceSource{
		Title:      page.Title,
		Content:    page.Text,
		SourceName: name,
		SourceURL:  result.FinalURL,
		Topic:      topic,
		IsVerified: true,
	}
	if src.Title == "" {
		src.Title = result.Subject
	}
	if src.SourceName == "" {
		src.SourceName = hostName(result.FinalURL)
	}
	normalize(src)
	i.reliability.Apply(src)

	if err := i.store.AddSource(ctx, src); err != nil {
		return nil, err
	}

	if _, err := i.IndexSources(ctx, []model.EvidenceSource{*src}); err != nil {
		i.logger.Warn("fetched source stored but not indexed", zap.String("source_id", src.ID), zap.Error(err))
	}

	return src, nil
}

func hostName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
