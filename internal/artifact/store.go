// Package artifact persists the per-domain site record.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
	"github.com/JakeFAU/site-analyzer/internal/storage"
)

// Store implements analyzer.ArtifactStore. Each domain key maps to one
// "<domain>.json" object that a new analysis overwrites.
type Store struct {
	blobs storage.BlobStore
}

// New creates a Store.
func New(blobs storage.BlobStore) *Store {
	return &Store{blobs: blobs}
}

// FileName returns the object name for a domain key.
func FileName(domain string) string {
	return domain + ".json"
}

// Save writes record under its domain and returns the object URI.
func (s *Store) Save(ctx context.Context, record analyzer.SiteRecord) (string, error) {
	if err := validDomain(record.Domain); err != nil {
		return "", err
	}
	if record.Links == nil {
		record.Links = []analyzer.Link{}
	}
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode site record %s: %w", record.Domain, err)
	}
	uri, err := s.blobs.PutObject(ctx, FileName(record.Domain), "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("write site record %s: %w: %w", record.Domain, analyzer.ErrIO, err)
	}
	return uri, nil
}

// Load reads the record for domain.
func (s *Store) Load(ctx context.Context, domain string) (analyzer.SiteRecord, error) {
	if err := validDomain(domain); err != nil {
		return analyzer.SiteRecord{}, fmt.Errorf("load site record: %w", analyzer.ErrNotFound)
	}
	b, err := s.blobs.GetObject(ctx, FileName(domain))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return analyzer.SiteRecord{}, fmt.Errorf("site record %s: %w", domain, analyzer.ErrNotFound)
		}
		return analyzer.SiteRecord{}, fmt.Errorf("read site record %s: %w: %w", domain, analyzer.ErrIO, err)
	}
	var record analyzer.SiteRecord
	if err := json.Unmarshal(b, &record); err != nil {
		return analyzer.SiteRecord{}, fmt.Errorf("decode site record %s: %w: %w", domain, analyzer.ErrParse, err)
	}
	return record, nil
}

func validDomain(domain string) error {
	if strings.TrimSpace(domain) == "" || strings.ContainsAny(domain, `/\`) || strings.Contains(domain, "..") {
		return fmt.Errorf("domain %q: %w", domain, analyzer.ErrInput)
	}
	return nil
}
