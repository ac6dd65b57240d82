// Package files provides a YAML-file-backed listings store. It keeps
// the working set in memory and snapshots it to a directory tree:
// one listings file per provider, plus candidate and error logs.
package files

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/openlistings/mlsync/pkg/constants"
	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
)

// Compile-time interface checks to ensure proper implementation.
var (
	_ listings.Store       = (*Store)(nil)
	_ listings.Persistable = (*Store)(nil)
)

const (
	providersDir   = "providers"
	listingsFile   = "listings.yaml"
	candidatesFile = "candidates.yaml"
	errorsFile     = "errors.yaml"
)

// Store is a listings.Store persisted as YAML under a base directory:
//
//	<path>/providers/<provider>/listings.yaml
//	<path>/candidates.yaml
//	<path>/errors.yaml
//
// Reads and writes go through an in-memory working set; Save writes
// the snapshot back to disk.
type Store struct {
	*listings.Memory
	path     string
	readOnly bool
}

// Option is a function that configures a files Store.
type Option func(*config) error

// WithAutoLoad controls whether New loads existing snapshots from disk.
func WithAutoLoad(enabled bool) Option {
	return func(cfg *config) error {
		cfg.autoLoad = enabled
		return nil
	}
}

// WithNoAutoLoad configures the Store to start empty.
func WithNoAutoLoad() Option {
	return WithAutoLoad(false)
}

// WithReadOnly refuses mutations and saves, keeping the snapshot as
// loaded.
func WithReadOnly(readOnly bool) Option {
	return func(cfg *config) error {
		cfg.readOnly = readOnly
		return nil
	}
}

type config struct {
	autoLoad bool
	readOnly bool
}

// New creates a file-backed store rooted at path. By default existing
// snapshots are loaded; a path with no snapshot yields an empty store.
func New(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.NewConfigError("files store", "path is required", nil)
	}

	cfg := &config{autoLoad: true}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, errors.NewConfigError("files store", "applying option", err)
		}
	}

	s := &Store{
		Memory:   listings.NewMemory(),
		path:     path,
		readOnly: cfg.readOnly,
	}

	if cfg.autoLoad {
		if err := s.Load(context.Background()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Path returns the base directory the store persists to.
func (s *Store) Path() string { return s.path }

// Upsert inserts or replaces a record in the working set.
func (s *Store) Upsert(ctx context.Context, property listings.Property) (bool, error) {
	if s.readOnly {
		return false, errors.NewConfigError("files store", "store is read-only", nil)
	}
	return s.Memory.Upsert(ctx, property)
}

// Delete removes a record from the working set.
func (s *Store) Delete(ctx context.Context, providerID listings.ProviderID, mlsID string) error {
	if s.readOnly {
		return errors.NewConfigError("files store", "store is read-only", nil)
	}
	return s.Memory.Delete(ctx, providerID, mlsID)
}

// SaveCandidate files a duplicate candidate in the working set.
func (s *Store) SaveCandidate(ctx context.Context, candidate listings.DuplicateCandidate) error {
	if s.readOnly {
		return errors.NewConfigError("files store", "store is read-only", nil)
	}
	return s.Memory.SaveCandidate(ctx, candidate)
}

// ResolveCandidate marks a candidate resolved in the working set.
func (s *Store) ResolveCandidate(ctx context.Context, id string, action listings.ResolveAction, merged *listings.Property) error {
	if s.readOnly {
		return errors.NewConfigError("files store", "store is read-only", nil)
	}
	return s.Memory.ResolveCandidate(ctx, id, action, merged)
}

// AppendError files a failure in the working set's audit log.
func (s *Store) AppendError(ctx context.Context, syncErr listings.SyncError) error {
	if s.readOnly {
		return errors.NewConfigError("files store", "store is read-only", nil)
	}
	return s.Memory.AppendError(ctx, syncErr)
}

// listingsDoc is the on-disk shape of one provider's snapshot.
type listingsDoc struct {
	Provider listings.ProviderID `yaml:"provider"`
	Listings []listings.Property `yaml:"listings"`
}

type candidatesDoc struct {
	Candidates []listings.DuplicateCandidate `yaml:"candidates"`
}

type errorsDoc struct {
	Errors []listings.SyncError `yaml:"errors"`
}

// Load replaces the working set with the snapshot on disk. A missing
// directory or file loads as empty.
func (s *Store) Load(ctx context.Context) error {
	mem := listings.NewMemory()

	providersPath := filepath.Join(s.path, providersDir)
	entries, err := os.ReadDir(providersPath)
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.WrapIO("read", providersPath, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		file := filepath.Join(providersPath, entry.Name(), listingsFile)
		var doc listingsDoc
		ok, err := readYAML(file, &doc)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		for i := range doc.Listings {
			if _, err := mem.Upsert(ctx, doc.Listings[i]); err != nil {
				return errors.WrapParse("yaml", file, err)
			}
		}
	}

	var cands candidatesDoc
	if _, err := readYAML(filepath.Join(s.path, candidatesFile), &cands); err != nil {
		return err
	}
	for _, c := range cands.Candidates {
		if err := mem.RestoreCandidate(ctx, c); err != nil {
			return errors.WrapParse("yaml", candidatesFile, err)
		}
	}

	var errs errorsDoc
	if _, err := readYAML(filepath.Join(s.path, errorsFile), &errs); err != nil {
		return err
	}
	for _, e := range errs.Errors {
		if err := mem.AppendError(ctx, e); err != nil {
			return err
		}
	}

	s.Memory = mem
	return nil
}

// Save writes the working set back to the base directory, one listings
// file per provider plus the candidate and error logs.
func (s *Store) Save(ctx context.Context) error {
	if s.readOnly {
		return errors.NewConfigError("files store", "store is read-only", nil)
	}

	all, err := s.List(ctx, listings.Filter{})
	if err != nil {
		return err
	}

	byProvider := make(map[listings.ProviderID][]listings.Property)
	for _, p := range all {
		byProvider[p.ProviderID] = append(byProvider[p.ProviderID], p)
	}

	providerIDs := make([]listings.ProviderID, 0, len(byProvider))
	for id := range byProvider {
		providerIDs = append(providerIDs, id)
	}
	sort.Slice(providerIDs, func(i, j int) bool { return providerIDs[i] < providerIDs[j] })

	for _, id := range providerIDs {
		doc := listingsDoc{Provider: id, Listings: byProvider[id]}
		path := filepath.Join(providersDir, string(id), listingsFile)
		if err := s.writeYAML(path, doc); err != nil {
			return err
		}
	}

	candidates, err := s.Candidates(ctx, true)
	if err != nil {
		return err
	}
	if len(candidates) > 0 {
		if err := s.writeYAML(candidatesFile, candidatesDoc{Candidates: candidates}); err != nil {
			return err
		}
	}

	recent, err := s.RecentErrors(ctx, 0)
	if err != nil {
		return err
	}
	if len(recent) > 0 {
		// RecentErrors is newest-first; the log reads oldest-first.
		for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
			recent[i], recent[j] = recent[j], recent[i]
		}
		if err := s.writeYAML(errorsFile, errorsDoc{Errors: recent}); err != nil {
			return err
		}
	}

	return nil
}

// readYAML unmarshals one snapshot file into out, reporting whether
// the file existed.
func readYAML(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, errors.WrapIO("read", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return false, errors.WrapParse("yaml", path, err)
	}
	return true, nil
}

// writeYAML marshals v and writes it under the base directory,
// creating parent directories as needed.
func (s *Store) writeYAML(relPath string, v any) error {
	data, err := yaml.MarshalWithOptions(v,
		yaml.Indent(2),
		yaml.IndentSequence(false),
	)
	if err != nil {
		return errors.WrapParse("yaml", relPath, err)
	}

	fullPath := filepath.Join(s.path, relPath)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return errors.WrapIO("create", dir, err)
	}
	if err := os.WriteFile(fullPath, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", fullPath, err)
	}
	return nil
}
