// ABOUTME: Role service resolving roles by document id or slug
// ABOUTME: Deduplicates concurrent lookups and seeds built-in roles on demand
package roles

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/harper/companion/internal/apperr"
	"github.com/harper/companion/internal/logger"
	"github.com/harper/companion/internal/models"
	"github.com/harper/companion/internal/storage"
	"golang.org/x/sync/singleflight"
)

const (
	idLength      = 10
	idAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	idMaxAttempts = 12
)

// Service reads and writes roles in the document store
type Service struct {
	store  storage.Store
	cache  Cache
	log    *logger.Logger
	group  singleflight.Group
	seeded atomic.Bool
	seeds  []RoleInput
	now    func() time.Time
}

// NewService creates a role service with no cache
func NewService(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store: store,
		cache: NopCache{},
		log:   log,
		seeds: SeedRoles,
		now:   time.Now,
	}
}

// SetCache sets the cache used by GetByID
func (s *Service) SetCache(cache Cache) {
	if cache != nil {
		s.cache = cache
	}
}

// SetSeeds replaces the built-in seed roles
func (s *Service) SetSeeds(seeds []RoleInput) {
	s.seeds = seeds
	s.seeded.Store(false)
}

// GetByID resolves a role by document id, falling back to its slug
func (s *Service) GetByID(ctx context.Context, id string, ensureSeed bool) (*models.Role, error) {
	key, ok := storageKey(id)
	if !ok {
		return nil, apperr.Validation("roleId", "role id %q is invalid", id)
	}

	if ensureSeed {
		if err := s.Seed(ctx); err != nil {
			return nil, err
		}
	}

	if role, hit := s.cache.Get(ctx, key); hit {
		return role, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		role, err := s.resolve(ctx, key)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, key, role)
		return role, nil
	})
	if err != nil {
		return nil, err
	}
	role := *v.(*models.Role)
	return &role, nil
}

// Invalidate drops any cached copy of the role
func (s *Service) Invalidate(ctx context.Context, ids ...string) {
	s.cache.Invalidate(ctx, ids...)
}

func (s *Service) resolve(ctx context.Context, id string) (*models.Role, error) {
	doc, err := s.store.Get(ctx, storage.RolePath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load role %s: %w", id, err)
	}
	if doc.Exists {
		return FromDocument(doc.ID, doc.Data), nil
	}

	found, err := s.findBySlug(ctx, id)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, apperr.NotFound("role", id)
	}
	return FromDocument(found.ID, found.Data), nil
}

func (s *Service) findBySlug(ctx context.Context, value string) (*storage.Document, error) {
	slug := Slugify(value)
	if slug == "" {
		return nil, nil
	}
	docs, err := s.store.Query(ctx, storage.Query{
		Collection: storage.RolesCollection,
		Where:      []storage.Filter{{Field: "slug", Op: "==", Value: slug}},
		Limit:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query roles by slug: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

// List returns every stored role, optionally only those with the given visibility status
func (s *Service) List(ctx context.Context, ensureSeed bool, status string) ([]models.Role, error) {
	if ensureSeed {
		if err := s.Seed(ctx); err != nil {
			return nil, err
		}
	}

	docs, err := s.store.Query(ctx, storage.Query{Collection: storage.RolesCollection})
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	roles := make([]models.Role, 0, len(docs))
	for _, doc := range docs {
		role := FromDocument(doc.ID, doc.Data)
		if status != "" && role.Visibility.Status != status {
			continue
		}
		roles = append(roles, *role)
	}
	return roles, nil
}

// Seed writes every seed role whose slug is not stored yet. Runs once per service.
func (s *Service) Seed(ctx context.Context) error {
	if s.seeded.Load() {
		return nil
	}
	_, err, _ := s.group.Do("seed/all", func() (interface{}, error) {
		if s.seeded.Load() {
			return nil, nil
		}
		for _, input := range s.seeds {
			if err := s.seedOne(ctx, input); err != nil {
				return nil, err
			}
		}
		s.seeded.Store(true)
		return nil, nil
	})
	return err
}

func (s *Service) seedOne(ctx context.Context, input RoleInput) error {
	role, err := Sanitize(input)
	if err != nil {
		return fmt.Errorf("invalid seed role %q: %w", input.Slug, err)
	}

	existing, err := s.findBySlug(ctx, role.Slug)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	id := input.ID
	if id == "" {
		if id, err = s.uniqueID(ctx); err != nil {
			return err
		}
	}
	role.ID = id
	now := models.Millis(s.now())
	role.CreatedAt, role.UpdatedAt = &now, &now

	data, err := ToDocument(role)
	if err != nil {
		return err
	}
	data["seed"] = map[string]any{"appliedAt": now, "source": "default"}

	if err := s.store.Set(ctx, storage.RolePath(id), data, false); err != nil {
		return fmt.Errorf("failed to seed role %s: %w", role.Slug, err)
	}
	s.log.Info("seeded role", "role_id", id, "slug", role.Slug)
	return nil
}

// Create validates and stores a new role under a generated id
func (s *Service) Create(ctx context.Context, input RoleInput) (*models.Role, error) {
	role, err := Sanitize(input)
	if err != nil {
		return nil, err
	}

	existing, err := s.findBySlug(ctx, role.Slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Validation("slug", "slug %q is already taken", role.Slug)
	}

	id, err := s.uniqueID(ctx)
	if err != nil {
		return nil, err
	}
	role.ID = id
	now := models.Millis(s.now())
	role.CreatedAt, role.UpdatedAt = &now, &now

	data, err := ToDocument(role)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, storage.RolePath(id), data, false); err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}
	s.log.Info("created role", "role_id", id, "slug", role.Slug)
	return role, nil
}

func (s *Service) uniqueID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < idMaxAttempts; attempt++ {
		candidate, err := randomID()
		if err != nil {
			return "", err
		}
		doc, err := s.store.Get(ctx, storage.RolePath(candidate))
		if err != nil {
			return "", err
		}
		if !doc.Exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique role id after %d attempts", idMaxAttempts)
}

func randomID() (string, error) {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate role id: %w", err)
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf), nil
}

// storageKey trims id and rejects values that cannot be a document id
func storageKey(id string) (string, bool) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" || strings.Contains(trimmed, "/") {
		return "", false
	}
	return trimmed, true
}
