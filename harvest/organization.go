package harvest

import (
	"context"
	_ "embed"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spatialworks/geocat/catalog"
)

//go:embed org_aliases.yaml
var orgAliasesYAML []byte

var orgAliases map[string]string

func init() {
	if err := yaml.Unmarshal(orgAliasesYAML, &orgAliases); err != nil {
		panic("harvest: bad embedded organization alias table: " + err.Error())
	}
}

// OrgCache caches resolved owning entities keyed by slug. Entries
// never expire; the cache is scoped to whoever constructs it rather
// than to the process.
type OrgCache struct {
	mu      sync.Mutex
	entries map[string]*catalog.Organization
}

// NewOrgCache creates an empty organization cache.
func NewOrgCache() *OrgCache {
	return &OrgCache{entries: make(map[string]*catalog.Organization)}
}

func (c *OrgCache) get(id string) (*catalog.Organization, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	org, ok := c.entries[id]
	return org, ok
}

func (c *OrgCache) put(id string, org *catalog.Organization) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = org
}

// OrgResolver maps free-text publisher titles to canonical owning
// entities, creating them in the catalog when absent.
type OrgResolver struct {
	store  catalog.Store
	cache  *OrgCache
	logger *zap.SugaredLogger
}

// NewOrgResolver creates a resolver backed by the given catalog store
// and cache. A nil cache gets a private one; a nil logger disables
// logging.
func NewOrgResolver(store catalog.Store, cache *OrgCache, logger *zap.SugaredLogger) *OrgResolver {
	if cache == nil {
		cache = NewOrgCache()
	}
	return &OrgResolver{store: store, cache: cache, logger: logger}
}

// Resolve collapses known title variants to their canonical title,
// slugifies it into the entity id, and returns the cached, fetched or
// freshly created owning entity.
func (r *OrgResolver) Resolve(ctx context.Context, title string) (*catalog.Organization, error) {
	if canonical, ok := orgAliases[title]; ok {
		title = canonical
	}

	id := strings.ToLower(catalog.MungeTitleToName(title))
	if org, ok := r.cache.get(id); ok {
		return org, nil
	}

	org, err := r.store.ResolveOrCreateOrg(ctx, id, title)
	if err != nil {
		return nil, err
	}
	if r.logger != nil {
		r.logger.Debugw("Resolved owning entity",
			"org_id", org.ID,
			"title", org.Title,
		)
	}
	r.cache.put(id, org)
	return org, nil
}
