// Package assets manages the mounted game archives and caches their files.
package assets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/tyviewer/internal/model"
	"github.com/Faultbox/tyviewer/pkg/encoding"
	"github.com/Faultbox/tyviewer/pkg/rkv"
)

// ErrSlotEmpty is returned when no archive is mounted in a slot.
var ErrSlotEmpty = errors.New("no archive mounted")

// Slot selects which game's archive to use.
type Slot int

const (
	SlotTY1 Slot = iota
	SlotTY2

	slotCount
)

func (s Slot) String() string {
	switch s {
	case SlotTY1:
		return "ty1"
	case SlotTY2:
		return "ty2"
	default:
		return fmt.Sprintf("Slot(%d)", int(s))
	}
}

// ParseSlot parses "ty1" or "ty2", case-insensitively.
func ParseSlot(s string) (Slot, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ty1", "1":
		return SlotTY1, nil
	case "ty2", "2":
		return SlotTY2, nil
	}
	return 0, errors.Errorf("unknown archive slot %q", s)
}

func (s Slot) valid() bool {
	return s >= 0 && s < slotCount
}

// Manager holds one archive per slot and the active slot.
type Manager struct {
	archives [slotCount]*rkv.Archive
	active   Slot
	cache    *Cache
	log      *zap.Logger
	mu       sync.RWMutex
}

// NewManager creates an empty manager. A nil logger disables logging.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cache: NewCache(DefaultCacheBytes),
		log:   log,
	}
}

// Mount opens the archive at path into slot, replacing any previous one.
func (m *Manager) Mount(slot Slot, path string) error {
	if !slot.valid() {
		return errors.Errorf("invalid slot %d", int(slot))
	}
	archive, err := rkv.Open(path)
	if err != nil {
		return errors.Wrapf(err, "mounting %s archive %s", slot, path)
	}

	m.mu.Lock()
	m.archives[slot] = archive
	m.mu.Unlock()
	m.cache.ClearPrefix(cachePrefix(slot))

	m.log.Info("archive mounted",
		zap.Stringer("slot", slot),
		zap.String("path", path),
		zap.Stringer("version", archive.Version()),
		zap.Int("files", archive.Len()))
	return nil
}

// Archive returns the archive mounted in slot.
func (m *Manager) Archive(slot Slot) (*rkv.Archive, bool) {
	if !slot.valid() {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a := m.archives[slot]
	return a, a != nil
}

// Active returns the active slot.
func (m *Manager) Active() Slot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// SetActive switches the active slot. The slot must have an archive.
func (m *Manager) SetActive(slot Slot) error {
	if _, ok := m.Archive(slot); !ok {
		return errors.Wrapf(ErrSlotEmpty, "activating %s", slot)
	}
	m.mu.Lock()
	m.active = slot
	m.mu.Unlock()
	return nil
}

// Load returns a file from the archive in slot, reading it once.
func (m *Manager) Load(slot Slot, name string) ([]byte, error) {
	key := cachePrefix(slot) + encoding.NormalizeName(name)
	if data, ok := m.cache.Get(key); ok {
		return data, nil
	}

	archive, ok := m.Archive(slot)
	if !ok {
		return nil, errors.Wrapf(ErrSlotEmpty, "loading %s", name)
	}
	data, err := archive.Read(name)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s from %s", name, slot)
	}

	m.cache.Set(key, data)
	return data, nil
}

// ModelList returns the .mdl files in slot, sorted by name.
func (m *Manager) ModelList(slot Slot) []string {
	archive, ok := m.Archive(slot)
	if !ok {
		return nil
	}
	return archive.ListByExtension("mdl")
}

// LoadModel decodes a model from slot. Cancelling ctx stops the decode at
// the next stage boundary.
func (m *Manager) LoadModel(ctx context.Context, slot Slot, name string) (*model.Model, error) {
	if _, ok := m.Archive(slot); !ok {
		return nil, errors.Wrapf(ErrSlotEmpty, "loading model %s", name)
	}
	loader := model.NewLoader(slotSource{m: m, slot: slot}, m.log.Named("loader"))
	mdl, err := loader.LoadContext(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "loading model %s from %s", name, slot)
	}
	return mdl, nil
}

// TextureIn returns the raw .dds bytes for a material from slot.
func (m *Manager) TextureIn(slot Slot, material string) ([]byte, error) {
	if material == "" {
		return nil, errors.New("empty material name")
	}
	return m.Load(slot, material+".dds")
}

// Textures returns a texture source reading from slot, for exporting a
// model together with the textures of the archive it came from.
func (m *Manager) Textures(slot Slot) SlotTextures {
	return SlotTextures{m: m, slot: slot}
}

// SlotTextures resolves material names in one slot.
type SlotTextures struct {
	m    *Manager
	slot Slot
}

// Texture returns the raw .dds bytes for material.
func (t SlotTextures) Texture(material string) ([]byte, error) {
	return t.m.TextureIn(t.slot, material)
}

// CacheStats returns the raw file cache hit and miss counts.
func (m *Manager) CacheStats() (hits, misses int) {
	return m.cache.Stats()
}

// Close unmounts every archive and empties the cache.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.archives {
		m.archives[i] = nil
	}
	m.cache.Clear()
}

func cachePrefix(slot Slot) string {
	return slot.String() + ":"
}

// slotSource exposes one slot as a model.Source backed by the cache.
type slotSource struct {
	m    *Manager
	slot Slot
}

func (s slotSource) Contains(name string) bool {
	archive, ok := s.m.Archive(s.slot)
	return ok && archive.Contains(name)
}

func (s slotSource) Read(name string) ([]byte, error) {
	return s.m.Load(s.slot, name)
}

// DefaultCacheBytes bounds the raw file cache of a Manager.
const DefaultCacheBytes = 64 << 20

const cacheMaxEntries = 1024

// Cache is an in-memory LRU store of file contents with hit statistics.
// It holds at most maxBytes of data; the least recently used files are
// evicted first and a file larger than the whole budget is not kept.
type Cache struct {
	lru      *simplelru.LRU[string, []byte]
	bytes    int64
	maxBytes int64
	mu       sync.Mutex

	// Stats
	hits      int
	misses    int
	evictions int
}

// NewCache creates a cache holding up to maxBytes of data. A non-positive
// limit selects DefaultCacheBytes.
func NewCache(maxBytes int64) *Cache {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}
	c := &Cache{maxBytes: maxBytes}
	// Runs under c.mu: every lru call is made with the lock held.
	lru, err := simplelru.NewLRU[string, []byte](cacheMaxEntries, func(_ string, data []byte) {
		c.bytes -= int64(len(data))
	})
	if err != nil {
		panic(err)
	}
	c.lru = lru
	return c
}

// Get retrieves an item from cache and marks it as recently used.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.lru.Get(key)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache, evicting older items to stay in budget.
func (c *Cache) Set(key string, data []byte) {
	size := int64(len(data))
	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.maxBytes {
		return
	}
	if old, ok := c.lru.Peek(key); ok {
		c.bytes -= int64(len(old))
	}
	if c.lru.Add(key, data) {
		c.evictions++
	}
	c.bytes += size
	for c.bytes > c.maxBytes {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
		c.evictions++
	}
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Bytes returns the total size of the cached items.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// ClearPrefix drops every item whose key starts with prefix.
func (c *Cache) ClearPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.bytes = 0
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Evictions returns how many items were dropped to stay within budget.
func (c *Cache) Evictions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions
}
