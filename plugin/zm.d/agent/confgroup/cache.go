// SPDX-License-Identifier: GPL-3.0-or-later

package confgroup

func NewCache() *Cache {
	return &Cache{
		hashes:  make(map[uint64]uint),
		sources: make(map[string]map[uint64]Config),
	}
}

// Cache tracks which job configurations are live across all sources.
// A configuration delivered by several sources is added once and removed
// only after the last of them drops it.
type Cache struct {
	hashes  map[uint64]uint
	sources map[string]map[uint64]Config
}

// Add replaces the cached state of the group's source and returns
// the configurations that became live and the ones that are gone.
func (c *Cache) Add(group *Group) (added, removed []Config) {
	if group == nil {
		return nil, nil
	}

	if len(group.Configs) == 0 {
		return c.addEmpty(group)
	}

	return c.addNotEmpty(group)
}

func (c *Cache) addEmpty(group *Group) (added, removed []Config) {
	set, ok := c.sources[group.Source]
	if !ok {
		return nil, nil
	}

	for hash, cfg := range set {
		c.hashes[hash]--
		if c.hashes[hash] == 0 {
			delete(c.hashes, hash)
			removed = append(removed, cfg)
		}
	}
	delete(c.sources, group.Source)

	return nil, removed
}

func (c *Cache) addNotEmpty(group *Group) (added, removed []Config) {
	set, ok := c.sources[group.Source]
	if !ok {
		set = make(map[uint64]Config)
		c.sources[group.Source] = set
	}

	seen := make(map[uint64]bool)

	for _, cfg := range group.Configs {
		hash := cfg.Hash()
		seen[hash] = true

		if _, ok := set[hash]; ok {
			continue
		}

		set[hash] = cfg
		if c.hashes[hash] == 0 {
			added = append(added, cfg)
		}
		c.hashes[hash]++
	}

	for hash, cfg := range set {
		if seen[hash] {
			continue
		}

		delete(set, hash)
		c.hashes[hash]--
		if c.hashes[hash] == 0 {
			delete(c.hashes, hash)
			removed = append(removed, cfg)
		}
	}

	if len(set) == 0 {
		delete(c.sources, group.Source)
	}

	return added, removed
}
