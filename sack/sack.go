// Package sack implements the concurrent cache of loaded package sets
// (spec §3/§4.F): a sack is the in-memory package universe (installed
// plus whichever remote repos a filter pulls in) a query runs against.
package sack

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkgkitd/pkgkitd/internal/pkgmetrics"
	"github.com/pkgkitd/pkgkitd/job"
)

// Flag is one member of the sack-build flag set (spec §3:
// "sack_flags ⊆ {Filelists, Updateinfo, Remote, Unavailable}").
type Flag string

const (
	FlagFilelists   Flag = "filelists"
	FlagUpdateinfo  Flag = "updateinfo"
	FlagRemote      Flag = "remote"
	FlagUnavailable Flag = "unavailable"
)

// flagOrder fixes the stable order flags render in a cache key (spec
// §4.F: "a stable alphabetic-or-enum order").
var flagOrder = []Flag{FlagFilelists, FlagUpdateinfo, FlagRemote, FlagUnavailable}

func bitOf(f Flag) uint {
	for i, v := range flagOrder {
		if v == f {
			return uint(i)
		}
	}
	return 0
}

// FlagSet is a bitfield over Flag.
type FlagSet uint8

func (s FlagSet) Contains(f Flag) bool { return s&(1<<bitOf(f)) != 0 }
func (s FlagSet) Add(f Flag) FlagSet   { return s | (1 << bitOf(f)) }

// CacheKey renders the canonical sack cache key: "release_ver[<r>]::
// <flag1|flag2|…>", with "none" standing in for an empty flag set
// (spec §4.F).
func CacheKey(releaseVer string, flags FlagSet) string {
	var names []string
	for _, f := range flagOrder {
		if flags.Contains(f) {
			names = append(names, string(f))
		}
	}
	flagsText := "none"
	if len(names) > 0 {
		flagsText = strings.Join(names, "|")
	}
	return fmt.Sprintf("release_ver[%s]::%s", releaseVer, flagsText)
}

// Sack is a loaded package universe: the installed set plus whatever
// remote repo contents the requested flags pulled in.
type Sack struct {
	ReleaseVer string
	Flags      FlagSet
	Installed  []job.Package
	Remote     []job.Package
}

// Builder loads a fresh Sack for the given release/flags. Building
// runs outside the Cache's mutex (spec §4.F/§5).
type Builder func(ctx context.Context, releaseVer string, flags FlagSet) (*Sack, error)

type item struct {
	sack    *Sack
	valid   bool
	builtAt time.Time
}

// Cache is the mutex-guarded sack cache a Backend exclusively owns.
type Cache struct {
	mu      sync.Mutex
	items   map[string]*item
	build   Builder
	onDebug func(reason string)
}

// NewCache creates a Cache that uses build to load a fresh sack on a
// miss or invalidation.
func NewCache(build Builder) *Cache {
	return &Cache{items: make(map[string]*item), build: build}
}

// OnDebug registers a callback for Invalidate's debug record.
func (c *Cache) OnDebug(fn func(reason string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDebug = fn
}

// GetOrBuild returns a cached sack if one exists, is valid, useCache
// is true, and j's cache_age doesn't force a rebuild; otherwise it
// builds (outside the lock) and atomically inserts a fresh one (spec
// §4.F).
func (c *Cache) GetOrBuild(ctx context.Context, j *job.Job, releaseVer string, flags FlagSet, useCache bool) (*Sack, error) {
	key := CacheKey(releaseVer, flags)

	c.mu.Lock()
	it, ok := c.items[key]
	c.mu.Unlock()

	if ok && it.valid && useCache && c.withinCacheAge(j, it.builtAt) {
		pkgmetrics.SackCacheLookups.WithLabelValues("hit").Inc()
		return it.sack, nil
	}
	pkgmetrics.SackCacheLookups.WithLabelValues("miss").Inc()

	sack, err := c.build(ctx, releaseVer, flags)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.items[key] = &item{sack: sack, valid: true, builtAt: time.Now()}
	c.mu.Unlock()
	return sack, nil
}

func (c *Cache) withinCacheAge(j *job.Job, builtAt time.Time) bool {
	if j == nil || j.CacheAge == 0 {
		return true
	}
	if j.CacheAge == job.CacheAgeNoCache {
		return false
	}
	return uint64(time.Since(builtAt).Seconds()) <= j.CacheAge
}

// Invalidate marks every cached item invalid without evicting it, and
// emits a debug record carrying reason (spec §4.F).
func (c *Cache) Invalidate(reason string) {
	c.mu.Lock()
	for _, it := range c.items {
		it.valid = false
	}
	onDebug := c.onDebug
	c.mu.Unlock()

	if onDebug != nil {
		onDebug(reason)
	}
}
