// Package nameinfo implements the context-scoped "NameDB" name databases:
// typed maps from name to value bytes, keyed by
// (type-code, context-prefix), that bubble a lookup from an element's
// full path up through each enclosing "/"-delimited scope to the global
// database, stopping at the first scope that contains the name.
//
// Static databases (populated once, e.g. by a config-time AddressInfo
// element) are backed by a google/btree.BTreeG for binary-searched,
// sorted lookups. A bounded hashicorp/golang-lru/v2 cache sits in front
// of the prefix-bubbling walk itself, since a hot element's repeated
// queries for the same (type, name) otherwise re-walk the same scope
// chain.
package nameinfo

import (
	"strings"
	"sync"

	"github.com/google/btree"
	lru "github.com/hashicorp/golang-lru/v2"
)

// TypeCode identifies the kind of value a database holds, mirroring the
// historical built-in type vocabulary (address, IP prefix, and so on).
type TypeCode int

const (
	TypeAnnotation TypeCode = iota
	TypeEtherAddress
	TypeIPv4Address
	TypeIPPrefix
	TypeIPv6Address
	TypeIPv6Prefix
	TypeTCPUDPPort
)

// entry is one (name -> value) binding inside a single scope's database.
type entry struct {
	name  string
	value string
}

func (e *entry) Less(than btree.Item) bool {
	return e.name < than.(*entry).name
}

// scopeKey identifies one per-(type, context-prefix) database.
type scopeKey struct {
	typ    TypeCode
	prefix string
}

// DB is a name database scoped by context prefix and bubbled to a
// global fallback. It is safe for concurrent use: a single mutex guards
// both the scope map and every btree (google/btree trees are not safe
// for concurrent access at all, not even concurrent reads alongside a
// writer), since a multi-threaded router's elements may Query the same
// DB from different RouterThreads while a config-time AddressInfo
// element or control-plane call Defines into it.
type DB struct {
	mu     sync.RWMutex
	scopes map[scopeKey]*btree.BTreeG[*entry]
	cache  *lru.Cache[cacheKey, string]
}

type cacheKey struct {
	typ  TypeCode
	elem string
	name string
}

// New returns an empty name database with a lookup cache sized to hold
// up to cacheSize distinct (type, element, name) queries before evicting
// least-recently-used entries.
func New(cacheSize int) *DB {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	c, _ := lru.New[cacheKey, string](cacheSize)
	return &DB{
		scopes: make(map[scopeKey]*btree.BTreeG[*entry]),
		cache:  c,
	}
}

func less(a, b *entry) bool { return a.name < b.name }

// Define inserts name -> value into the database scoped to (typ, prefix),
// where prefix is the context path the binding is visible under ("" for
// the global scope, "c" for compound scope "c/"). A define in a deeper
// scope shadows a shallower one until removed ("Name-scope
// precedence").
func (db *DB) Define(typ TypeCode, prefix, name, value string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	k := scopeKey{typ: typ, prefix: prefix}
	tree, ok := db.scopes[k]
	if !ok {
		tree = btree.NewG[*entry](32, less)
		db.scopes[k] = tree
	}
	tree.ReplaceOrInsert(&entry{name: name, value: value})
	db.cache.Purge()
}

// Remove deletes name from the database scoped to (typ, prefix), if
// present.
func (db *DB) Remove(typ TypeCode, prefix, name string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	k := scopeKey{typ: typ, prefix: prefix}
	if tree, ok := db.scopes[k]; ok {
		tree.Delete(&entry{name: name})
	}
	db.cache.Purge()
}

// Query looks up name in the database matching typ whose context prefix
// is the longest prefix of elementPath; on miss it tries each
// successively shorter prefix up to the global ("") scope. It returns
// the bound value and true, or ("", false) if no scope defines name.
func (db *DB) Query(typ TypeCode, elementPath, name string) (string, bool) {
	ck := cacheKey{typ: typ, elem: elementPath, name: name}
	if v, ok := db.cache.Get(ck); ok {
		return v, true
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, prefix := range prefixChain(elementPath) {
		k := scopeKey{typ: typ, prefix: prefix}
		tree, ok := db.scopes[k]
		if !ok {
			continue
		}
		if item, found := tree.Get(&entry{name: name}); found {
			db.cache.Add(ck, item.value)
			return item.value, true
		}
	}
	return "", false
}

// prefixChain returns the sequence of context prefixes to search, from
// the deepest (elementPath's own enclosing scope) to the shallowest
// (""), matching NameInfo::query's walk in the historical source.
func prefixChain(elementPath string) []string {
	parts := strings.Split(elementPath, "/")
	// The last part is the element's own local name, not a scope; start
	// bubbling from its immediate enclosing scope.
	if len(parts) > 0 {
		parts = parts[:len(parts)-1]
	}
	chain := make([]string, 0, len(parts)+1)
	for i := len(parts); i >= 0; i-- {
		chain = append(chain, strings.Join(parts[:i], "/"))
	}
	return chain
}
