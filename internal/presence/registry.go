// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

// Package presence tracks which profiles hold open real-time channels.
//
// The Registry maps a profile id to an entry holding the profile's open
// notification and chat handles plus its cached unread notifications. An
// entry exists while at least one handle is open (or while it is being
// built) and is removed the moment its last handle goes away.
//
// Operations on one profile are serialized by that entry's mutex; the
// registry-wide mutex guards only the map, so different profiles never
// contend beyond a map lookup. The only I/O is the unread load performed when
// an entry is first built. It runs outside the entry's mutex: concurrent
// registrations of the same profile wait for it, every other operation
// proceeds against the partially built entry.
package presence

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/tomtom215/castline/internal/metrics"
	"github.com/tomtom215/castline/internal/models"
)

// Kind is a logical channel a profile connects to.
type Kind string

const (
	KindNotif Kind = "notif"
	KindChat  Kind = "chat"
)

// Valid reports whether k is a known channel kind.
func (k Kind) Valid() bool {
	return k == KindNotif || k == KindChat
}

// HandleID identifies one open connection.
type HandleID uint64

// UnreadLoader loads the unread notifications of a profile, newest first.
type UnreadLoader interface {
	UnreadNotifications(ctx context.Context, profileID string) ([]models.Notification, error)
}

type entry struct {
	mu     sync.Mutex
	notif  map[HandleID]struct{}
	chat   map[HandleID]struct{}
	unread []models.Notification
	loaded bool

	// loading is non-nil while the unread load runs and is closed when it ends.
	loading chan struct{}

	// Reads and clears seen while loading, applied to the loaded list.
	readWhileLoading    map[string]struct{}
	clearedWhileLoading bool

	// dead is set once the entry has been removed from the map; holders of a
	// stale pointer must look the profile up again.
	dead bool
}

func newEntry() *entry {
	return &entry{
		notif: make(map[HandleID]struct{}),
		chat:  make(map[HandleID]struct{}),
	}
}

func (e *entry) set(kind Kind) map[HandleID]struct{} {
	if kind == KindChat {
		return e.chat
	}
	return e.notif
}

func (e *entry) empty() bool {
	return len(e.notif) == 0 && len(e.chat) == 0
}

func (e *entry) add(kind Kind, handle HandleID) {
	set := e.set(kind)
	if _, ok := set[handle]; !ok {
		set[handle] = struct{}{}
		metrics.PresenceHandles.WithLabelValues(string(kind)).Inc()
	}
}

// settle drops from loaded what was read or cleared while it was loading and
// resets that bookkeeping.
func (e *entry) settle(loaded []models.Notification) []models.Notification {
	if e.clearedWhileLoading {
		loaded = nil
	}
	if len(e.readWhileLoading) > 0 {
		loaded = slices.DeleteFunc(loaded, func(n models.Notification) bool {
			_, read := e.readWhileLoading[n.ID]
			return read
		})
	}
	e.readWhileLoading = nil
	e.clearedWhileLoading = false
	return loaded
}

// Stats is a point-in-time summary of the registry.
type Stats struct {
	OnlineProfiles int `json:"online_profiles"`
	NotifHandles   int `json:"notif_handles"`
	ChatHandles    int `json:"chat_handles"`
}

// Registry is the in-process presence map. The zero value is not usable;
// create one with NewRegistry.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	loader  UnreadLoader
}

// NewRegistry creates an empty registry that populates new entries from loader.
func NewRegistry(loader UnreadLoader) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		loader:  loader,
	}
}

// acquire returns the live entry for profileID, locked. When create is false
// and no entry exists it returns nil.
func (r *Registry) acquire(profileID string, create bool) *entry {
	for {
		r.mu.Lock()
		e, ok := r.entries[profileID]
		if !ok {
			if !create {
				r.mu.Unlock()
				return nil
			}
			e = newEntry()
			r.entries[profileID] = e
			metrics.PresenceOnlineProfiles.Inc()
		}
		r.mu.Unlock()

		e.mu.Lock()
		if !e.dead {
			return e
		}
		e.mu.Unlock()
	}
}

// discard removes a locked, empty entry from the map and marks it dead.
// The caller still holds e.mu.
func (r *Registry) discard(profileID string, e *entry) {
	e.dead = true
	r.mu.Lock()
	if r.entries[profileID] == e {
		delete(r.entries, profileID)
		metrics.PresenceOnlineProfiles.Dec()
	}
	r.mu.Unlock()
}

// Register adds handle to the profile's set for kind, creating the entry if
// needed. The first registration of an entry loads the profile's unread
// notifications; if that load fails and no other handle is open the entry is
// discarded and the error returned. Registering a present handle is a no-op.
// The handle is added only once the entry is loaded.
func (r *Registry) Register(ctx context.Context, profileID string, kind Kind, handle HandleID) error {
	if !kind.Valid() {
		return fmt.Errorf("presence: unknown channel kind %q", kind)
	}

	for {
		e := r.acquire(profileID, true)
		if e.loaded {
			e.add(kind, handle)
			e.mu.Unlock()
			return nil
		}
		wait := e.loading
		if wait == nil {
			return r.load(ctx, profileID, e, kind, handle)
		}
		e.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return fmt.Errorf("presence: wait for %s: %w", profileID, ctx.Err())
		}
	}
}

// load fills e from the store. It is entered with e.mu held and releases it
// for the duration of the store call.
func (r *Registry) load(ctx context.Context, profileID string, e *entry, kind Kind, handle HandleID) error {
	done := make(chan struct{})
	e.loading = done
	e.mu.Unlock()

	unread, err := r.loader.UnreadNotifications(ctx, profileID)

	e.mu.Lock()
	defer e.mu.Unlock()
	defer close(done)
	e.loading = nil

	if err != nil {
		metrics.PresenceUnreadLoads.WithLabelValues("error").Inc()
		e.settle(nil)
		if e.empty() {
			r.discard(profileID, e)
		}
		return fmt.Errorf("presence: load unread for %s: %w", profileID, err)
	}
	metrics.PresenceUnreadLoads.WithLabelValues("success").Inc()
	e.unread = mergeUnread(e.settle(unread), e.unread)
	e.loaded = true
	e.add(kind, handle)
	return nil
}

// mergeUnread returns the cached items missing from loaded, followed by loaded.
// Cached items only exist here when a notification was cached while the
// entry was still loading.
func mergeUnread(loaded, cached []models.Notification) []models.Notification {
	var missing []models.Notification
	for _, n := range cached {
		if !containsNotification(loaded, n.ID) {
			missing = append(missing, n)
		}
	}
	return append(missing, loaded...)
}

func containsNotification(ns []models.Notification, id string) bool {
	return slices.ContainsFunc(ns, func(n models.Notification) bool { return n.ID == id })
}

// Deregister removes handle from the profile's set for kind and deletes the
// entry when both sets are empty. Unknown profiles and handles are ignored.
func (r *Registry) Deregister(profileID string, kind Kind, handle HandleID) {
	e := r.acquire(profileID, false)
	if e == nil {
		return
	}
	defer e.mu.Unlock()

	set := e.set(kind)
	if _, ok := set[handle]; ok {
		delete(set, handle)
		metrics.PresenceHandles.WithLabelValues(string(kind)).Dec()
	}
	if e.empty() && e.loaded {
		r.discard(profileID, e)
	}
}

// IsOnline reports whether the profile has an entry.
func (r *Registry) IsOnline(profileID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[profileID]
	return ok
}

// LiveHandles returns the profile's handles for kind in ascending order.
func (r *Registry) LiveHandles(profileID string, kind Kind) []HandleID {
	e := r.acquire(profileID, false)
	if e == nil {
		return nil
	}
	defer e.mu.Unlock()
	return sortedHandles(e.set(kind))
}

func sortedHandles(set map[HandleID]struct{}) []HandleID {
	out := make([]HandleID, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// CacheNotification puts n at the front of the profile's cached unread list.
// It reports false, changing nothing, when the profile has no entry. A
// notification already cached is not added twice.
func (r *Registry) CacheNotification(profileID string, n models.Notification) bool {
	e := r.acquire(profileID, false)
	if e == nil {
		return false
	}
	defer e.mu.Unlock()

	if !containsNotification(e.unread, n.ID) {
		e.unread = append([]models.Notification{n.Clone()}, e.unread...)
	}
	return true
}

// CacheRead drops a notification from the profile's cached unread list. It
// reports false when the profile has no entry.
func (r *Registry) CacheRead(profileID, notificationID string) bool {
	e := r.acquire(profileID, false)
	if e == nil {
		return false
	}
	defer e.mu.Unlock()

	e.unread = slices.DeleteFunc(e.unread, func(n models.Notification) bool {
		return n.ID == notificationID
	})
	if !e.loaded {
		if e.readWhileLoading == nil {
			e.readWhileLoading = make(map[string]struct{})
		}
		e.readWhileLoading[notificationID] = struct{}{}
	}
	return true
}

// ClearUnread empties the profile's cached unread list. It reports false when
// the profile has no entry.
func (r *Registry) ClearUnread(profileID string) bool {
	e := r.acquire(profileID, false)
	if e == nil {
		return false
	}
	defer e.mu.Unlock()

	e.unread = []models.Notification{}
	if !e.loaded {
		e.clearedWhileLoading = true
	}
	return true
}

// Unread returns a copy of the profile's cached unread list, newest first,
// and whether the profile has an entry.
func (r *Registry) Unread(profileID string) ([]models.Notification, bool) {
	e := r.acquire(profileID, false)
	if e == nil {
		return nil, false
	}
	defer e.mu.Unlock()

	out := make([]models.Notification, len(e.unread))
	for i := range e.unread {
		out[i] = e.unread[i].Clone()
	}
	return out, true
}

// OnlineProfiles returns the ids of all profiles with an entry, sorted.
func (r *Registry) OnlineProfiles() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	r.mu.Unlock()

	sort.Strings(out)
	return out
}

// Stats counts profiles and handles. Entries are visited one at a time, so
// the totals are not a single atomic snapshot.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	s := Stats{OnlineProfiles: len(entries)}
	for _, e := range entries {
		e.mu.Lock()
		if !e.dead {
			s.NotifHandles += len(e.notif)
			s.ChatHandles += len(e.chat)
		}
		e.mu.Unlock()
	}
	return s
}

// Emitter delivers one event to a set of open handles. It returns an error
// when any handle could not be reached; the remaining handles still receive
// the event.
type Emitter interface {
	Emit(handles []HandleID, event string, data any) error
}
