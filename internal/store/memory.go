// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/tomtom215/castline/internal/models"
)

// MemoryStore implements Store with in-process maps.
type MemoryStore struct {
	mu            sync.RWMutex
	closed        bool
	profiles      map[string]models.Profile
	projects      map[string]models.Project
	media         map[string]models.Media
	jobs          map[string]models.Job
	notifications map[string]models.Notification
	pushSubs      map[string]models.PushSubscription
	conversations map[string]models.Conversation
	pairs         map[string]string
	messages      map[string]models.Message
	sessions      map[string]models.Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:      make(map[string]models.Profile),
		projects:      make(map[string]models.Project),
		media:         make(map[string]models.Media),
		jobs:          make(map[string]models.Job),
		notifications: make(map[string]models.Notification),
		pushSubs:      make(map[string]models.PushSubscription),
		conversations: make(map[string]models.Conversation),
		pairs:         make(map[string]string),
		messages:      make(map[string]models.Message),
		sessions:      make(map[string]models.Session),
	}
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return ErrClosed
	}
	return nil
}

// readView runs fn under the read lock after checking ctx and closed state.
func (s *MemoryStore) readView(ctx context.Context, fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	return fn()
}

func (s *MemoryStore) update(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	return fn()
}

func cloneProfile(p models.Profile) *models.Profile {
	p.Roles = slices.Clone(p.Roles)
	p.BlockedProfiles = slices.Clone(p.BlockedProfiles)
	p.Connections = slices.Clone(p.Connections)
	return &p
}

func (s *MemoryStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var out *models.Profile
	err := s.readView(ctx, func() error {
		p, ok := s.profiles[id]
		if !ok {
			return ErrNotFound
		}
		out = cloneProfile(p)
		return nil
	})
	return out, err
}

func (s *MemoryStore) PutProfile(ctx context.Context, p *models.Profile) error {
	return s.update(ctx, func() error {
		s.profiles[p.ID] = *cloneProfile(*p)
		return nil
	})
}

func (s *MemoryStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var out *models.Project
	err := s.readView(ctx, func() error {
		p, ok := s.projects[id]
		if !ok {
			return ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (s *MemoryStore) PutProject(ctx context.Context, p *models.Project) error {
	return s.update(ctx, func() error {
		s.projects[p.ID] = *p
		return nil
	})
}

func (s *MemoryStore) GetMedia(ctx context.Context, id string) (*models.Media, error) {
	var out *models.Media
	err := s.readView(ctx, func() error {
		m, ok := s.media[id]
		if !ok {
			return ErrNotFound
		}
		out = &m
		return nil
	})
	return out, err
}

func (s *MemoryStore) PutMedia(ctx context.Context, m *models.Media) error {
	return s.update(ctx, func() error {
		s.media[m.ID] = *m
		return nil
	})
}

func (s *MemoryStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var out *models.Job
	err := s.readView(ctx, func() error {
		j, ok := s.jobs[id]
		if !ok {
			return ErrNotFound
		}
		out = &j
		return nil
	})
	return out, err
}

func (s *MemoryStore) PutJob(ctx context.Context, j *models.Job) error {
	return s.update(ctx, func() error {
		s.jobs[j.ID] = *j
		return nil
	})
}

// Notifications

func (s *MemoryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	return s.update(ctx, func() error {
		prepareNotification(n, time.Now())
		if _, exists := s.notifications[n.ID]; exists {
			return ErrConflict
		}
		s.notifications[n.ID] = n.Clone()
		return nil
	})
}

func (s *MemoryStore) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	var out *models.Notification
	err := s.readView(ctx, func() error {
		n, ok := s.notifications[id]
		if !ok {
			return ErrNotFound
		}
		c := n.Clone()
		out = &c
		return nil
	})
	return out, err
}

func (s *MemoryStore) ListNotifications(ctx context.Context, profileID string, filter models.NotificationFilter) ([]models.Notification, error) {
	var out []models.Notification
	err := s.readView(ctx, func() error {
		for _, n := range s.notifications {
			if n.Targets(profileID) && filter.Matches(&n, profileID) {
				out = append(out, n.Clone())
			}
		}
		return nil
	})
	sortNotifications(out)
	return out, err
}

func (s *MemoryStore) UnreadNotifications(ctx context.Context, profileID string) ([]models.Notification, error) {
	unread := false
	return s.ListNotifications(ctx, profileID, models.NotificationFilter{Read: &unread})
}

func (s *MemoryStore) MarkNotificationRead(ctx context.Context, notificationID, profileID string) (*models.Notification, error) {
	var out *models.Notification
	err := s.update(ctx, func() error {
		n, ok := s.notifications[notificationID]
		if !ok || !n.Targets(profileID) {
			return ErrNotFound
		}
		n = n.Clone()
		n.MarkReadBy(profileID)
		s.notifications[notificationID] = n
		c := n.Clone()
		out = &c
		return nil
	})
	return out, err
}

func (s *MemoryStore) MarkAllNotificationsRead(ctx context.Context, profileID string) (int, error) {
	changed := 0
	err := s.update(ctx, func() error {
		for id, n := range s.notifications {
			if !n.Targets(profileID) || n.IsReadBy(profileID) {
				continue
			}
			n = n.Clone()
			n.MarkReadBy(profileID)
			s.notifications[id] = n
			changed++
		}
		return nil
	})
	return changed, err
}

// Push subscriptions

func (s *MemoryStore) GetPushSubscription(ctx context.Context, profileID string) (*models.PushSubscription, error) {
	var out *models.PushSubscription
	err := s.readView(ctx, func() error {
		sub, ok := s.pushSubs[profileID]
		if !ok {
			return ErrNotFound
		}
		out = &sub
		return nil
	})
	return out, err
}

func (s *MemoryStore) UpsertPushSubscription(ctx context.Context, sub *models.PushSubscription) (*models.PushSubscription, error) {
	var out *models.PushSubscription
	err := s.update(ctx, func() error {
		var prev *models.PushSubscription
		if existing, ok := s.pushSubs[sub.Profile]; ok {
			prev = &existing
		}
		merged := mergePushSubscription(prev, sub, time.Now())
		s.pushSubs[sub.Profile] = merged
		out = &merged
		return nil
	})
	return out, err
}

// Conversations

func (s *MemoryStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
	return s.update(ctx, func() error {
		prepareConversation(c, time.Now())
		key := pairKey(c.Profiles)
		if _, exists := s.pairs[key]; exists {
			return ErrConflict
		}
		s.conversations[c.ID] = c.Clone()
		s.pairs[key] = c.ID
		return nil
	})
}

func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var out *models.Conversation
	err := s.readView(ctx, func() error {
		c, ok := s.conversations[id]
		if !ok {
			return ErrNotFound
		}
		cp := c.Clone()
		out = &cp
		return nil
	})
	return out, err
}

func (s *MemoryStore) ListConversations(ctx context.Context, profileID string, ctype models.ConversationType) ([]models.Conversation, error) {
	var out []models.Conversation
	err := s.readView(ctx, func() error {
		for _, c := range s.conversations {
			if !c.HasParticipant(profileID) || (ctype != "" && c.Type != ctype) {
				continue
			}
			out = append(out, c.Clone())
		}
		return nil
	})
	sortConversations(out)
	return out, err
}

func (s *MemoryStore) AppendMessage(ctx context.Context, m *models.Message) (*models.Conversation, error) {
	var out *models.Conversation
	err := s.update(ctx, func() error {
		c, ok := s.conversations[m.Conversation]
		if !ok {
			return ErrNotFound
		}
		prepareMessage(m, time.Now())
		msg := *m
		if m.Link != nil {
			link := *m.Link
			msg.Link = &link
		}
		s.messages[m.ID] = msg
		c = c.Clone()
		c.Messages = append(c.Messages, m.ID)
		c.UpdatedAt = m.Date
		s.conversations[c.ID] = c
		cp := c.Clone()
		out = &cp
		return nil
	})
	return out, err
}

func (s *MemoryStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var out *models.Message
	err := s.readView(ctx, func() error {
		m, ok := s.messages[id]
		if !ok {
			return ErrNotFound
		}
		out = &m
		return nil
	})
	return out, err
}

func (s *MemoryStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var out []models.Message
	err := s.readView(ctx, func() error {
		c, ok := s.conversations[conversationID]
		if !ok {
			return ErrNotFound
		}
		out = make([]models.Message, 0, len(c.Messages))
		for _, id := range c.Messages {
			if m, ok := s.messages[id]; ok {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func (s *MemoryStore) DeleteMessage(ctx context.Context, messageID, profileID string) (*models.Message, *models.Conversation, error) {
	var (
		msg   *models.Message
		convo *models.Conversation
	)
	err := s.update(ctx, func() error {
		m, ok := s.messages[messageID]
		if !ok || m.Profile != profileID {
			return ErrNotFound
		}
		delete(s.messages, messageID)
		msg = &m
		c, ok := s.conversations[m.Conversation]
		if !ok {
			return nil
		}
		c = c.Clone()
		c.Messages = slices.DeleteFunc(c.Messages, func(id string) bool { return id == messageID })
		s.conversations[c.ID] = c
		cp := c.Clone()
		convo = &cp
		return nil
	})
	return msg, convo, err
}

// Sessions

func (s *MemoryStore) PutSession(ctx context.Context, sess *models.Session) error {
	return s.update(ctx, func() error {
		s.sessions[sess.JTI] = *sess
		return nil
	})
}

func (s *MemoryStore) TouchSession(ctx context.Context, jti string, now time.Time) (*models.Session, error) {
	var out *models.Session
	err := s.update(ctx, func() error {
		sess, ok := s.sessions[jti]
		if !ok {
			return ErrNotFound
		}
		sess.LastActiveOn = now
		s.sessions[jti] = sess
		out = &sess
		return nil
	})
	return out, err
}
