// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/castline/internal/models"
)

// Key prefixes for BadgerDB storage
const (
	profileKeyPrefix      = "profile:"
	projectKeyPrefix      = "project:"
	mediaKeyPrefix        = "media:"
	jobKeyPrefix          = "job:"
	notificationKeyPrefix = "notification:"
	notifProfileKeyPrefix = "notification_profile:"
	pushSubKeyPrefix      = "push_subscription:"
	convoKeyPrefix        = "conversation:"
	convoProfileKeyPrefix = "conversation_profile:"
	convoPairKeyPrefix    = "conversation_pair:"
	messageKeyPrefix      = "message:"
	sessionKeyPrefix      = "session:"
)

// maxTxnRetries bounds retries of a read-modify-write on badger.ErrConflict.
const maxTxnRetries = 5

// BadgerOptions configures OpenBadger.
type BadgerOptions struct {
	Path       string
	InMemory   bool
	SyncWrites bool
}

// BadgerStore implements Store on BadgerDB. Documents are stored as JSON;
// per-profile index keys map a profile to the notifications and
// conversations that include it.
type BadgerStore struct {
	db     *badger.DB
	closed atomic.Bool
}

// OpenBadger opens (or creates) a BadgerDB database.
func OpenBadger(o BadgerOptions) (*BadgerStore, error) {
	opts := badger.DefaultOptions(o.Path)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithSyncWrites(o.SyncWrites)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *BadgerStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (s *BadgerStore) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.db.View(fn)
}

// update runs fn in a read-write transaction, retrying on write conflicts.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		if err = s.check(ctx); err != nil {
			return err
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getDoc[T any](txn *badger.Txn, key string) (*T, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	var v T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	}); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

func putDoc(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func keyExists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// indexValues returns the values stored under keys with the given prefix.
func indexValues(txn *badger.Txn, prefix string) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		if err := it.Item().Value(func(val []byte) error {
			ids = append(ids, string(val))
			return nil
		}); err != nil {
			return nil, fmt.Errorf("read index %s: %w", prefix, err)
		}
	}
	return ids, nil
}

func getByID[T any](s *BadgerStore, ctx context.Context, prefix, id string) (*T, error) {
	var out *T
	err := s.view(ctx, func(txn *badger.Txn) error {
		v, err := getDoc[T](txn, prefix+id)
		out = v
		return err
	})
	return out, err
}

func putByID(s *BadgerStore, ctx context.Context, prefix, id string, v any) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return putDoc(txn, prefix+id, v)
	})
}

func (s *BadgerStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return getByID[models.Profile](s, ctx, profileKeyPrefix, id)
}

func (s *BadgerStore) PutProfile(ctx context.Context, p *models.Profile) error {
	return putByID(s, ctx, profileKeyPrefix, p.ID, p)
}

func (s *BadgerStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return getByID[models.Project](s, ctx, projectKeyPrefix, id)
}

func (s *BadgerStore) PutProject(ctx context.Context, p *models.Project) error {
	return putByID(s, ctx, projectKeyPrefix, p.ID, p)
}

func (s *BadgerStore) GetMedia(ctx context.Context, id string) (*models.Media, error) {
	return getByID[models.Media](s, ctx, mediaKeyPrefix, id)
}

func (s *BadgerStore) PutMedia(ctx context.Context, m *models.Media) error {
	return putByID(s, ctx, mediaKeyPrefix, m.ID, m)
}

func (s *BadgerStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return getByID[models.Job](s, ctx, jobKeyPrefix, id)
}

func (s *BadgerStore) PutJob(ctx context.Context, j *models.Job) error {
	return putByID(s, ctx, jobKeyPrefix, j.ID, j)
}

// Notifications

func (s *BadgerStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	prepareNotification(n, time.Now())
	return s.update(ctx, func(txn *badger.Txn) error {
		exists, err := keyExists(txn, notificationKeyPrefix+n.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}
		if err := putDoc(txn, notificationKeyPrefix+n.ID, n); err != nil {
			return err
		}
		for _, pid := range n.Profiles {
			if err := txn.Set([]byte(notifProfileKeyPrefix+pid+":"+n.ID), []byte(n.ID)); err != nil {
				return fmt.Errorf("set notification index: %w", err)
			}
		}
		return nil
	})
}

func (s *BadgerStore) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	return getByID[models.Notification](s, ctx, notificationKeyPrefix, id)
}

func (s *BadgerStore) notificationsFor(txn *badger.Txn, profileID string) ([]models.Notification, error) {
	ids, err := indexValues(txn, notifProfileKeyPrefix+profileID+":")
	if err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(ids))
	for _, id := range ids {
		n, err := getDoc[models.Notification](txn, notificationKeyPrefix+id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, nil
}

func (s *BadgerStore) ListNotifications(ctx context.Context, profileID string, filter models.NotificationFilter) ([]models.Notification, error) {
	var out []models.Notification
	err := s.view(ctx, func(txn *badger.Txn) error {
		all, err := s.notificationsFor(txn, profileID)
		if err != nil {
			return err
		}
		for i := range all {
			if filter.Matches(&all[i], profileID) {
				out = append(out, all[i])
			}
		}
		return nil
	})
	sortNotifications(out)
	return out, err
}

func (s *BadgerStore) UnreadNotifications(ctx context.Context, profileID string) ([]models.Notification, error) {
	unread := false
	return s.ListNotifications(ctx, profileID, models.NotificationFilter{Read: &unread})
}

func (s *BadgerStore) MarkNotificationRead(ctx context.Context, notificationID, profileID string) (*models.Notification, error) {
	var out *models.Notification
	err := s.update(ctx, func(txn *badger.Txn) error {
		n, err := getDoc[models.Notification](txn, notificationKeyPrefix+notificationID)
		if err != nil {
			return err
		}
		if !n.Targets(profileID) {
			return ErrNotFound
		}
		if n.MarkReadBy(profileID) {
			if err := putDoc(txn, notificationKeyPrefix+n.ID, n); err != nil {
				return err
			}
		}
		out = n
		return nil
	})
	return out, err
}

func (s *BadgerStore) MarkAllNotificationsRead(ctx context.Context, profileID string) (int, error) {
	var changed int
	err := s.update(ctx, func(txn *badger.Txn) error {
		changed = 0
		all, err := s.notificationsFor(txn, profileID)
		if err != nil {
			return err
		}
		for i := range all {
			if !all[i].MarkReadBy(profileID) {
				continue
			}
			if err := putDoc(txn, notificationKeyPrefix+all[i].ID, &all[i]); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, err
}

// Push subscriptions

func (s *BadgerStore) GetPushSubscription(ctx context.Context, profileID string) (*models.PushSubscription, error) {
	return getByID[models.PushSubscription](s, ctx, pushSubKeyPrefix, profileID)
}

func (s *BadgerStore) UpsertPushSubscription(ctx context.Context, sub *models.PushSubscription) (*models.PushSubscription, error) {
	var out models.PushSubscription
	err := s.update(ctx, func(txn *badger.Txn) error {
		prev, err := getDoc[models.PushSubscription](txn, pushSubKeyPrefix+sub.Profile)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		out = mergePushSubscription(prev, sub, time.Now())
		return putDoc(txn, pushSubKeyPrefix+sub.Profile, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Conversations

func (s *BadgerStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
	prepareConversation(c, time.Now())
	return s.update(ctx, func(txn *badger.Txn) error {
		pair := convoPairKeyPrefix + pairKey(c.Profiles)
		exists, err := keyExists(txn, pair)
		if err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}
		if err := putDoc(txn, convoKeyPrefix+c.ID, c); err != nil {
			return err
		}
		if err := txn.Set([]byte(pair), []byte(c.ID)); err != nil {
			return fmt.Errorf("set conversation pair: %w", err)
		}
		for _, pid := range c.Profiles {
			if err := txn.Set([]byte(convoProfileKeyPrefix+pid+":"+c.ID), []byte(c.ID)); err != nil {
				return fmt.Errorf("set conversation index: %w", err)
			}
		}
		return nil
	})
}

func (s *BadgerStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	return getByID[models.Conversation](s, ctx, convoKeyPrefix, id)
}

func (s *BadgerStore) ListConversations(ctx context.Context, profileID string, ctype models.ConversationType) ([]models.Conversation, error) {
	var out []models.Conversation
	err := s.view(ctx, func(txn *badger.Txn) error {
		ids, err := indexValues(txn, convoProfileKeyPrefix+profileID+":")
		if err != nil {
			return err
		}
		for _, id := range ids {
			c, err := getDoc[models.Conversation](txn, convoKeyPrefix+id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if ctype != "" && c.Type != ctype {
				continue
			}
			out = append(out, *c)
		}
		return nil
	})
	sortConversations(out)
	return out, err
}

func (s *BadgerStore) AppendMessage(ctx context.Context, m *models.Message) (*models.Conversation, error) {
	prepareMessage(m, time.Now())
	var out *models.Conversation
	err := s.update(ctx, func(txn *badger.Txn) error {
		c, err := getDoc[models.Conversation](txn, convoKeyPrefix+m.Conversation)
		if err != nil {
			return err
		}
		if err := putDoc(txn, messageKeyPrefix+m.ID, m); err != nil {
			return err
		}
		c.Messages = append(c.Messages, m.ID)
		c.UpdatedAt = m.Date
		if err := putDoc(txn, convoKeyPrefix+c.ID, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

func (s *BadgerStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	return getByID[models.Message](s, ctx, messageKeyPrefix, id)
}

func (s *BadgerStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var out []models.Message
	err := s.view(ctx, func(txn *badger.Txn) error {
		c, err := getDoc[models.Conversation](txn, convoKeyPrefix+conversationID)
		if err != nil {
			return err
		}
		out = make([]models.Message, 0, len(c.Messages))
		for _, id := range c.Messages {
			m, err := getDoc[models.Message](txn, messageKeyPrefix+id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, *m)
		}
		return nil
	})
	return out, err
}

func (s *BadgerStore) DeleteMessage(ctx context.Context, messageID, profileID string) (*models.Message, *models.Conversation, error) {
	var (
		msg   *models.Message
		convo *models.Conversation
	)
	err := s.update(ctx, func(txn *badger.Txn) error {
		m, err := getDoc[models.Message](txn, messageKeyPrefix+messageID)
		if err != nil {
			return err
		}
		if m.Profile != profileID {
			return ErrNotFound
		}
		if err := txn.Delete([]byte(messageKeyPrefix + messageID)); err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
		msg = m

		c, err := getDoc[models.Conversation](txn, convoKeyPrefix+m.Conversation)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		c.Messages = slices.DeleteFunc(c.Messages, func(id string) bool { return id == messageID })
		if err := putDoc(txn, convoKeyPrefix+c.ID, c); err != nil {
			return err
		}
		convo = c
		return nil
	})
	return msg, convo, err
}

// Sessions

func (s *BadgerStore) PutSession(ctx context.Context, sess *models.Session) error {
	return putByID(s, ctx, sessionKeyPrefix, sess.JTI, sess)
}

func (s *BadgerStore) TouchSession(ctx context.Context, jti string, now time.Time) (*models.Session, error) {
	var out *models.Session
	err := s.update(ctx, func(txn *badger.Txn) error {
		sess, err := getDoc[models.Session](txn, sessionKeyPrefix+jti)
		if err != nil {
			return err
		}
		sess.LastActiveOn = now
		if err := putDoc(txn, sessionKeyPrefix+jti, sess); err != nil {
			return err
		}
		out = sess
		return nil
	})
	return out, err
}
