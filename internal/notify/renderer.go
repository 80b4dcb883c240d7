// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tomtom215/castline/internal/models"
	"github.com/tomtom215/castline/internal/store"
)

// Placeholder kinds.
const (
	kindProfile = "profile"
	kindProject = "project"
	kindMedia   = "media"
	kindJob     = "job"
)

// captionLimit is the number of caption characters kept in a summary.
const captionLimit = 10

// missingValue is substituted for placeholders with no resolved value.
const missingValue = "null"

var placeholderPattern = regexp.MustCompile(`@\{(.*?)\}`)

// EntityResolver looks up the entities a notification mentions.
type EntityResolver interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetMedia(ctx context.Context, id string) (*models.Media, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
}

// summaryRule lists which kinds are resolved for a notification type.
type summaryRule []string

var summaryRules = map[models.NotificationType]summaryRule{
	models.NotificationProjectAdmin:        {kindProfile, kindProject},
	models.NotificationProjectFollow:       {kindProfile, kindProject},
	models.NotificationProjectUpdate:       {kindProject},
	models.NotificationNewMediaStar:        {kindProfile, kindMedia},
	models.NotificationNewMediaComment:     {kindProfile, kindMedia},
	models.NotificationNewMediaCommentStar: {kindProfile, kindMedia},
	models.NotificationJobUpdate:           {kindProfile, kindJob},
	models.NotificationNewChatMessage:      {kindProfile},
}

// HasSummary reports whether notifications of type t produce a push summary.
func HasSummary(t models.NotificationType) bool {
	_, ok := summaryRules[t]
	return ok
}

// Renderer turns notification templates into human-readable summaries.
type Renderer struct {
	entities EntityResolver
}

// NewRenderer creates a Renderer backed by entities.
func NewRenderer(entities EntityResolver) *Renderer {
	return &Renderer{entities: entities}
}

// Summary renders the push summary of n. ok is false when the type has no
// summary rule. A mentioned entity that does not exist renders as "null";
// any other lookup failure is returned.
func (r *Renderer) Summary(ctx context.Context, n *models.Notification) (summary string, ok bool, err error) {
	rule, ok := summaryRules[n.Type]
	if !ok {
		return "", false, nil
	}

	values := make(map[string]string, len(rule))
	for _, kind := range rule {
		value, found, err := r.resolve(ctx, n, kind)
		if err != nil {
			return "", true, fmt.Errorf("resolve %s: %w", kind, err)
		}
		if found {
			values[kind] = value
		}
	}
	return Interpolate(n.Message, values), true, nil
}

func (r *Renderer) resolve(ctx context.Context, n *models.Notification, kind string) (string, bool, error) {
	var (
		value string
		err   error
	)
	switch kind {
	case kindProfile:
		if len(n.MentionedProfiles) == 0 {
			return "", false, nil
		}
		var p *models.Profile
		if p, err = r.entities.GetProfile(ctx, n.MentionedProfiles[0]); err == nil {
			value = p.Name
		}
	case kindProject:
		if len(n.MentionedProjects) == 0 {
			return "", false, nil
		}
		var p *models.Project
		if p, err = r.entities.GetProject(ctx, n.MentionedProjects[0]); err == nil {
			value = p.Title
		}
	case kindMedia:
		if len(n.MentionedMedia) == 0 {
			return "", false, nil
		}
		var m *models.Media
		if m, err = r.entities.GetMedia(ctx, n.MentionedMedia[0]); err == nil {
			value = Truncate(m.Caption, captionLimit)
		}
	case kindJob:
		if len(n.MentionedJobs) == 0 {
			return "", false, nil
		}
		var j *models.Job
		if j, err = r.entities.GetJob(ctx, n.MentionedJobs[0]); err == nil {
			value = j.ProjectTitle
		}
	default:
		return "", false, nil
	}

	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Interpolate replaces every @{kind:id} placeholder in template with
// values[kind], or "null" when kind has no value.
func Interpolate(template string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		inner := match[2 : len(match)-1]
		kind, _, _ := strings.Cut(inner, ":")
		if v, ok := values[kind]; ok {
			return v
		}
		return missingValue
	})
}

// Truncate shortens s to limit characters followed by "..." when longer.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
