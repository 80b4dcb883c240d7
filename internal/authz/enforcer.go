// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/castline/internal/config"
	"github.com/tomtom215/castline/internal/metrics"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Objects and actions used by the HTTP surface.
const (
	ObjectNotifications = "notifications"
	ObjectSubscriptions = "subscriptions"
	ObjectConversations = "conversations"
	ObjectMessages      = "messages"

	ActionRead     = "read"
	ActionWrite    = "write"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionDispatch = "dispatch"
)

// EnforcerConfig holds configuration for the Casbin enforcer.
type EnforcerConfig struct {
	// ModelPath overrides the embedded model when the file exists.
	ModelPath string

	// PolicyPath overrides the embedded policy when the file exists.
	PolicyPath string

	// DefaultRole is granted to every authenticated caller.
	DefaultRole string

	// CacheTTL is how long decisions are cached; 0 disables caching.
	CacheTTL time.Duration
}

// EnforcerConfigFrom builds an EnforcerConfig from application config.
func EnforcerConfigFrom(cfg *config.CasbinConfig) *EnforcerConfig {
	return &EnforcerConfig{
		ModelPath:   cfg.ModelPath,
		PolicyPath:  cfg.PolicyPath,
		DefaultRole: cfg.DefaultRole,
		CacheTTL:    time.Minute,
	}
}

// Enforcer wraps a synced Casbin enforcer with a decision cache.
type Enforcer struct {
	config   EnforcerConfig
	enforcer *casbin.SyncedEnforcer
	cache    *decisionCache
	fromFile bool
}

// NewEnforcer creates an enforcer from the configured or embedded model
// and policy.
func NewEnforcer(cfg *EnforcerConfig) (*Enforcer, error) {
	if cfg == nil {
		cfg = &EnforcerConfig{DefaultRole: "member", CacheTTL: time.Minute}
	}

	var m model.Model
	var err error
	if cfg.ModelPath != "" && fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	fromFile := cfg.PolicyPath != "" && fileExists(cfg.PolicyPath)
	if fromFile {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadPolicyText(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	e := &Enforcer{
		config:   *cfg,
		enforcer: enforcer,
		fromFile: fromFile,
	}
	if cfg.CacheTTL > 0 {
		e.cache = newDecisionCache(cfg.CacheTTL)
	}
	return e, nil
}

// loadPolicyText adds the p and g lines of a policy CSV.
func loadPolicyText(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		ptype, rule := parts[0], parts[1:]

		switch {
		case ptype == "p" && len(rule) >= 3:
			if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", rule, err)
			}
		case ptype == "g" && len(rule) >= 2:
			if _, err := enforcer.AddGroupingPolicy(rule[0], rule[1]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", rule, err)
			}
		}
	}
	return nil
}

// Enforce checks if subject can perform action on object.
func (e *Enforcer) Enforce(subject, object, action string) (bool, error) {
	if e.cache != nil {
		if allowed, ok := e.cache.get(subject, object, action); ok {
			metrics.RecordAuthzDecision(object, action, allowed, true)
			return allowed, nil
		}
	}

	allowed, err := e.enforcer.Enforce(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}

	if e.cache != nil {
		e.cache.set(subject, object, action, allowed)
	}
	metrics.RecordAuthzDecision(object, action, allowed, false)
	return allowed, nil
}

// EnforceWithRoles allows the action if the subject, any of its roles, or
// the default role is allowed.
func (e *Enforcer) EnforceWithRoles(subject string, roles []string, object, action string) (bool, error) {
	candidates := make([]string, 0, len(roles)+2)
	if subject != "" {
		candidates = append(candidates, subject)
	}
	candidates = append(candidates, roles...)
	if e.config.DefaultRole != "" {
		candidates = append(candidates, e.config.DefaultRole)
	}

	for _, candidate := range candidates {
		allowed, err := e.Enforce(candidate, object, action)
		if err != nil {
			return false, err
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

// AddRoleForUser assigns role to user.
func (e *Enforcer) AddRoleForUser(user, role string) (bool, error) {
	added, err := e.enforcer.AddGroupingPolicy(user, role)
	if err != nil {
		return false, fmt.Errorf("failed to add role: %w", err)
	}
	if e.cache != nil {
		e.cache.invalidateSubject(user)
	}
	return added, nil
}

// GetRolesForUser returns the roles assigned to user by policy.
func (e *Enforcer) GetRolesForUser(user string) ([]string, error) {
	return e.enforcer.GetRolesForUser(user)
}

// LoadPolicy reloads a file-backed policy. It is a no-op for the
// embedded policy.
func (e *Enforcer) LoadPolicy() error {
	if !e.fromFile {
		return nil
	}
	if err := e.enforcer.LoadPolicy(); err != nil {
		return err
	}
	if e.cache != nil {
		e.cache.clear()
	}
	return nil
}

// Close stops background work.
func (e *Enforcer) Close() {
	if e.cache != nil {
		e.cache.stop()
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
