// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

// Package authz provides role-based authorization using Casbin.
//
// Every authenticated caller holds the default role (member); tokens may
// add roles such as ADMIN or SERVICE. Policies name coarse objects
// (notifications, conversations, messages) and actions; ownership of a
// specific profile or conversation is checked by the handlers.
//
//	Request -> auth.Authenticate -> authz.Require(object, action) -> Handler
//
// The model and policy are embedded; CasbinConfig.ModelPath and PolicyPath
// override them when the files exist.
//
//	enforcer, err := authz.NewEnforcer(authz.EnforcerConfigFrom(&cfg.Security.Casbin))
//	mw := authz.NewMiddleware(enforcer)
//	r.With(mw.Require(authz.ObjectNotifications, authz.ActionDispatch)).
//	    Post("/notifications", h.DispatchNotification)
package authz
