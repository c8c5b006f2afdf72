// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the docserver.
//
// # Identity Resolution
//
// Every request gets an Identity before reaching a handler:
//
//	Request
//	   │
//	   ▼
//	IdentityMiddleware
//	   │
//	   ├─► X-User-ID / X-User-Tier headers (set by the auth proxy)
//	   │
//	   ├─► X-Session-ID header, or a freshly minted session id
//	   │
//	   └─► Client IP for rate limiting
//	           │
//	           ▼
//	       Handler (retrieves via GetIdentity)
//
// The docserver trusts these headers; authenticating them is the
// fronting proxy's job. Requests without any identity headers are
// anonymous with a generated session id.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/devdocs-ai/devdocs/services/quota"
)

const identityKey = "devdocs_identity"

// Header names the identity middleware reads.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserTier  = "X-User-Tier"
	HeaderSessionID = "X-Session-ID"
)

// Identity is who is making the request, as far as quota and rate
// limiting are concerned.
type Identity struct {
	// UserID is empty for anonymous callers.
	UserID string

	// SessionID is always set; minted when the client sent none.
	SessionID string

	// Tier is the parsed access tier. Unknown header values resolve
	// to anonymous.
	Tier quota.Tier

	// ClientIP is the network identity used for rate limiting.
	ClientIP string
}

// IdentityMiddleware resolves the caller's identity and stores it in
// the context. When the client sent no session id, the minted one is
// echoed back in the X-Session-ID response header so the client can
// keep its quota identity across requests.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(HeaderSessionID)
		if sessionID == "" {
			sessionID = uuid.NewString()
			c.Header(HeaderSessionID, sessionID)
		}

		id := Identity{
			UserID:    c.GetHeader(HeaderUserID),
			SessionID: sessionID,
			Tier:      quota.ParseTier(c.GetHeader(HeaderUserTier)),
			ClientIP:  c.ClientIP(),
		}

		// A tier header without a user id is meaningless; quota
		// identity would still be the session. Keep the claimed tier
		// only for signed-in callers.
		if id.UserID == "" {
			id.Tier = quota.TierAnonymous
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// GetIdentity retrieves the request identity stored by
// IdentityMiddleware. The zero Identity is returned if the
// middleware did not run.
func GetIdentity(c *gin.Context) Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}
	}
	id, ok := v.(Identity)
	if !ok {
		return Identity{}
	}
	return id
}
