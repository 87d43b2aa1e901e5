package constants

import (
	"time"
)

// Redis keys and TTL values for the upsell service
// Pattern: upsell:{module}:{kind}:{identifier}

// ================== TTL DURATIONS ==================

const (
	TTL_SESSION_LONG    = 24 * time.Hour   // abandoned selections are dropped after a day
	TTL_SESSION_DEFAULT = 2 * time.Hour    // a typical check-in window
	TTL_SUBMISSION      = 30 * time.Minute // submission status polling
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "upsell"
)

// ================== SELECTIONS MODULE ==================

const (
	CACHE_KEY_SELECTION_SESSION = CACHE_PREFIX + ":selections:session:" // + session-id
)

// ================== ORDERS MODULE ==================

const (
	CACHE_KEY_ORDER_SUBMISSION = CACHE_PREFIX + ":orders:submission:" // + submission-id
)

// ================== RATE LIMITING ==================

const (
	CACHE_KEY_RATE_LIMIT = CACHE_PREFIX + ":ratelimit:" // + type:ip
)

// ================== INVALIDATION PATTERNS ==================

const (
	PATTERN_INVALIDATE_SESSIONS_ALL = CACHE_PREFIX + ":selections:session:*"
)

// ================== HELPER FUNCTIONS ==================

func BuildSelectionSessionKey(sessionID string) string {
	return CACHE_KEY_SELECTION_SESSION + sessionID
}

func BuildSubmissionKey(submissionID string) string {
	return CACHE_KEY_ORDER_SUBMISSION + submissionID
}

func BuildRateLimitKey(limitType, clientIP string) string {
	return CACHE_KEY_RATE_LIMIT + limitType + ":" + clientIP
}
