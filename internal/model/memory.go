// Package model defines the core memory data types.
package model

import "time"

// Vector is a float32 embedding vector.
type Vector = []float32

// Record is a long-term memory entry.
type Record struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	Embedding   Vector    `json:"-"`
	Importance  float64   `json:"importance"`
	AccessCount int       `json:"access_count"`
	CreatedAt   time.Time `json:"created_at"`
	LastAccess  time.Time `json:"last_access"`
}

// Turn is one row of the append-only session transcript.
type Turn struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Date      string    `json:"date"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Embedding Vector    `json:"-"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkingItem is a short-lived fact held in working memory.
type WorkingItem struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	LastAccess  time.Time `json:"last_access"`
	AccessCount int       `json:"access_count"`
	Source      string    `json:"source"`
}

// Tier selects which memory tier an operation targets.
type Tier string

const (
	TierLong  Tier = "long"
	TierShort Tier = "short"
	TierCache Tier = "cache"
	TierAll   Tier = "all"
)

// Categories.
const (
	CategoryIdentity   = "identity"
	CategoryPreference = "preference"
	CategorySchedule   = "schedule"
	CategoryImportant  = "important"
	CategoryProject    = "project"
	CategoryGeneral    = "general"
)

// Roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleNote      = "note"
)

// Working memory sources.
const (
	SourceExtracted  = "extracted"
	SourceUserInput  = "user_input"
	SourceToolResult = "tool_result"
	SourceContext    = "context"
	SourceKeyword    = "keyword"
)

// ValidCategories are the allowed record categories.
var ValidCategories = map[string]bool{
	CategoryIdentity:   true,
	CategoryPreference: true,
	CategorySchedule:   true,
	CategoryImportant:  true,
	CategoryProject:    true,
	CategoryGeneral:    true,
}

// ValidRoles are the allowed turn roles.
var ValidRoles = map[string]bool{
	RoleUser:      true,
	RoleAssistant: true,
	RoleNote:      true,
}

// ValidSources are the allowed working memory source tags.
var ValidSources = map[string]bool{
	SourceExtracted:  true,
	SourceUserInput:  true,
	SourceToolResult: true,
	SourceContext:    true,
	SourceKeyword:    true,
}

// ValidTiers are the tiers that Clear accepts.
var ValidTiers = map[Tier]bool{
	TierLong:  true,
	TierShort: true,
	TierCache: true,
	TierAll:   true,
}
