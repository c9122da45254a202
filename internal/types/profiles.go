package types

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// --- ENUM Types ---

// ProfileStatus represents the DB ENUM 'profile_status_enum'.
type ProfileStatus string

const (
	ProfileStatusDraft    ProfileStatus = "draft"    // Still being filled in
	ProfileStatusPending  ProfileStatus = "pending"  // Finalized, awaiting review
	ProfileStatusVerified ProfileStatus = "verified" // KYC checked by an admin
	ProfileStatusComplete ProfileStatus = "complete" // Fully onboarded
)

// Scan implements the sql.Scanner interface for ProfileStatus.
func (s *ProfileStatus) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan ProfileStatus: expected string or []byte, got %T", value)
		}
		strVal = string(bytesVal)
	}
	st, err := ParseProfileStatus(strVal)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Value implements the driver.Valuer interface for ProfileStatus.
func (s ProfileStatus) Value() (driver.Value, error) {
	if _, err := ParseProfileStatus(string(s)); err != nil {
		return nil, err
	}
	return string(s), nil
}

func ParseProfileStatus(s string) (ProfileStatus, error) {
	switch ProfileStatus(s) {
	case ProfileStatusDraft, ProfileStatusPending, ProfileStatusVerified, ProfileStatusComplete:
		return ProfileStatus(s), nil
	default:
		return "", fmt.Errorf("unknown ProfileStatus value: %s", s)
	}
}

// Document is a canonical profile document: canonical field name to a
// scalar (string, number, bool) or a one-level sub-object. Unset fields are
// absent, never nil.
type Document map[string]any

// Clone returns a copy that shares no maps with d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		if sub, ok := v.(map[string]any); ok {
			cp := make(map[string]any, len(sub))
			for sk, sv := range sub {
				cp[sk] = sv
			}
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}

// String returns the string value stored at key, or "" when it is absent or
// not a string.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// ProfileDraft holds the partially filled registration of a single user.
type ProfileDraft struct {
	UserID    uuid.UUID `json:"userId"`
	Data      Document  `json:"data"`
	UpdatedAt time.Time `json:"updatedAt"`
	// SupersededAt is set once a finalize has folded Data into the profile.
	// The next save starts a fresh draft.
	SupersededAt *time.Time `json:"supersededAt,omitempty"`
}

// Profile is the finalized (or in-progress) job-seeker profile.
type Profile struct {
	UserID               uuid.UUID     `json:"userId"`
	Data                 Document      `json:"data"`
	Status               ProfileStatus `json:"status"`
	IsDraft              bool          `json:"isDraft"`
	CompletionPercentage int           `json:"completionPercentage"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// ListProfilesParams filters the admin profile listing.
type ListProfilesParams struct {
	Page   int
	Limit  int
	Search string
	Status *ProfileStatus
}

// ProfileSummary is one row of the admin listing.
type ProfileSummary struct {
	UserID               uuid.UUID     `json:"userId"`
	Name                 string        `json:"name"`
	Email                string        `json:"email"`
	Mobile               string        `json:"mobile"`
	Status               ProfileStatus `json:"status"`
	IsDraft              bool          `json:"isDraft"`
	CompletionPercentage int           `json:"completionPercentage"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// ProfilePage is a paginated admin listing.
type ProfilePage struct {
	Profiles   []ProfileSummary `json:"profiles"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	TotalPages int              `json:"totalPages"`
}

// DashboardStats feeds the admin dashboard.
type DashboardStats struct {
	TotalProfiles int       `json:"totalProfiles"`
	Drafts        int       `json:"drafts"`
	Pending       int       `json:"pending"`
	Verified      int       `json:"verified"`
	Complete      int       `json:"complete"`
	NewLast30Days int       `json:"newLast30Days"`
	// ActiveLast30Days counts users who logged in within the window.
	ActiveLast30Days int `json:"activeLast30Days"`
	// ByMonth holds new registrations for the last six months, oldest first.
	ByMonth     []MonthlyCount `json:"byMonth"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// MonthlyCount is one bucket of a monthly series; Month is "2006-01".
type MonthlyCount struct {
	Month string `json:"month" example:"2026-05"`
	Count int    `json:"count"`
}

// UpdateStatusRequest is the body of an admin review action.
type UpdateStatusRequest struct {
	Status string `json:"status" example:"verified"`
}
