package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-fleet-collect/internal/utils"
)

// LoginRequest is the credential exchange body.
type LoginRequest struct {
	Username   string `json:"username"`
	PassPhrase string `json:"pass_phrase"`
}

// LoginResponse is returned by a successful credential exchange.
type LoginResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  Timestamp `json:"access_expires_at"`
	RefreshExpiresAt Timestamp `json:"refresh_expires_at"`
	Role             string    `json:"role"`
	User             LoginUser `json:"user"`
}

type LoginUser struct {
	ID        json.Number     `json:"id"`
	Username  string          `json:"username"`
	FullName  string          `json:"full_name"`
	CompanyID json.Number     `json:"company_id"`
	StageID   json.Number     `json:"stage_id"`
	Rights    []string        `json:"rights"`
	Stats     json.RawMessage `json:"stats,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse is the token refresh body; Status must be "success".
type RefreshResponse struct {
	Status       string `json:"status"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	Message      string `json:"message,omitempty"`
}

// AssignRequest links a vehicle to one or more crew members.
type AssignRequest struct {
	VehicleID int64   `json:"vehicle_id"`
	CrewID    CrewIDs `json:"crew_id"`
}

// AssignResponse covers both the applied and the conflict shapes; the
// caller decides which by StatusCode and PendingAssignmentIDs.
type AssignResponse struct {
	StatusCode           int    `json:"-"`
	Message              string `json:"message,omitempty"`
	Error                string `json:"error,omitempty"`
	Explanation          string `json:"details,omitempty"`
	PendingAssignmentIDs IDList `json:"pending_assignment_ids,omitempty"`
}

type ConfirmRequest struct {
	AssignmentIDs []int64 `json:"assignment_ids"`
}

type MessageResponse struct {
	Message string `json:"message,omitempty"`
	Success *bool  `json:"success,omitempty"`
}

// CrewIDs encodes as a bare number for a single id and as an array
// otherwise, and decodes either form.
type CrewIDs []int64

func (c CrewIDs) MarshalJSON() ([]byte, error) {
	if len(c) == 1 {
		return json.Marshal(c[0])
	}
	return json.Marshal([]int64(c))
}

func (c *CrewIDs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var ids IDList
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		*c = CrewIDs(ids)
		return nil
	}
	id, err := parseID(data)
	if err != nil {
		return err
	}
	*c = CrewIDs{id}
	return nil
}

// IDList decodes arrays of numbers or numeric strings, e.g. ["11", 12].
type IDList []int64

func (l *IDList) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("id list: %w", err)
	}
	if raw == nil {
		*l = nil
		return nil
	}
	ids := utils.ToInt64Slice(raw)
	if len(ids) != len(raw) {
		return fmt.Errorf("id list: non-integer id in %s", string(data))
	}
	*l = ids
	return nil
}

func parseID(data []byte) (int64, error) {
	s := strings.Trim(string(data), `"`)
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %s", string(data))
	}
	return id, nil
}

// Timestamp accepts unix seconds, unix milliseconds, RFC3339 and the
// "2006-01-02 15:04:05" layout the upstream uses for datetimes.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			t.Time = time.UnixMilli(n).UTC()
		} else {
			t.Time = time.Unix(n, 0).UTC()
		}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}
