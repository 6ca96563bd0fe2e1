package upstream_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-fleet-collect/upstream"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newClient(t *testing.T, h http.HandlerFunc) *upstream.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := upstream.New(srv.URL)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := upstream.New("ftp://example.com")
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, upstream.PathLogin, r.URL.Path)
		var body upstream.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.PassPhrase != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"access_token":"A1","refresh_token":"R1",
			"access_expires_at":1767225600,"refresh_expires_at":"2026-01-08 00:00:00",
			"role":"operator",
			"user":{"id":"17","username":"amina","full_name":"Amina K","company_id":3,"stage_id":9,"rights":["assign_vehicle"]}
		}`))
	})

	resp, err := c.Login(context.Background(), "amina", "secret")
	require.NoError(t, err)
	require.Equal(t, "A1", resp.AccessToken)
	require.Equal(t, time.Unix(1767225600, 0).UTC(), resp.AccessExpiresAt.Time)
	require.Equal(t, time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC), resp.RefreshExpiresAt.Time)
	require.Equal(t, "17", resp.User.ID.String())
	require.Equal(t, "3", resp.User.CompanyID.String())

	_, err = c.Login(context.Background(), "amina", "wrong")
	var se *upstream.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusUnauthorized, se.Code)
	require.Equal(t, "invalid credentials", se.Message)
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantTok  string
		checkErr func(t *testing.T, err error)
	}{
		{
			name:    "success",
			status:  http.StatusOK,
			body:    `{"status":"success","token":"T2","refresh_token":"R2"}`,
			wantTok: "T2",
		},
		{
			name:   "non success status",
			status: http.StatusOK,
			body:   `{"status":"error","message":"refresh token expired"}`,
			checkErr: func(t *testing.T, err error) {
				var rr *upstream.RefreshRejectedError
				require.ErrorAs(t, err, &rr)
				require.Equal(t, "refresh token expired", rr.Message)
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   `bad gateway`,
			checkErr: func(t *testing.T, err error) {
				var se *upstream.StatusError
				require.ErrorAs(t, err, &se)
				require.Equal(t, http.StatusBadGateway, se.Code)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, upstream.PathRefresh, r.URL.Path)
				require.Empty(t, r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			resp, err := c.Refresh(context.Background(), "R1")
			if tt.checkErr != nil {
				tt.checkErr(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantTok, resp.Token)
		})
	}
}

func TestAssign(t *testing.T) {
	var got map[string]json.RawMessage
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer A1", r.Header.Get("Authorization"))
		got = nil
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		switch string(got["vehicle_id"]) {
		case "42":
			_, _ = w.Write([]byte(`{"message":"ok"}`))
		case "43":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"conflict","message":"crew already assigned","pending_assignment_ids":["11"]}`))
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"unknown vehicle"}`))
		}
	}).WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "A1"}))

	t.Run("single crew id is sent as a number", func(t *testing.T) {
		resp, err := c.Assign(context.Background(), 42, []int64{5})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "ok", resp.Message)
		require.JSONEq(t, `5`, string(got["crew_id"]))
	})

	t.Run("conflict decodes string ids", func(t *testing.T) {
		resp, err := c.Assign(context.Background(), 43, []int64{5, 6})
		require.NoError(t, err)
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		require.Equal(t, upstream.IDList{11}, resp.PendingAssignmentIDs)
		require.JSONEq(t, `[5,6]`, string(got["crew_id"]))
	})

	t.Run("hard failure", func(t *testing.T) {
		_, err := c.Assign(context.Background(), 1, []int64{5})
		var se *upstream.StatusError
		require.ErrorAs(t, err, &se)
		require.Equal(t, "unknown vehicle", se.Message)
	})
}

func TestConfirmAndCancel(t *testing.T) {
	var methods []string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, upstream.PathAssignmentsConfirm, r.URL.Path)
		var body upstream.ConfirmRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, []int64{7, 9}, body.AssignmentIDs)
		methods = append(methods, r.Method)
		_, _ = w.Write([]byte(`{"message":"done"}`))
	})

	_, err := c.ConfirmAssignments(context.Background(), []int64{7, 9})
	require.NoError(t, err)
	_, err = c.CancelAssignments(context.Background(), []int64{7, 9})
	require.NoError(t, err)
	require.Equal(t, []string{http.MethodPost, http.MethodDelete}, methods)
}

func TestLists_PassCompanyID(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "3", r.URL.Query().Get("company_id"))
		_, _ = w.Write([]byte(`[{"id":1}]`))
	})
	for _, fn := range []func(context.Context, int64) ([]byte, error){c.ListCrew, c.ListVehicles, c.Dashboard} {
		body, err := fn(context.Background(), 3)
		require.NoError(t, err)
		require.JSONEq(t, `[{"id":1}]`, string(body))
	}
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`1767225600`, time.Unix(1767225600, 0).UTC()},
		{`1767225600000`, time.UnixMilli(1767225600000).UTC()},
		{`"2026-01-01T00:00:00Z"`, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{`"2026-01-01 08:30:00"`, time.Date(2026, 1, 1, 8, 30, 0, 0, time.UTC)},
		{`null`, time.Time{}},
	}
	for _, tt := range tests {
		var ts upstream.Timestamp
		require.NoError(t, json.Unmarshal([]byte(tt.in), &ts), tt.in)
		require.True(t, tt.want.Equal(ts.Time), tt.in)
	}

	var ts upstream.Timestamp
	require.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestCrewIDs_Decode(t *testing.T) {
	var ids upstream.CrewIDs
	require.NoError(t, json.Unmarshal([]byte(`5`), &ids))
	require.Equal(t, upstream.CrewIDs{5}, ids)
	require.NoError(t, json.Unmarshal([]byte(`[5,"6"]`), &ids))
	require.Equal(t, upstream.CrewIDs{5, 6}, ids)
	require.Error(t, json.Unmarshal([]byte(`["x"]`), &ids))
}

func TestIDList_RejectsFractionalIDs(t *testing.T) {
	var ids upstream.IDList
	require.NoError(t, json.Unmarshal([]byte(`["11", 12]`), &ids))
	require.Equal(t, upstream.IDList{11, 12}, ids)

	require.Error(t, json.Unmarshal([]byte(`[7.5]`), &ids))
	require.Error(t, json.Unmarshal([]byte(`[7, 9.25]`), &ids))
}
