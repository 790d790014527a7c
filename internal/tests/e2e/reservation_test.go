//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/roomdesk/apiserver/config"
	"github.com/roomdesk/apiserver/internal/db"
)

type envelope struct {
	OK   bool            `json:"ok"`
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID int `json:"id"`
	} `json:"user"`
}

type roomResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestReservationLifecycle(t *testing.T) {
	suffix := time.Now().UnixNano()
	email := fmt.Sprintf("admin_%d@example.com", suffix)

	auth := registerUser(t, email, "testpass123!")
	promoteUserToAdmin(t, auth.User.ID)

	var room roomResponse
	status := doJSON(t, http.MethodPost, "/rooms", auth.Token, map[string]string{
		"name":              fmt.Sprintf("Room %d", suffix),
		"description":       "e2e",
		"responsible":       "Facilities",
		"responsible_email": "facilities@example.com",
	}, &room)
	if status != http.StatusCreated {
		t.Fatalf("create room status %d", status)
	}

	date := nextWeekday(time.Now().UTC().AddDate(0, 0, 2))
	request := map[string]any{
		"room_id":         room.ID,
		"requester_name":  "Ana",
		"requester_email": fmt.Sprintf("ana_%d@example.com", suffix),
		"area":            "Finance",
		"description":     "Planning",
		"date":            date,
		"start":           "10:00",
		"end":             "11:00",
	}

	var created envelope
	if status := doJSON(t, http.MethodPost, "/reservations", "", request, &created); status != http.StatusOK || !created.OK {
		t.Fatalf("create reservation status %d: %s", status, created.Msg)
	}
	if len(created.Code) != 8 {
		t.Fatalf("unexpected code %q", created.Code)
	}

	overlapping := map[string]any{}
	for k, v := range request {
		overlapping[k] = v
	}
	overlapping["requester_email"] = fmt.Sprintf("bob_%d@example.com", suffix)
	overlapping["start"], overlapping["end"] = "10:30", "11:30"
	var rejected envelope
	if status := doJSON(t, http.MethodPost, "/reservations", "", overlapping, &rejected); status != http.StatusBadRequest {
		t.Fatalf("expected overlap rejection, got %d", status)
	}

	var confirmed envelope
	if status := doJSON(t, http.MethodGet, "/reservations/confirm/"+created.Code, "", nil, &confirmed); status != http.StatusOK {
		t.Fatalf("confirm status %d: %s", status, confirmed.Msg)
	}
	var again envelope
	if status := doJSON(t, http.MethodGet, "/reservations/confirm/"+created.Code, "", nil, &again); status != http.StatusBadRequest {
		t.Fatalf("second confirm status %d", status)
	}

	var daily envelope
	if status := doJSON(t, http.MethodGet, fmt.Sprintf("/reservations/day/%s/%d", date, room.ID), "", nil, &daily); status != http.StatusOK {
		t.Fatalf("daily schedule status %d", status)
	}
	if !strings.Contains(string(daily.Data), `"confirmed"`) {
		t.Fatalf("daily schedule missing confirmed reservation: %s", daily.Data)
	}

	var exported envelope
	if status := doJSON(t, http.MethodPost, "/reservations/admin/snapshots", auth.Token, nil, &exported); status != http.StatusOK {
		t.Fatalf("export status %d: %s", status, exported.Msg)
	}

	var cancelled envelope
	if status := doJSON(t, http.MethodDelete, "/reservations/cancel/"+created.Code, "", nil, &cancelled); status != http.StatusOK {
		t.Fatalf("cancel status %d", status)
	}
	if !strings.Contains(string(cancelled.Data), `"removed":true`) {
		t.Fatalf("expected reservation to be removed: %s", cancelled.Data)
	}
}

func registerUser(t *testing.T, email, password string) authResponse {
	t.Helper()

	var parsed authResponse
	status := doJSON(t, http.MethodPost, "/users", "", map[string]string{
		"email":    email,
		"name":     "Test Admin",
		"area":     "IT",
		"password": password,
	}, &parsed)
	if status != http.StatusCreated {
		t.Fatalf("register status %d", status)
	}
	if parsed.Token == "" {
		t.Fatalf("missing token in register response")
	}
	return parsed
}

func promoteUserToAdmin(t *testing.T, id int) {
	t.Helper()

	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg.Database))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := conn.ExecContext(ctx, `UPDATE users SET role = 'admin' WHERE id = $1`, id); err != nil {
		t.Fatalf("promote user: %v", err)
	}
}

func doJSON(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				t.Fatalf("decode %s %s: %v: %s", method, path, err, data)
			}
		}
	}
	return resp.StatusCode
}

func nextWeekday(day time.Time) string {
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return day.Format("2006-01-02")
}
