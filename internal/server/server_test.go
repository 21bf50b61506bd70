package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"osrs-tracker/internal/api"
	"osrs-tracker/internal/repository"
	"osrs-tracker/internal/server"
	"osrs-tracker/internal/service"
	"osrs-tracker/internal/testutil"

	"github.com/rs/zerolog"
)

type stubProvider struct {
	xp    int64
	calls int
}

func (p *stubProvider) GetPlayerStats(_ context.Context, _ string) (*api.PlayerStatsResponse, error) {
	p.calls++
	xp := p.xp + int64(p.calls)*50
	return &api.PlayerStatsResponse{
		Level: 100,
		XP:    xp,
		Skills: []api.RawSkill{
			{Rank: 1, Level: 100, XP: xp},
		},
		Activities: []api.RawActivity{
			{Rank: 500, Score: 10},
		},
	}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := testutil.OpenTestDB(t)
	logger := zerolog.Nop()

	players := repository.NewPlayerRepository(db, logger)
	groups := repository.NewGroupRepository(db, logger)
	gains := repository.NewGainsRepository(db, logger)
	engine := service.NewGainsEngine(players, gains, logger)
	playerSvc := service.NewPlayerService(&stubProvider{xp: 100}, players, engine, logger)
	groupSvc := service.NewGroupService(groups, players, gains, engine, logger)

	mux := http.NewServeMux()
	server.NewTrackerServer(playerSvc, groupSvc, logger).Routes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestGetPlayerEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/players/get-player?username=Zezima")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body := decodeBody(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if body["success"] != true {
		t.Errorf("success = %v, want true (%v)", body["success"], body["message"])
	}
	player, ok := body["player"].(map[string]any)
	if !ok {
		t.Fatalf("missing player in response: %v", body)
	}
	if player["username"] != "zezima" {
		t.Errorf("player.username = %v, want zezima", player["username"])
	}
}

func TestGetPlayerMissingUsername(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/players/get-player")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body := decodeBody(t, resp)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
}

func TestGetGainsInvalidPeriod(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/players/get-gains?period=yearly&username=zezima")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body := decodeBody(t, resp)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unrecognized period", resp.StatusCode)
	}
	if msg, _ := body["message"].(string); msg != "Invalid period" {
		t.Errorf("message = %q, want Invalid period", msg)
	}
}

func TestGroupLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	// Ingest two players so membership resolution finds them.
	for _, u := range []string{"alice", "bob"} {
		resp, err := http.Get(srv.URL + "/players/get-player?username=" + u)
		if err != nil {
			t.Fatalf("ingest %s failed: %v", u, err)
		}
		resp.Body.Close()
	}

	resp, err := http.Post(srv.URL+"/groups/create-group?groupName=G1", "application/json", nil)
	if err != nil {
		t.Fatalf("create-group failed: %v", err)
	}
	if body := decodeBody(t, resp); body["success"] != true {
		t.Fatalf("create-group: %v", body)
	}

	// Duplicate name is a conflict.
	resp, err = http.Post(srv.URL+"/groups/create-group?groupName=G1", "application/json", nil)
	if err != nil {
		t.Fatalf("create-group repeat failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/groups/add-members-to-group?groupName=G1",
		"application/json", strings.NewReader(`{"groupMembers":["alice","bob","alice"]}`))
	if err != nil {
		t.Fatalf("add-members failed: %v", err)
	}
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("add-members: %v", body)
	}
	if msg, _ := body["message"].(string); !strings.HasPrefix(msg, "2 ") {
		t.Errorf("add-members message = %q, want 2 added", msg)
	}

	resp, err = http.Get(srv.URL + "/groups/get-group-id?groupName=G1")
	if err != nil {
		t.Fatalf("get-group-id failed: %v", err)
	}
	body = decodeBody(t, resp)
	if id, _ := body["groupId"].(string); id == "" {
		t.Errorf("get-group-id returned no id: %v", body)
	}
}

func TestGroupGainsOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	// Two ingests give alice two snapshots inside today's window.
	for i := 0; i < 2; i++ {
		resp, err := http.Get(srv.URL + "/players/get-player?username=alice")
		if err != nil {
			t.Fatalf("ingest failed: %v", err)
		}
		resp.Body.Close()
	}

	resp, err := http.Post(srv.URL+"/groups/create-group?groupName=G1", "application/json", nil)
	if err != nil {
		t.Fatalf("create-group failed: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/groups/add-members-to-group?groupName=G1",
		"application/json", strings.NewReader(`{"groupMembers":["alice"]}`))
	if err != nil {
		t.Fatalf("add-members failed: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/groups/get-group-gains?period=daily&groupName=G1")
	if err != nil {
		t.Fatalf("get-group-gains failed: %v", err)
	}
	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("get-group-gains: %v", body)
	}
	if processed, _ := body["membersProcessed"].(float64); processed != 1 {
		t.Errorf("membersProcessed = %v, want 1", body["membersProcessed"])
	}

	resp, err = http.Get(srv.URL + "/groups/group-rankings?period=daily&groupName=G1")
	if err != nil {
		t.Fatalf("group-rankings failed: %v", err)
	}
	body = decodeBody(t, resp)
	if body["success"] != true {
		t.Fatalf("group-rankings: %v", body)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}
}
