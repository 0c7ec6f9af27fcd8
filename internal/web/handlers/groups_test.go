package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomasrezac/photo-companion/internal/database"
	"github.com/tomasrezac/photo-companion/internal/database/mock"
)

func groupsFixture() (*mock.MockGroupStore, *GroupsHandler) {
	repo := mock.NewMockGroupStore()
	repo.AddGroup(database.DuplicateGroup{
		ID:        "group1",
		CreatedAt: time.Now().Add(-time.Hour),
		Members:   []string{"photo0001", "photo0002", "photo0003"},
		PairScores: map[string]float64{
			database.PairKey("photo0001", "photo0002"): 0.9,
			database.PairKey("photo0001", "photo0003"): 0.7,
		},
	})
	repo.AddGroup(database.DuplicateGroup{
		ID:        "group2",
		CreatedAt: time.Now(),
		Resolved:  true,
		Members:   []string{"photo0004", "photo0005"},
		PairScores: map[string]float64{
			database.PairKey("photo0004", "photo0005"): 0.95,
		},
	})
	return repo, NewGroupsHandler(database.NewGroupStore(repo))
}

func TestGroupsList(t *testing.T) {
	_, handler := groupsFixture()

	req := httptest.NewRequest("GET", "/api/v1/groups", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var result struct {
		Groups []GroupResponse `json:"groups"`
		Count  int             `json:"count"`
	}
	parseJSONResponse(t, recorder, &result)

	if result.Count != 1 {
		t.Fatalf("expected 1 unresolved group, got %d", result.Count)
	}
	g := result.Groups[0]
	if g.ID != "group1" {
		t.Errorf("expected group1, got %s", g.ID)
	}
	if g.Representative != "photo0001" {
		t.Errorf("expected representative photo0001, got %s", g.Representative)
	}
	if g.AverageSimilarity != 0.8 {
		t.Errorf("expected average similarity 0.8, got %f", g.AverageSimilarity)
	}
}

func TestGroupsListError(t *testing.T) {
	repo, handler := groupsFixture()
	repo.UnresolvedError = errors.New("db down")

	req := httptest.NewRequest("GET", "/api/v1/groups", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
}

func TestGroupsGet(t *testing.T) {
	_, handler := groupsFixture()

	req := httptest.NewRequest("GET", "/api/v1/groups/group1", nil)
	req = requestWithChiParams(req, map[string]string{"id": "group1"})
	recorder := httptest.NewRecorder()
	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result GroupResponse
	parseJSONResponse(t, recorder, &result)
	if len(result.Members) != 3 {
		t.Errorf("expected 3 members, got %d", len(result.Members))
	}
}

func TestGroupsGetNotFound(t *testing.T) {
	_, handler := groupsFixture()

	req := httptest.NewRequest("GET", "/api/v1/groups/nope", nil)
	req = requestWithChiParams(req, map[string]string{"id": "nope"})
	recorder := httptest.NewRecorder()
	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "group not found")
}

func TestGroupsResolve(t *testing.T) {
	repo, handler := groupsFixture()

	req := httptest.NewRequest("POST", "/api/v1/groups/group1/resolve", nil)
	req = requestWithChiParams(req, map[string]string{"id": "group1"})
	recorder := httptest.NewRecorder()
	handler.Resolve(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	g, err := repo.GetGroup(req.Context(), "group1")
	if err != nil {
		t.Fatalf("failed to read group back: %v", err)
	}
	if !g.Resolved {
		t.Error("expected group to be resolved")
	}
}

func TestGroupsResolveNotFound(t *testing.T) {
	_, handler := groupsFixture()

	req := httptest.NewRequest("POST", "/api/v1/groups/nope/resolve", nil)
	req = requestWithChiParams(req, map[string]string{"id": "nope"})
	recorder := httptest.NewRecorder()
	handler.Resolve(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestGroupsResolvePersistenceError(t *testing.T) {
	repo, handler := groupsFixture()
	repo.UpdateError = errors.New("connection reset")

	req := httptest.NewRequest("POST", "/api/v1/groups/group1/resolve", nil)
	req = requestWithChiParams(req, map[string]string{"id": "group1"})
	recorder := httptest.NewRecorder()
	handler.Resolve(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
}

func TestGroupsRemoveMember(t *testing.T) {
	repo, handler := groupsFixture()

	req := httptest.NewRequest("DELETE", "/api/v1/groups/group1/members/photo0002", nil)
	req = requestWithChiParams(req, map[string]string{"id": "group1", "photoUid": "photo0002"})
	recorder := httptest.NewRecorder()
	handler.RemoveMember(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	g, err := repo.GetGroup(req.Context(), "group1")
	if err != nil {
		t.Fatalf("failed to read group back: %v", err)
	}
	if g.HasMember("photo0002") {
		t.Error("expected photo0002 to be removed")
	}
	if g.Resolved {
		t.Error("expected group with 2 remaining members to stay unresolved")
	}
}

func TestGroupsRemoveMemberNotAMember(t *testing.T) {
	_, handler := groupsFixture()

	req := httptest.NewRequest("DELETE", "/api/v1/groups/group1/members/photo9999", nil)
	req = requestWithChiParams(req, map[string]string{"id": "group1", "photoUid": "photo9999"})
	recorder := httptest.NewRecorder()
	handler.RemoveMember(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}
