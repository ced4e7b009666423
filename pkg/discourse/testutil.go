// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package discourse

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/abcxyz/discourse-link/pkg/membership"
)

// Credentials and seeded group ids used by FakeForum.
const (
	FakeAPIKey      = "test-api-key"
	FakeAPIUsername = "system"

	FakeAdminsGroupID     int64 = 1
	FakeModeratorsGroupID int64 = 2
	FakeStaffGroupID      int64 = 3
	FakeTrustLevelGroupID int64 = 10
)

type fakeUser struct {
	id         int64
	username   string
	name       string
	email      string
	title      string
	suspended  bool
	groupIDs   map[int64]struct{}
	userFields map[string]string
}

// FakeForum is an in-memory forum served over HTTP for tests.
type FakeForum struct {
	mu sync.Mutex

	users         map[int64]*fakeUser
	groups        map[int64]*apiGroup
	nextUserID    int64
	groupPageSize int

	failures map[string][]int
	calls    []string

	lastProfileUpdate map[string]any
	lastEmailContent  string
}

// NewFakeForum returns a forum seeded with the admins, moderators, staff
// and trust_level_0 groups.
func NewFakeForum() *FakeForum {
	f := &FakeForum{
		users:         make(map[int64]*fakeUser),
		groups:        make(map[int64]*apiGroup),
		nextUserID:    1000,
		groupPageSize: 36,
		failures:      make(map[string][]int),
	}
	f.AddGroup(FakeAdminsGroupID, membership.RoleAdmins)
	f.AddGroup(FakeModeratorsGroupID, membership.RoleModerators)
	f.AddGroup(FakeStaffGroupID, membership.RoleStaff)
	f.AddGroup(FakeTrustLevelGroupID, "trust_level_0")
	f.groups[FakeAdminsGroupID].Automatic = true
	f.groups[FakeModeratorsGroupID].Automatic = true
	f.groups[FakeStaffGroupID].Automatic = true
	f.groups[FakeTrustLevelGroupID].Automatic = true
	return f
}

// AddGroup adds a group.
func (f *FakeForum) AddGroup(id int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[id] = &apiGroup{ID: id, Name: name}
}

// SetGroupPageSize sets how many groups the listing returns per page.
func (f *FakeForum) SetGroupPageSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupPageSize = n
}

// AddUser adds a user with the given groups. Admin and moderator flags
// follow membership of the corresponding groups.
func (f *FakeForum) AddUser(u *membership.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fu := &fakeUser{
		id:         u.ID,
		username:   u.Username,
		name:       u.Name,
		email:      u.Email,
		suspended:  u.Suspended,
		groupIDs:   make(map[int64]struct{}),
		userFields: maps.Clone(u.CustomFields),
	}
	if u.Title != nil {
		fu.title = *u.Title
	}
	for _, g := range u.Groups {
		fu.groupIDs[g.ID] = struct{}{}
	}
	f.users[u.ID] = fu
	f.syncStaff(fu)
}

// FailNext makes the next calls to method and path return the given
// statuses, one per call, before the route is served normally.
func (f *FakeForum) FailNext(method, path string, statuses ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := method + " " + path
	f.failures[key] = append(f.failures[key], statuses...)
}

// Calls returns every "METHOD path" received, in order.
func (f *FakeForum) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// LastProfileUpdate returns the last profile update body received.
func (f *FakeForum) LastProfileUpdate() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastProfileUpdate
}

// LastEmailContentType returns the content type of the last email update.
func (f *FakeForum) LastEmailContentType() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastEmailContent
}

// User returns the stored state of a user, or nil.
func (f *FakeForum) User(id int64) *membership.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	fu, ok := f.users[id]
	if !ok {
		return nil
	}
	u := f.toAPIUser(fu).toUser("")
	u.Email = fu.email
	u.CustomFields = maps.Clone(fu.userFields)
	return u
}

// GroupIDs returns the sorted group ids of a user.
func (f *FakeForum) GroupIDs(id int64) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	fu, ok := f.users[id]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(fu.groupIDs))
}

// syncStaff keeps the derived staff group in line with admin and
// moderator membership. Callers hold f.mu.
func (f *FakeForum) syncStaff(fu *fakeUser) {
	_, admin := fu.groupIDs[FakeAdminsGroupID]
	_, moderator := fu.groupIDs[FakeModeratorsGroupID]
	if admin || moderator {
		fu.groupIDs[FakeStaffGroupID] = struct{}{}
	} else {
		delete(fu.groupIDs, FakeStaffGroupID)
	}
}

func (f *FakeForum) toAPIUser(fu *fakeUser) *apiUser {
	u := &apiUser{
		ID:         fu.id,
		Username:   fu.username,
		Name:       fu.name,
		Active:     true,
		Approved:   true,
		UserFields: maps.Clone(fu.userFields),
	}
	if fu.title != "" {
		u.Title = &fu.title
	}
	if fu.suspended {
		at := "2025-01-01T00:00:00Z"
		u.SuspendedAt = &at
	}
	_, u.Admin = fu.groupIDs[FakeAdminsGroupID]
	_, u.Moderator = fu.groupIDs[FakeModeratorsGroupID]
	for _, id := range slices.Sorted(maps.Keys(fu.groupIDs)) {
		if g, ok := f.groups[id]; ok {
			u.Groups = append(u.Groups, *g)
		}
	}
	return u
}

func (f *FakeForum) userByName(name string) *fakeUser {
	for _, u := range f.users {
		if u.username == name {
			return u
		}
	}
	return nil
}

func (f *FakeForum) userByPath(w http.ResponseWriter, r *http.Request, wildcard string) *fakeUser {
	id, err := strconv.ParseInt(strings.TrimSuffix(r.PathValue(wildcard), ".json"), 10, 64)
	if err != nil {
		writeFakeError(w, http.StatusBadRequest, "invalid user id")
		return nil
	}
	u, ok := f.users[id]
	if !ok {
		writeFakeError(w, http.StatusNotFound, "user not found")
		return nil
	}
	return u
}

// Server starts an httptest server backed by the forum.
func (f *FakeForum) Server() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /admin/users/list/active.json", func(w http.ResponseWriter, r *http.Request) {
		users := make([]*apiUser, 0, len(f.users))
		for _, id := range slices.Sorted(maps.Keys(f.users)) {
			users = append(users, f.toAPIUser(f.users[id]))
		}
		writeFakeJSON(w, users)
	})

	mux.HandleFunc("GET /admin/users/{file}", func(w http.ResponseWriter, r *http.Request) {
		u := f.userByPath(w, r, "file")
		if u == nil {
			return
		}
		writeFakeJSON(w, f.toAPIUser(u))
	})

	mux.HandleFunc("DELETE /admin/users/{file}", func(w http.ResponseWriter, r *http.Request) {
		u := f.userByPath(w, r, "file")
		if u == nil {
			return
		}
		delete(f.users, u.id)
		writeFakeJSON(w, map[string]any{"deleted": true})
	})

	mux.HandleFunc("PUT /admin/users/{id}/{action}", func(w http.ResponseWriter, r *http.Request) {
		u := f.userByPath(w, r, "id")
		if u == nil {
			return
		}
		toggle := func(groupID int64, want bool) {
			_, has := u.groupIDs[groupID]
			if has == want {
				writeFakeError(w, http.StatusUnprocessableEntity, "already in requested state")
				return
			}
			if want {
				u.groupIDs[groupID] = struct{}{}
			} else {
				delete(u.groupIDs, groupID)
			}
			f.syncStaff(u)
			writeFakeJSON(w, map[string]any{"success": "OK"})
		}
		switch r.PathValue("action") {
		case "grant_admin.json":
			toggle(FakeAdminsGroupID, true)
		case "revoke_admin.json":
			toggle(FakeAdminsGroupID, false)
		case "grant_moderation.json":
			toggle(FakeModeratorsGroupID, true)
		case "revoke_moderation.json":
			toggle(FakeModeratorsGroupID, false)
		case "suspend.json":
			var req suspendRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SuspendUntil == "" || req.Reason == "" {
				writeFakeError(w, http.StatusBadRequest, "suspend_until and reason are required")
				return
			}
			if u.suspended {
				writeFakeError(w, http.StatusUnprocessableEntity, "user is already suspended")
				return
			}
			u.suspended = true
			writeFakeJSON(w, map[string]any{"suspension": req})
		case "unsuspend.json":
			if !u.suspended {
				writeFakeError(w, http.StatusUnprocessableEntity, "user is not suspended")
				return
			}
			u.suspended = false
			writeFakeJSON(w, map[string]any{"suspension": map[string]any{}})
		default:
			writeFakeError(w, http.StatusNotFound, "unknown action")
		}
	})

	mux.HandleFunc("DELETE /admin/users/{id}/groups/{group_id}", func(w http.ResponseWriter, r *http.Request) {
		u := f.userByPath(w, r, "id")
		if u == nil {
			return
		}
		groupID, err := strconv.ParseInt(r.PathValue("group_id"), 10, 64)
		if err != nil {
			writeFakeError(w, http.StatusBadRequest, "invalid group id")
			return
		}
		if _, ok := u.groupIDs[groupID]; !ok {
			writeFakeError(w, http.StatusUnprocessableEntity, "user is not a member")
			return
		}
		if g, ok := f.groups[groupID]; ok && g.Automatic {
			writeFakeError(w, http.StatusUnprocessableEntity, "automatic group membership cannot be changed")
			return
		}
		delete(u.groupIDs, groupID)
		writeFakeJSON(w, map[string]any{"success": "OK"})
	})

	mux.HandleFunc("POST /users.json", func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFakeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		if req.Password == "" {
			writeFakeJSON(w, &createUserResponse{Success: false, Message: "Password is required"})
			return
		}
		if f.userByName(req.Username) != nil {
			writeFakeJSON(w, &createUserResponse{Success: false, Message: "Username is not available"})
			return
		}
		f.nextUserID++
		u := &fakeUser{
			id:         f.nextUserID,
			username:   req.Username,
			name:       req.Name,
			email:      req.Email,
			groupIDs:   map[int64]struct{}{FakeTrustLevelGroupID: {}},
			userFields: req.UserFields,
		}
		f.users[u.id] = u
		writeFakeJSON(w, &createUserResponse{Success: true, Active: true, Message: "created", UserID: u.id})
	})

	mux.HandleFunc("GET /u/{file}", func(w http.ResponseWriter, r *http.Request) {
		u := f.userByName(strings.TrimSuffix(r.PathValue("file"), ".json"))
		if u == nil {
			writeFakeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeFakeJSON(w, &profileResponse{User: f.toAPIUser(u)})
	})

	mux.HandleFunc("GET /u/{username}/emails.json", func(w http.ResponseWriter, r *http.Request) {
		u := f.userByName(r.PathValue("username"))
		if u == nil {
			writeFakeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeFakeJSON(w, &emailsResponse{Email: u.email})
	})

	mux.HandleFunc("PUT /u/{file}", func(w http.ResponseWriter, r *http.Request) {
		u := f.userByName(strings.TrimSuffix(r.PathValue("file"), ".json"))
		if u == nil {
			writeFakeError(w, http.StatusNotFound, "user not found")
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeFakeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		f.lastProfileUpdate = body
		if v, ok := body["name"].(string); ok {
			u.name = v
		}
		if v, ok := body["title"].(string); ok {
			u.title = v
		}
		if fields, ok := body["user_fields"].(map[string]any); ok {
			if u.userFields == nil {
				u.userFields = make(map[string]string)
			}
			for k, v := range fields {
				u.userFields[k] = fmt.Sprint(v)
			}
		}
		writeFakeJSON(w, &updateUserResponse{Success: "OK", User: f.toAPIUser(u)})
	})

	mux.HandleFunc("PUT /u/{username}/preferences/email.json", func(w http.ResponseWriter, r *http.Request) {
		u := f.userByName(r.PathValue("username"))
		if u == nil {
			writeFakeError(w, http.StatusNotFound, "user not found")
			return
		}
		f.lastEmailContent = r.Header.Get("Content-Type")
		if err := r.ParseForm(); err != nil {
			writeFakeError(w, http.StatusBadRequest, "invalid form")
			return
		}
		email := r.PostForm.Get("email")
		if email == "" {
			writeFakeError(w, http.StatusBadRequest, "email is required")
			return
		}
		u.email = email
		writeFakeJSON(w, map[string]any{"success": "OK"})
	})

	mux.HandleFunc("POST /session/forgot_password.json", func(w http.ResponseWriter, r *http.Request) {
		var req forgotPasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Login == "" {
			writeFakeError(w, http.StatusBadRequest, "login is required")
			return
		}
		writeFakeJSON(w, map[string]any{"success": "OK", "user_found": f.userByName(req.Login) != nil})
	})

	mux.HandleFunc("GET /groups.json", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		ids := slices.Sorted(maps.Keys(f.groups))
		start := min(page*f.groupPageSize, len(ids))
		end := min(start+f.groupPageSize, len(ids))
		resp := &groupListResponse{TotalRowsGroup: len(ids)}
		for _, id := range ids[start:end] {
			resp.Groups = append(resp.Groups, *f.groupWithCount(id))
		}
		if end < len(ids) {
			resp.LoadMoreGroups = fmt.Sprintf("/groups?page=%d", page+1)
		}
		writeFakeJSON(w, resp)
	})

	mux.HandleFunc("GET /groups/{file}", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSuffix(r.PathValue("file"), ".json")
		for _, g := range f.groups {
			if g.Name == name {
				writeFakeJSON(w, &groupResponse{Group: f.groupWithCount(g.ID)})
				return
			}
		}
		writeFakeError(w, http.StatusNotFound, "group not found")
	})

	mux.HandleFunc("GET /groups/{name}/members.json", func(w http.ResponseWriter, r *http.Request) {
		var group *apiGroup
		for _, g := range f.groups {
			if g.Name == r.PathValue("name") {
				group = g
			}
		}
		if group == nil {
			writeFakeError(w, http.StatusNotFound, "group not found")
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 {
			limit = 50
		}
		var members []groupMember
		for _, id := range slices.Sorted(maps.Keys(f.users)) {
			u := f.users[id]
			if _, ok := u.groupIDs[group.ID]; ok {
				members = append(members, groupMember{ID: u.id, Username: u.username})
			}
		}
		resp := &memberListResponse{}
		resp.Meta.Total = len(members)
		resp.Meta.Offset = offset
		resp.Meta.Limit = limit
		start := min(offset, len(members))
		end := min(start+limit, len(members))
		resp.Members = append([]groupMember{}, members[start:end]...)
		writeFakeJSON(w, resp)
	})

	mux.HandleFunc("PUT /groups/{id}/members.json", func(w http.ResponseWriter, r *http.Request) {
		groupID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeFakeError(w, http.StatusBadRequest, "invalid group id")
			return
		}
		if _, ok := f.groups[groupID]; !ok {
			writeFakeError(w, http.StatusNotFound, "group not found")
			return
		}
		var req addMembersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFakeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		u := f.userByName(req.Usernames)
		if u == nil {
			writeFakeError(w, http.StatusNotFound, "user not found")
			return
		}
		if _, ok := u.groupIDs[groupID]; ok {
			writeFakeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("%s is already a member", u.username))
			return
		}
		u.groupIDs[groupID] = struct{}{}
		writeFakeJSON(w, map[string]any{"success": "OK", "usernames": []string{u.username}})
	})

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		key := r.Method + " " + r.URL.Path
		f.calls = append(f.calls, key)

		if r.Header.Get(headerAPIKey) != FakeAPIKey || r.Header.Get(headerAPIUsername) != FakeAPIUsername {
			writeFakeError(w, http.StatusForbidden, "invalid api credentials")
			return
		}
		if statuses := f.failures[key]; len(statuses) > 0 {
			f.failures[key] = statuses[1:]
			writeFakeError(w, statuses[0], "injected failure")
			return
		}
		mux.ServeHTTP(w, r)
	}))
}

func (f *FakeForum) groupWithCount(id int64) *apiGroup {
	g := *f.groups[id]
	for _, u := range f.users {
		if _, ok := u.groupIDs[id]; ok {
			g.UserCount++
		}
	}
	return &g
}

func writeFakeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func writeFakeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&errorBody{Errors: []string{msg}, ErrorType: "fake"})
}
