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
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/abcxyz/discourse-link/pkg/membership"
	"github.com/abcxyz/pkg/pointer"
	"github.com/abcxyz/pkg/testutil"
)

const (
	employeesGroupID int64 = 20
	engineersGroupID int64 = 21
	designersGroupID int64 = 22
)

var (
	adminsGroup     = membership.Group{ID: FakeAdminsGroupID, Name: membership.RoleAdmins, Automatic: true}
	moderatorsGroup = membership.Group{ID: FakeModeratorsGroupID, Name: membership.RoleModerators, Automatic: true}
	staffGroup      = membership.Group{ID: FakeStaffGroupID, Name: membership.RoleStaff, Automatic: true}
	trustLevelGroup = membership.Group{ID: FakeTrustLevelGroupID, Name: "trust_level_0", Automatic: true}
	employeesGroup  = membership.Group{ID: employeesGroupID, Name: "employees"}
	engineersGroup  = membership.Group{ID: engineersGroupID, Name: "engineers"}
	designersGroup  = membership.Group{ID: designersGroupID, Name: "designers"}
)

// seededForum returns a forum with three employees: alice is a member of
// engineers, bob is an admin with a title and carol is a moderator and a
// member of designers.
func seededForum() *FakeForum {
	forum := NewFakeForum()
	forum.AddGroup(employeesGroupID, "employees")
	forum.AddGroup(engineersGroupID, "engineers")
	forum.AddGroup(designersGroupID, "designers")

	forum.AddUser(&membership.User{
		ID:           101,
		Username:     "alice",
		Name:         "Alice",
		Email:        "alice@example.com",
		Groups:       []membership.Group{employeesGroup, engineersGroup},
		CustomFields: map[string]string{"1": "E101"},
	})
	forum.AddUser(&membership.User{
		ID:       102,
		Username: "bob",
		Name:     "Bob",
		Email:    "bob@example.com",
		Title:    pointer.To("Lead"),
		Groups:   []membership.Group{employeesGroup, adminsGroup},
	})
	forum.AddUser(&membership.User{
		ID:       103,
		Username: "carol",
		Name:     "Carol",
		Email:    "carol@example.com",
		Groups:   []membership.Group{employeesGroup, moderatorsGroup, designersGroup},
	})
	return forum
}

func newTestClient(tb testing.TB, forum *FakeForum, opts ...Option) *Client {
	tb.Helper()

	server := forum.Server()
	tb.Cleanup(server.Close)

	cfg := &Config{
		BaseURL:           server.URL,
		APIKey:            FakeAPIKey,
		APIUsername:       FakeAPIUsername,
		PrimaryGroup:      "employees",
		EmployeeIDFieldID: "1",
	}
	opts = append([]Option{WithBackoff(time.Millisecond, time.Millisecond)}, opts...)
	client, err := NewClient(cfg, opts...)
	if err != nil {
		tb.Fatalf("failed to create client: %v", err)
	}
	return client
}

// mutations filters the recorded calls down to those that change state.
func mutations(calls []string) []string {
	return slices.DeleteFunc(calls, func(c string) bool {
		return strings.HasPrefix(c, http.MethodGet+" ")
	})
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{
			name: "valid",
			cfg: &Config{
				BaseURL:           "https://forum.example.com",
				APIKey:            "key",
				APIUsername:       "system",
				PrimaryGroup:      "employees",
				EmployeeIDFieldID: "1",
			},
		},
		{
			name:    "nil_config",
			wantErr: "config is nil",
		},
		{
			name: "relative_url",
			cfg: &Config{
				BaseURL:           "forum.example.com",
				APIKey:            "key",
				APIUsername:       "system",
				PrimaryGroup:      "employees",
				EmployeeIDFieldID: "1",
			},
			wantErr: `base url "forum.example.com" must be an absolute url`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewClient(tc.cfg)
			if diff := testutil.DiffErrString(err, tc.wantErr); diff != "" {
				t.Error(diff)
			}
			if tc.wantErr != "" && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected error to wrap ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestClient_TestConnection(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, seededForum())
		if err := client.TestConnection(t.Context()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("rate_limited_then_success", func(t *testing.T) {
		t.Parallel()

		forum := seededForum()
		forum.FailNext(http.MethodGet, "/admin/users/list/active.json", 429, 429)
		client := newTestClient(t, forum)
		if err := client.TestConnection(t.Context()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("server_error", func(t *testing.T) {
		t.Parallel()

		forum := seededForum()
		forum.FailNext(http.MethodGet, "/admin/users/list/active.json", 500)
		client := newTestClient(t, forum)
		err := client.TestConnection(t.Context())
		if diff := testutil.DiffErrString(err, "failed to connect to discourse: GET /admin/users/list/active.json returned 500"); diff != "" {
			t.Error(diff)
		}
	})

	t.Run("bad_credentials", func(t *testing.T) {
		t.Parallel()

		server := seededForum().Server()
		defer server.Close()
		client, err := NewClient(&Config{
			BaseURL:           server.URL,
			APIKey:            "wrong",
			APIUsername:       FakeAPIUsername,
			PrimaryGroup:      "employees",
			EmployeeIDFieldID: "1",
		})
		if err != nil {
			t.Fatal(err)
		}
		err = client.TestConnection(t.Context())
		if diff := testutil.DiffErrString(err, "returned 403: invalid api credentials"); diff != "" {
			t.Error(diff)
		}
	})

	t.Run("non_200_success", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()
		client, err := NewClient(&Config{
			BaseURL:           server.URL,
			APIKey:            FakeAPIKey,
			APIUsername:       FakeAPIUsername,
			PrimaryGroup:      "employees",
			EmployeeIDFieldID: "1",
		})
		if err != nil {
			t.Fatal(err)
		}
		err = client.TestConnection(t.Context())
		if diff := testutil.DiffErrString(err, "unexpected status 204"); diff != "" {
			t.Error(diff)
		}
	})
}

func TestClient_GetUser(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, seededForum())

	want := &membership.User{
		ID:           101,
		Username:     "alice",
		Name:         "Alice",
		Email:        "alice@example.com",
		Active:       true,
		Approved:     true,
		Groups:       []membership.Group{employeesGroup, engineersGroup},
		EmployeeID:   "E101",
		CustomFields: map[string]string{"1": "E101"},
	}

	got, err := client.GetUser(t.Context(), 101)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetUser (-want, +got):\n%s", diff)
	}

	got, err = client.GetUserByUsername(t.Context(), "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetUserByUsername (-want, +got):\n%s", diff)
	}

	_, err = client.GetUser(t.Context(), 999)
	if diff := testutil.DiffErrString(err, "failed to fetch user 999: GET /admin/users/999.json returned 404"); diff != "" {
		t.Error(diff)
	}
}

func TestClient_GetUsers(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, seededForum(), WithConcurrency(2))

	cases := []struct {
		name          string
		offset        int
		limit         int
		wantUsernames []string
		wantTotal     int
		wantHasNext   bool
	}{
		{
			name:          "first_page",
			offset:        0,
			limit:         2,
			wantUsernames: []string{"alice", "bob"},
			wantTotal:     3,
			wantHasNext:   true,
		},
		{
			name:          "last_page",
			offset:        2,
			limit:         2,
			wantUsernames: []string{"carol"},
			wantTotal:     3,
			wantHasNext:   false,
		},
		{
			name:        "past_end",
			offset:      10,
			limit:       2,
			wantTotal:   3,
			wantHasNext: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			page, err := client.GetUsers(t.Context(), tc.offset, tc.limit)
			if err != nil {
				t.Fatalf("GetUsers: %v", err)
			}
			var usernames []string
			for _, u := range page.Users {
				if u.Email == "" {
					t.Errorf("user %s has no email", u.Username)
				}
				usernames = append(usernames, u.Username)
			}
			if diff := cmp.Diff(tc.wantUsernames, usernames); diff != "" {
				t.Errorf("usernames (-want, +got):\n%s", diff)
			}
			if page.Total != tc.wantTotal {
				t.Errorf("Total = %d, want %d", page.Total, tc.wantTotal)
			}
			if got := page.HasNext(); got != tc.wantHasNext {
				t.Errorf("HasNext() = %t, want %t", got, tc.wantHasNext)
			}
		})
	}
}

func TestClient_GetUsers_FetchFailure(t *testing.T) {
	t.Parallel()

	forum := seededForum()
	forum.FailNext(http.MethodGet, "/admin/users/102.json", 500)
	client := newTestClient(t, forum)

	_, err := client.GetUsers(t.Context(), 0, 10)
	if diff := testutil.DiffErrString(err, "GET /admin/users/102.json returned 500"); diff != "" {
		t.Error(diff)
	}
}

func TestClient_Groups(t *testing.T) {
	t.Parallel()

	forum := seededForum()
	forum.SetGroupPageSize(3)
	client := newTestClient(t, forum)

	page, err := client.GetGroups(t.Context(), 0)
	if err != nil {
		t.Fatalf("GetGroups: %v", err)
	}
	if got, want := len(page.Groups), 3; got != want {
		t.Errorf("len(Groups) = %d, want %d", got, want)
	}
	if !page.HasNext() {
		t.Errorf("expected first page to have a next page")
	}
	if got, want := page.Total, 7; got != want {
		t.Errorf("Total = %d, want %d", got, want)
	}

	all, err := client.ListAllGroups(t.Context())
	if err != nil {
		t.Fatalf("ListAllGroups: %v", err)
	}
	var names []string
	for _, g := range all {
		names = append(names, g.Name)
	}
	wantNames := []string{"admins", "moderators", "staff", "trust_level_0", "employees", "engineers", "designers"}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Errorf("ListAllGroups names (-want, +got):\n%s", diff)
	}

	group, err := client.GetGroup(t.Context(), "engineers")
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if diff := cmp.Diff(&membership.Group{ID: engineersGroupID, Name: "engineers", UserCount: 1}, group); diff != "" {
		t.Errorf("GetGroup (-want, +got):\n%s", diff)
	}

	_, err = client.GetGroup(t.Context(), "missing")
	if diff := testutil.DiffErrString(err, "failed to fetch group missing"); diff != "" {
		t.Error(diff)
	}
}

func TestClient_UpdateUser(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		userID        int64
		modify        func(u *membership.User)
		failures      map[string][]int
		wantMutations []string
		wantGroupIDs  []int64
		wantErr       string
		check         func(t *testing.T, forum *FakeForum, got *membership.User)
	}{
		{
			name:   "roles_and_groups",
			userID: 103,
			modify: func(u *membership.User) {
				u.Groups = []membership.Group{employeesGroup, engineersGroup, adminsGroup}
			},
			wantMutations: []string{
				"PUT /u/carol.json",
				"PUT /admin/users/103/revoke_moderation.json",
				"DELETE /admin/users/103/groups/22",
				"PUT /admin/users/103/grant_admin.json",
				"PUT /groups/21/members.json",
			},
			wantGroupIDs: []int64{1, 3, 20, 21},
			check: func(t *testing.T, forum *FakeForum, got *membership.User) {
				t.Helper()
				if !got.Admin || got.Moderator {
					t.Errorf("Admin = %t, Moderator = %t, want admin only", got.Admin, got.Moderator)
				}
			},
		},
		{
			name:   "revoke_admin_keeps_staff_untouched",
			userID: 102,
			modify: func(u *membership.User) {
				u.Groups = []membership.Group{employeesGroup}
			},
			wantMutations: []string{
				"PUT /u/bob.json",
				"PUT /admin/users/102/revoke_admin.json",
			},
			wantGroupIDs: []int64{20},
		},
		{
			name:   "email_change_is_form_encoded",
			userID: 101,
			modify: func(u *membership.User) {
				u.Email = "alice@new.example.com"
			},
			wantMutations: []string{
				"PUT /u/alice.json",
				"PUT /u/alice/preferences/email.json",
			},
			wantGroupIDs: []int64{20, 21},
			check: func(t *testing.T, forum *FakeForum, got *membership.User) {
				t.Helper()
				if got.Email != "alice@new.example.com" {
					t.Errorf("Email = %q, want %q", got.Email, "alice@new.example.com")
				}
				if ct := forum.LastEmailContentType(); ct != contentTypeForm {
					t.Errorf("email content type = %q, want %q", ct, contentTypeForm)
				}
			},
		},
		{
			name:   "unset_title_is_not_sent",
			userID: 102,
			modify: func(u *membership.User) {
				u.Title = nil
				u.Name = "Robert"
			},
			wantMutations: []string{"PUT /u/bob.json"},
			wantGroupIDs:  []int64{1, 3, 20},
			check: func(t *testing.T, forum *FakeForum, got *membership.User) {
				t.Helper()
				if _, ok := forum.LastProfileUpdate()["title"]; ok {
					t.Errorf("profile update contains a title: %v", forum.LastProfileUpdate())
				}
				if diff := cmp.Diff(pointer.To("Lead"), got.Title); diff != "" {
					t.Errorf("Title (-want, +got):\n%s", diff)
				}
				if got.Name != "Robert" {
					t.Errorf("Name = %q, want %q", got.Name, "Robert")
				}
			},
		},
		{
			name:   "benign_conflict_is_success",
			userID: 101,
			modify: func(u *membership.User) {
				u.Groups = append(u.Groups, designersGroup)
			},
			failures: map[string][]int{
				"PUT /groups/22/members.json": {422},
			},
			wantMutations: []string{
				"PUT /u/alice.json",
				"PUT /groups/22/members.json",
			},
			wantGroupIDs: []int64{20, 21},
		},
		{
			name:   "failure_stops_plan",
			userID: 103,
			modify: func(u *membership.User) {
				u.Groups = []membership.Group{employeesGroup, moderatorsGroup, engineersGroup, adminsGroup}
			},
			failures: map[string][]int{
				"PUT /groups/21/members.json": {500},
			},
			wantMutations: []string{
				"PUT /u/carol.json",
				"DELETE /admin/users/103/groups/22",
				"PUT /admin/users/103/grant_admin.json",
				"PUT /groups/21/members.json",
			},
			wantGroupIDs: []int64{1, 2, 3, 20},
			wantErr:      "PUT /groups/21/members.json returned 500",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			forum := seededForum()
			for key, statuses := range tc.failures {
				method, path, _ := strings.Cut(key, " ")
				forum.FailNext(method, path, statuses...)
			}
			client := newTestClient(t, forum)

			original, err := client.GetUser(t.Context(), tc.userID)
			if err != nil {
				t.Fatalf("GetUser: %v", err)
			}
			desired := original.Clone()
			tc.modify(desired)

			got, err := client.UpdateUser(t.Context(), original, desired, "")
			if diff := testutil.DiffErrString(err, tc.wantErr); diff != "" {
				t.Error(diff)
			}
			if diff := cmp.Diff(tc.wantMutations, mutations(forum.Calls())); diff != "" {
				t.Errorf("mutations (-want, +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.wantGroupIDs, forum.GroupIDs(tc.userID)); diff != "" {
				t.Errorf("group ids (-want, +got):\n%s", diff)
			}
			if err != nil {
				return
			}
			gotIDs := make([]int64, 0, len(got.Groups))
			for _, g := range got.Groups {
				gotIDs = append(gotIDs, g.ID)
			}
			if diff := cmp.Diff(tc.wantGroupIDs, gotIDs); diff != "" {
				t.Errorf("returned group ids (-want, +got):\n%s", diff)
			}
			if tc.check != nil {
				tc.check(t, forum, got)
			}
		})
	}
}

func TestClient_UpdateUser_ResolvesID(t *testing.T) {
	t.Parallel()

	forum := seededForum()
	client := newTestClient(t, forum)

	original := &membership.User{Username: "alice", Groups: []membership.Group{employeesGroup, engineersGroup}}
	desired := &membership.User{Groups: []membership.Group{employeesGroup}}

	if _, err := client.UpdateUser(t.Context(), original, desired, "alice"); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if diff := cmp.Diff([]string{"DELETE /admin/users/101/groups/21"}, mutations(forum.Calls())); diff != "" {
		t.Errorf("mutations (-want, +got):\n%s", diff)
	}
}

func TestClient_CreateUser(t *testing.T) {
	t.Parallel()

	forum := seededForum()
	client := newTestClient(t, forum, WithPasswordGenerator(func() string {
		return "generated-password"
	}))

	intent := &membership.User{
		Username:   "dave",
		Name:       "Dave",
		Email:      "dave@example.com",
		Title:      pointer.To("Engineer"),
		EmployeeID: "E200",
		Groups:     []membership.Group{employeesGroup, moderatorsGroup},
	}

	got, err := client.CreateUser(t.Context(), intent)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	want := &membership.User{
		ID:           1001,
		Username:     "dave",
		Name:         "Dave",
		Email:        "dave@example.com",
		Active:       true,
		Approved:     true,
		Moderator:    true,
		Groups:       []membership.Group{moderatorsGroup, staffGroup, trustLevelGroup, employeesGroup},
		Title:        pointer.To("Engineer"),
		EmployeeID:   "E200",
		CustomFields: map[string]string{"1": "E200"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CreateUser (-want, +got):\n%s", diff)
	}

	wantMutations := []string{
		"POST /users.json",
		"PUT /u/dave.json",
		"PUT /admin/users/1001/grant_moderation.json",
		"PUT /groups/20/members.json",
	}
	if diff := cmp.Diff(wantMutations, mutations(forum.Calls())); diff != "" {
		t.Errorf("mutations (-want, +got):\n%s", diff)
	}

	if _, err := client.CreateUser(t.Context(), &membership.User{Username: "alice", Email: "other@example.com"}); err == nil {
		t.Errorf("expected error creating a duplicate username")
	} else if diff := testutil.DiffErrString(err, "failed to create user alice: Username is not available"); diff != "" {
		t.Error(diff)
	}

	_, err = client.CreateUser(t.Context(), &membership.User{Username: "erin"})
	if diff := testutil.DiffErrString(err, "username and email are required"); diff != "" {
		t.Error(diff)
	}
}

func TestClient_Mutations(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		call     func(t *testing.T, c *Client) error
		failures map[string][]int
		wantCall string
		wantErr  string
		check    func(t *testing.T, forum *FakeForum)
	}{
		{
			name:     "suspend",
			call:     func(t *testing.T, c *Client) error { return c.SuspendUser(t.Context(), 101) },
			wantCall: "PUT /admin/users/101/suspend.json",
			check: func(t *testing.T, forum *FakeForum) {
				t.Helper()
				if !forum.User(101).Suspended {
					t.Errorf("expected user to be suspended")
				}
			},
		},
		{
			name:     "unsuspend_when_not_suspended_is_benign",
			call:     func(t *testing.T, c *Client) error { return c.UnsuspendUser(t.Context(), 101) },
			wantCall: "PUT /admin/users/101/unsuspend.json",
		},
		{
			name:     "grant_admin_to_admin_is_benign",
			call:     func(t *testing.T, c *Client) error { return c.GrantAdmin(t.Context(), 102) },
			wantCall: "PUT /admin/users/102/grant_admin.json",
		},
		{
			name:     "grant_moderator",
			call:     func(t *testing.T, c *Client) error { return c.GrantModerator(t.Context(), 101) },
			wantCall: "PUT /admin/users/101/grant_moderation.json",
			check: func(t *testing.T, forum *FakeForum) {
				t.Helper()
				if diff := cmp.Diff([]int64{2, 3, 20, 21}, forum.GroupIDs(101)); diff != "" {
					t.Errorf("group ids (-want, +got):\n%s", diff)
				}
			},
		},
		{
			name:     "revoke_moderator_server_error",
			call:     func(t *testing.T, c *Client) error { return c.RevokeModerator(t.Context(), 103) },
			failures: map[string][]int{"PUT /admin/users/103/revoke_moderation.json": {500}},
			wantCall: "PUT /admin/users/103/revoke_moderation.json",
			wantErr:  "failed to revoke moderation from user 103: PUT /admin/users/103/revoke_moderation.json returned 500",
		},
		{
			name:     "forgot_password",
			call:     func(t *testing.T, c *Client) error { return c.ForgotPassword(t.Context(), "alice") },
			wantCall: "POST /session/forgot_password.json",
		},
		{
			name:     "remove_from_group_not_member_is_benign",
			call:     func(t *testing.T, c *Client) error { return c.RemoveFromGroup(t.Context(), 101, designersGroupID) },
			wantCall: "DELETE /admin/users/101/groups/22",
		},
		{
			name:     "remove_from_automatic_group_is_benign",
			call:     func(t *testing.T, c *Client) error { return c.RemoveFromGroup(t.Context(), 102, FakeAdminsGroupID) },
			wantCall: "DELETE /admin/users/102/groups/1",
			check: func(t *testing.T, forum *FakeForum) {
				t.Helper()
				if diff := cmp.Diff([]int64{1, 3, 20}, forum.GroupIDs(102)); diff != "" {
					t.Errorf("group ids (-want, +got):\n%s", diff)
				}
			},
		},
		{
			name:     "delete",
			call:     func(t *testing.T, c *Client) error { return c.DeleteUser(t.Context(), 103) },
			wantCall: "DELETE /admin/users/103.json",
			check: func(t *testing.T, forum *FakeForum) {
				t.Helper()
				if u := forum.User(103); u != nil {
					t.Errorf("expected user to be deleted, got %v", u)
				}
			},
		},
		{
			name:     "delete_missing",
			call:     func(t *testing.T, c *Client) error { return c.DeleteUser(t.Context(), 999) },
			wantCall: "DELETE /admin/users/999.json",
			wantErr:  "failed to delete user 999: DELETE /admin/users/999.json returned 404",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			forum := seededForum()
			for key, statuses := range tc.failures {
				method, path, _ := strings.Cut(key, " ")
				forum.FailNext(method, path, statuses...)
			}
			client := newTestClient(t, forum)

			err := tc.call(t, client)
			if diff := testutil.DiffErrString(err, tc.wantErr); diff != "" {
				t.Error(diff)
			}
			if diff := cmp.Diff([]string{tc.wantCall}, forum.Calls()); diff != "" {
				t.Errorf("calls (-want, +got):\n%s", diff)
			}
			if tc.check != nil {
				tc.check(t, forum)
			}
		})
	}
}
