package store

import (
	"context"
	"testing"
	"time"

	"fleetportal/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustUser(t *testing.T, s *Store, externalID, username string) *domain.User {
	t.Helper()
	u, err := s.UpsertUser(context.Background(), &domain.User{
		ExternalID: externalID,
		Username:   username,
	})
	if err != nil {
		t.Fatalf("UpsertUser(%s): %v", externalID, err)
	}
	return u
}

func mustHost(t *testing.T, s *Store, owner *domain.User, hostID, address string) *domain.Host {
	t.Helper()
	h, err := s.CreateHost(context.Background(), &domain.Host{
		HostID:   hostID,
		OwnerID:  owner.ID,
		Name:     "host-" + hostID,
		Address:  address,
		Port:     5000,
		AgentKey: "key-" + hostID,
	})
	if err != nil {
		t.Fatalf("CreateHost(%s): %v", hostID, err)
	}
	return h
}

func TestUpsertUserCreateAndRefresh(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u := mustUser(t, s, "d-100", "alice")
	if u.ID == 0 {
		t.Fatal("created user has no id")
	}

	again, err := s.UpsertUser(ctx, &domain.User{ExternalID: "d-100", Username: "alice2"})
	if err != nil {
		t.Fatalf("UpsertUser refresh: %v", err)
	}
	if again.ID != u.ID {
		t.Fatalf("refresh created a new row: %d != %d", again.ID, u.ID)
	}
	if again.Username != "alice2" {
		t.Fatalf("Username = %q, want refreshed alice2", again.Username)
	}
}

func TestUpsertUserLinksPendingGrants(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	owner := mustUser(t, s, "d-owner", "owner")
	host := mustHost(t, s, owner, "AAA111", "10.0.0.1")

	// Grant to an identity that has never logged in.
	if _, err := s.CreateGrant(ctx, &domain.AccessGrant{
		HostID:      host.ID,
		ExternalID:  "d-late",
		Role:        domain.RoleOperator,
		GrantedByID: owner.ID,
	}); err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}

	late := mustUser(t, s, "d-late", "latecomer")

	grant, err := s.GrantFor(ctx, host.ID, late)
	if err != nil {
		t.Fatalf("GrantFor: %v", err)
	}
	if grant == nil {
		t.Fatal("pending grant not visible to the user")
	}
	if grant.UserID == nil || *grant.UserID != late.ID {
		t.Fatalf("grant not linked on first login: %+v", grant)
	}
	if grant.Role != domain.RoleOperator {
		t.Fatalf("Role = %s, want operator", grant.Role)
	}
}

func TestSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "d-1", "bob")
	now := time.Now()

	if err := s.SetSession(ctx, u.ID, "tok-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("SetSession: %v", err)
	}

	got, err := s.UserBySession(ctx, "tok-1", now)
	if err != nil {
		t.Fatalf("UserBySession: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("resolved wrong user: %d", got.ID)
	}

	// expired token
	if _, err := s.UserBySession(ctx, "tok-1", now.Add(2*time.Hour)); domain.KindOf(err) != domain.KindUnauthenticated {
		t.Fatalf("expired session kind = %s, want unauthenticated", domain.KindOf(err))
	}

	// unknown token
	if _, err := s.UserBySession(ctx, "nope", now); domain.KindOf(err) != domain.KindUnauthenticated {
		t.Fatalf("unknown session kind = %s, want unauthenticated", domain.KindOf(err))
	}

	if err := s.ClearSession(ctx, u.ID); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if _, err := s.UserBySession(ctx, "tok-1", now); domain.KindOf(err) != domain.KindUnauthenticated {
		t.Fatal("cleared session still resolves")
	}
}

func TestCreateHostDuplicateAddress(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	owner := mustUser(t, s, "d-1", "owner")
	other := mustUser(t, s, "d-2", "other")
	mustHost(t, s, owner, "AAA111", "10.0.0.1")

	_, err := s.CreateHost(ctx, &domain.Host{
		HostID: "BBB222", OwnerID: owner.ID, Name: "dup", Address: "10.0.0.1", Port: 5000, AgentKey: "k2",
	})
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("same owner+address kind = %s, want conflict", domain.KindOf(err))
	}

	// a different owner may register the same address
	if _, err := s.CreateHost(ctx, &domain.Host{
		HostID: "CCC333", OwnerID: other.ID, Name: "ok", Address: "10.0.0.1", Port: 5000, AgentKey: "k3",
	}); err != nil {
		t.Fatalf("other owner same address: %v", err)
	}
}

func TestHostLookups(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := mustUser(t, s, "d-1", "owner")
	h := mustHost(t, s, owner, "AAA111", "10.0.0.1")

	byID, err := s.HostByHostID(ctx, "AAA111")
	if err != nil || byID.ID != h.ID {
		t.Fatalf("HostByHostID: %v %+v", err, byID)
	}

	byKey, err := s.HostByAgentKey(ctx, "key-AAA111")
	if err != nil || byKey.ID != h.ID {
		t.Fatalf("HostByAgentKey: %v", err)
	}
	if _, err := s.HostByAgentKey(ctx, "bogus"); domain.KindOf(err) != domain.KindUnauthenticated {
		t.Fatalf("bogus key kind = %s, want unauthenticated", domain.KindOf(err))
	}

	if _, err := s.HostByHostID(ctx, "ZZZ999"); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("missing host kind = %s, want not_found", domain.KindOf(err))
	}
}

func TestTouchStatusAndLiveness(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := mustUser(t, s, "d-1", "owner")
	h := mustHost(t, s, owner, "AAA111", "10.0.0.1")

	seen := time.Now().Add(-5 * time.Minute)
	if err := s.TouchStatus(ctx, h.ID, "1.2.3", "renamed", seen); err != nil {
		t.Fatalf("TouchStatus: %v", err)
	}

	got, err := s.HostByHostID(ctx, "AAA111")
	if err != nil {
		t.Fatalf("HostByHostID: %v", err)
	}
	if !got.Online || got.Version != "1.2.3" || got.Name != "renamed" {
		t.Fatalf("touch not applied: %+v", got)
	}

	stale, err := s.ListStaleOnline(ctx, time.Now().Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("ListStaleOnline: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != h.ID {
		t.Fatalf("stale = %+v, want the touched host", stale)
	}

	if err := s.MarkOffline(ctx, []uint{h.ID}); err != nil {
		t.Fatalf("MarkOffline: %v", err)
	}
	got, _ = s.HostByHostID(ctx, "AAA111")
	if got.Online {
		t.Fatal("host still online after MarkOffline")
	}

	stale, err = s.ListStaleOnline(ctx, time.Now().Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("ListStaleOnline: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("offline host still listed as stale: %+v", stale)
	}
}

func TestDeleteHostCascadesGrants(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := mustUser(t, s, "d-1", "owner")
	viewer := mustUser(t, s, "d-2", "viewer")
	h := mustHost(t, s, owner, "AAA111", "10.0.0.1")

	if _, err := s.CreateGrant(ctx, &domain.AccessGrant{
		HostID: h.ID, ExternalID: viewer.ExternalID, UserID: &viewer.ID,
		Role: domain.RoleViewer, GrantedByID: owner.ID,
	}); err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}

	if err := s.DeleteHost(ctx, h.ID); err != nil {
		t.Fatalf("DeleteHost: %v", err)
	}

	shared, err := s.HostsSharedWith(ctx, viewer)
	if err != nil {
		t.Fatalf("HostsSharedWith: %v", err)
	}
	if len(shared) != 0 {
		t.Fatalf("grants survived host deletion: %+v", shared)
	}
}

func TestGrantConflictAndUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := mustUser(t, s, "d-1", "owner")
	h := mustHost(t, s, owner, "AAA111", "10.0.0.1")

	g, err := s.CreateGrant(ctx, &domain.AccessGrant{
		HostID: h.ID, ExternalID: "d-x", Role: domain.RoleViewer, GrantedByID: owner.ID,
	})
	if err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}

	_, err = s.CreateGrant(ctx, &domain.AccessGrant{
		HostID: h.ID, ExternalID: "d-x", Role: domain.RoleAdmin, GrantedByID: owner.ID,
	})
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("duplicate grant kind = %s, want conflict", domain.KindOf(err))
	}

	if err := s.UpdateGrantRole(ctx, h.ID, g.ID, domain.RoleAdmin); err != nil {
		t.Fatalf("UpdateGrantRole: %v", err)
	}
	got, err := s.GrantByID(ctx, h.ID, g.ID)
	if err != nil || got.Role != domain.RoleAdmin {
		t.Fatalf("role after update = %v (%v)", got, err)
	}

	if err := s.UpdateGrantRole(ctx, h.ID, 9999, domain.RoleViewer); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("missing grant update kind = %s, want not_found", domain.KindOf(err))
	}

	if err := s.DeleteGrant(ctx, h.ID, g.ID); err != nil {
		t.Fatalf("DeleteGrant: %v", err)
	}
	if err := s.DeleteGrant(ctx, h.ID, g.ID); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("second delete kind = %s, want not_found", domain.KindOf(err))
	}
}

func TestListUsersOrderingAndCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	zed := mustUser(t, s, "d-1", "zed")
	amy := mustUser(t, s, "d-2", "amy")
	mustHost(t, s, zed, "AAA111", "10.0.0.1")
	mustHost(t, s, zed, "BBB222", "10.0.0.2")

	if err := s.SetSuperAdmin(ctx, amy.ID, true); err != nil {
		t.Fatalf("SetSuperAdmin: %v", err)
	}

	listings, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("len = %d, want 2", len(listings))
	}
	if listings[0].User.Username != "amy" || !listings[0].User.IsSuperAdmin {
		t.Fatalf("super-admins should sort first: %+v", listings[0].User)
	}
	if listings[1].HostCount != 2 {
		t.Fatalf("zed host count = %d, want 2", listings[1].HostCount)
	}

	if err := s.SetSuperAdmin(ctx, 9999, true); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("missing user kind = %s, want not_found", domain.KindOf(err))
	}
}
