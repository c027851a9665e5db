package service

import (
	"context"
	"testing"

	"leadbridge/internal/syncing/repository"
)

func TestGateCheckTierOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("local email entry", func(t *testing.T) {
		env := newTestEnv()
		reason := "hard bounce"
		if _, err := env.blocklist.UpsertBlocklistEntry(ctx, repository.UpsertBlocklistParams{
			Kind: repository.BlocklistKindEmail, Value: "a@example.com", Reason: &reason,
		}); err != nil {
			t.Fatal(err)
		}

		check, err := env.service.gate.Check(ctx, "a@example.com")
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !check.Blocked || check.Source != BlockSourceEmail {
			t.Errorf("check = %+v, want email-tier block", check)
		}
		if env.outreach.isBlockedCalls != 0 {
			t.Error("a local hit must not reach the remote blocklist")
		}
	})

	t.Run("local domain entry", func(t *testing.T) {
		env := newTestEnv()
		if _, err := env.blocklist.UpsertBlocklistEntry(ctx, repository.UpsertBlocklistParams{
			Kind: repository.BlocklistKindDomain, Value: "example.com",
		}); err != nil {
			t.Fatal(err)
		}

		check, err := env.service.gate.Check(ctx, "a@example.com")
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !check.Blocked || check.Source != BlockSourceDomain {
			t.Errorf("check = %+v, want domain-tier block", check)
		}
	})

	t.Run("remote blocklist last", func(t *testing.T) {
		env := newTestEnv()
		env.outreach.blocked["a@example.com"] = true

		check, err := env.service.gate.Check(ctx, "a@example.com")
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !check.Blocked || check.Source != BlockSourceRemote {
			t.Errorf("check = %+v, want remote-tier block", check)
		}
	})

	t.Run("remote failure degrades to not blocked", func(t *testing.T) {
		env := newTestEnv()
		env.outreach.isBlockedErr = errTestUnavailable

		check, err := env.service.gate.Check(ctx, "a@example.com")
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if check.Blocked {
			t.Errorf("check = %+v, remote failure must not block the sync", check)
		}
	})
}

func TestGateAddMirrorsToPlatform(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	entry, err := env.service.gate.Add(ctx, repository.BlocklistKindEmail, "a@example.com", "unsubscribed")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !entry.Active {
		t.Error("entry not active after Add")
	}
	if len(env.outreach.blocklistAdds) != 1 {
		t.Errorf("blocklistAdds = %v, want the entry mirrored", env.outreach.blocklistAdds)
	}

	// Re-adding is idempotent on the local store.
	if _, err := env.service.gate.Add(ctx, repository.BlocklistKindEmail, "a@example.com", ""); err != nil {
		t.Fatalf("second Add: %v", err)
	}
	entries, _ := env.blocklist.ListBlocklistEntries(ctx, repository.BlocklistKindEmail, 10, 0)
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
}

func TestGateRemoveDeactivatesLocally(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.service.gate.Add(ctx, repository.BlocklistKindDomain, "example.com", ""); err != nil {
		t.Fatal(err)
	}

	removed, err := env.service.gate.Remove(ctx, repository.BlocklistKindDomain, "example.com")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v, want true", removed, err)
	}

	check, err := env.service.gate.Check(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if check.Blocked {
		t.Error("deactivated entry still blocks")
	}
}
