package store

import (
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + ledger indexes)", result.Version)
	}
}

func TestAccountUpsertAndGet(t *testing.T) {
	db := testDB(t)

	a := &Account{Enabled: true, LoginName: "alice", Secret: "s3cret", PushURL: "https://push", PushToken: "tok"}
	if err := db.UpsertAccount(a); err != nil {
		t.Fatal(err)
	}

	// Upsert again with new push target: same row, updated fields.
	a.PushURL = "https://push2"
	if err := db.UpsertAccount(a); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetAccount("alice")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.PushURL != "https://push2" {
		t.Errorf("got %+v, want push url https://push2", got)
	}

	missing, err := db.GetAccount("nobody")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing account, got %+v", missing)
	}
}

func TestListEnabledAccountsFiltersPushConfig(t *testing.T) {
	db := testDB(t)

	accounts := []Account{
		{Enabled: true, LoginName: "complete", Secret: "x", PushURL: "https://p", PushToken: "t"},
		{Enabled: true, LoginName: "no-endpoint", Secret: "x", PushToken: "t"},
		{Enabled: false, LoginName: "disabled", Secret: "x", PushURL: "https://p", PushToken: "t"},
	}
	for i := range accounts {
		if err := db.UpsertAccount(&accounts[i]); err != nil {
			t.Fatal(err)
		}
	}

	enabled, err := db.ListEnabledAccounts()
	if err != nil {
		t.Fatal(err)
	}
	if len(enabled) != 2 {
		t.Fatalf("enabled = %d, want 2 (disabled excluded, incomplete included)", len(enabled))
	}

	ready, err := db.ListEnabledAccountsWithPushConfig()
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 1 || ready[0].LoginName != "complete" {
		t.Fatalf("ready = %+v, want only the complete account", ready)
	}
}

func TestUpdateSessionToken(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertAccount(&Account{Enabled: true, LoginName: "alice", Secret: "x"}); err != nil {
		t.Fatal(err)
	}

	ok, err := db.UpdateSessionToken("alice", "new-sid")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("UpdateSessionToken for existing account = false, want true")
	}

	got, err := db.GetAccount("alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.SessionToken != "new-sid" {
		t.Errorf("session token = %q, want new-sid", got.SessionToken)
	}

	ok, err = db.UpdateSessionToken("nobody", "sid")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("UpdateSessionToken for missing account = true, want false")
	}
}

func TestChannelRoundTrip(t *testing.T) {
	db := testDB(t)

	c := &Channel{ChannelID: 7, Name: "ops", Members: []int64{7, 42}, MemberCount: 2, Type: ChannelDirect}
	if err := db.UpsertChannel(c); err != nil {
		t.Fatal(err)
	}

	c.Name = "ops-renamed"
	if err := db.UpsertChannel(c); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetChannelByID(7)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("channel not found after upsert")
	}
	if got.Name != "ops-renamed" || got.Type != ChannelDirect {
		t.Errorf("got %+v", got)
	}
	if len(got.Members) != 2 || got.Members[0] != 7 || got.Members[1] != 42 {
		t.Errorf("members = %v, want [7 42]", got.Members)
	}

	missing, err := db.GetChannelByID(999)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown channel, got %+v", missing)
	}
}

func TestDirectoryUserLookup(t *testing.T) {
	db := testDB(t)

	u := &DirectoryUser{UserID: 42, Nickname: "Bob", LoginName: "bob", Type: "user"}
	if err := db.UpsertDirectoryUser(u); err != nil {
		t.Fatal(err)
	}

	byID, err := db.GetDirectoryUserByID(42)
	if err != nil {
		t.Fatal(err)
	}
	if byID == nil || byID.Nickname != "Bob" {
		t.Errorf("by id = %+v, want nickname Bob", byID)
	}

	byLogin, err := db.GetDirectoryUserByLogin("bob")
	if err != nil {
		t.Fatal(err)
	}
	if byLogin == nil || byLogin.UserID != 42 {
		t.Errorf("by login = %+v, want user id 42", byLogin)
	}
}

func TestInsertMessageIfAbsentIdempotent(t *testing.T) {
	db := testDB(t)

	inserted, err := db.InsertMessageIfAbsent(1, "m1", "hello", 42, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Error("first insert = false, want true")
	}

	// Mark pushed, then insert the same key again: the pushed state
	// must survive the duplicate insert.
	if _, err := db.MarkPushed(1, "m1"); err != nil {
		t.Fatal(err)
	}

	inserted, err = db.InsertMessageIfAbsent(1, "m1", "hello", 42, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("second insert = true, want false (idempotent)")
	}

	pushed, err := db.IsPushed(1, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if !pushed {
		t.Error("pushed state lost by duplicate insert")
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM message_records WHERE channel_id = 1 AND message_id = 'm1'`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("rows = %d, want exactly 1", count)
	}
}

func TestMarkPushedAtMostOnce(t *testing.T) {
	db := testDB(t)

	// No matching record: nothing to confirm.
	ok, err := db.MarkPushed(1, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("MarkPushed without a record = true, want false")
	}

	if _, err := db.InsertMessageIfAbsent(1, "m1", "hi", 42, 1000); err != nil {
		t.Fatal(err)
	}

	ok, err = db.MarkPushed(1, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("first MarkPushed = false, want true")
	}

	ok, err = db.MarkPushed(1, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second MarkPushed = true, want false")
	}
}

func TestIsPushedUnknownMessage(t *testing.T) {
	db := testDB(t)

	pushed, err := db.IsPushed(9, "never-seen")
	if err != nil {
		t.Fatal(err)
	}
	if pushed {
		t.Error("unknown message reported as pushed")
	}
}

func TestPurgeOldMessageRecords(t *testing.T) {
	db := testDB(t)

	now := time.Now().UnixMilli()
	old := time.Now().AddDate(0, 0, -10).UnixMilli()

	// Old pushed row: purged. Fresh pushed row: kept. Old unpushed row:
	// kept (it is the retry queue).
	seed := []struct {
		msgID    string
		pushedAt any
	}{
		{"old-pushed", old},
		{"fresh-pushed", now},
		{"old-unpushed", nil},
	}
	for _, s := range seed {
		if _, err := db.InsertMessageIfAbsent(1, s.msgID, "x", 1, old); err != nil {
			t.Fatal(err)
		}
		if s.pushedAt != nil {
			if _, err := db.Exec(`UPDATE message_records SET pushed = 1, pushed_at = ? WHERE message_id = ?`, s.pushedAt, s.msgID); err != nil {
				t.Fatal(err)
			}
		}
	}

	deleted, err := db.PurgeOldMessageRecords(7)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	for _, want := range []string{"fresh-pushed", "old-unpushed"} {
		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM message_records WHERE message_id = ?`, want).Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Errorf("%s survived = %d rows, want 1", want, count)
		}
	}
}

func TestSystemConfig(t *testing.T) {
	db := testDB(t)

	got, err := db.GetConfig("BASE_URL", "fallback")
	if err != nil {
		t.Fatal(err)
	}
	if got != "fallback" {
		t.Errorf("default = %q, want fallback", got)
	}

	if err := db.SetConfig("BASE_URL", "https://dsm.local:5001", "DSM address"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetConfig("BASE_URL", "https://dsm.local:5002", "DSM address"); err != nil {
		t.Fatal(err)
	}

	got, err = db.GetConfig("BASE_URL", "fallback")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://dsm.local:5002" {
		t.Errorf("value = %q, want updated address", got)
	}
}

func TestParseChannelType(t *testing.T) {
	cases := []struct {
		remote string
		want   ChannelType
	}{
		{"anonymous", ChannelDirect},
		{"direct", ChannelDirect},
		{"chatbot", ChannelBot},
		{"bot", ChannelBot},
		{"normal", ChannelGroup},
		{"", ChannelGroup},
		{"something-new", ChannelGroup},
	}
	for _, c := range cases {
		if got := ParseChannelType(c.remote); got != c.want {
			t.Errorf("ParseChannelType(%q) = %q, want %q", c.remote, got, c.want)
		}
	}
}
