package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/store"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/syno"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestListChannelsCachesMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":{"channels":[
			{"channel_id":1,"name":"","members":[7,42],"total_member_count":2,"type":"anonymous","unread":1},
			{"channel_id":2,"name":"deploys","members":[9],"total_member_count":1,"type":"chatbot","unread":0},
			{"channel_id":3,"name":"ops","members":[7,42,99],"total_member_count":3,"type":"mystery","unread":0}
		]}}`)
	}))
	defer srv.Close()

	db := testDB(t)
	c := NewClient(syno.NewClient(srv.URL, false, zap.NewNop()), db, zap.NewNop())

	channels, err := c.ListChannels(context.Background(), "sid")
	if err != nil {
		t.Fatalf("ListChannels() error = %v", err)
	}
	if len(channels) != 3 {
		t.Fatalf("got %d channels, want 3", len(channels))
	}
	if channels[0].Unread != 1 {
		t.Errorf("unread count lost: %+v", channels[0])
	}

	direct, err := db.GetChannelByID(1)
	if err != nil || direct == nil {
		t.Fatalf("channel 1 not cached: %v", err)
	}
	if direct.Type != store.ChannelDirect {
		t.Errorf("type = %s, want %s", direct.Type, store.ChannelDirect)
	}
	if len(direct.Members) != 2 {
		t.Errorf("members = %v", direct.Members)
	}

	bot, _ := db.GetChannelByID(2)
	if bot == nil || bot.Type != store.ChannelBot {
		t.Errorf("channel 2 = %+v, want bot", bot)
	}

	// Unknown remote types land in the group bucket.
	other, _ := db.GetChannelByID(3)
	if other == nil || other.Type != store.ChannelGroup {
		t.Errorf("channel 3 = %+v, want group", other)
	}
}

func TestSyncUsersSkipsDeactivated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":{"users":[
			{"user_id":7,"nickname":"Alice","username":"alice","type":"user"},
			{"user_id":8,"nickname":"Ghost","username":"ghost","type":""}
		]}}`)
	}))
	defer srv.Close()

	db := testDB(t)
	c := NewClient(syno.NewClient(srv.URL, false, zap.NewNop()), db, zap.NewNop())

	n, err := c.SyncUsers(context.Background(), "sid")
	if err != nil {
		t.Fatalf("SyncUsers() error = %v", err)
	}
	if n != 1 {
		t.Errorf("synced %d users, want 1", n)
	}

	alice, err := db.GetDirectoryUserByLogin("alice")
	if err != nil || alice == nil {
		t.Fatalf("alice not cached: %v", err)
	}
	if alice.Nickname != "Alice" {
		t.Errorf("alice = %+v", alice)
	}

	ghost, err := db.GetDirectoryUserByID(8)
	if err != nil {
		t.Fatal(err)
	}
	if ghost != nil {
		t.Error("deactivated user cached")
	}
}
