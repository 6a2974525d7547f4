package syno

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webapi/auth.cgi" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("api") != "SYNO.API.Auth" || q.Get("method") != "login" {
			t.Errorf("unexpected query: %v", q)
		}
		if q.Get("session") != "Chat" || q.Get("format") != "sid" {
			t.Errorf("unexpected session params: %v", q)
		}
		if q.Get("account") != "alice" || q.Get("passwd") != "s3cret" {
			t.Errorf("unexpected credentials: %v", q)
		}
		fmt.Fprint(w, `{"success":true,"data":{"sid":"sid-123"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, false, zap.NewNop())
	sid, err := c.Login(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if sid != "sid-123" {
		t.Errorf("sid = %q, want sid-123", sid)
	}
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"success":false,"error":{"code":400}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, false, zap.NewNop())
	_, err := c.Login(context.Background(), "alice", "wrong")
	if err == nil {
		t.Fatal("Login() with bad credentials should fail")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Code != 400 {
		t.Errorf("code = %d, want 400", apiErr.Code)
	}
	if IsSessionExpired(err) {
		t.Error("login rejection classified as session expiry")
	}
}

func TestListChannels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/webapi/entry.cgi" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("api") != "SYNO.Chat.Channel" || r.PostForm.Get("version") != "5" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		if r.PostForm.Get("additional") != `["unread"]` {
			t.Errorf("additional = %q, unread counts not requested", r.PostForm.Get("additional"))
		}
		if r.PostForm.Get("_sid") != "sid-123" {
			t.Errorf("_sid = %q", r.PostForm.Get("_sid"))
		}
		fmt.Fprint(w, `{"success":true,"data":{"channels":[
			{"channel_id":1,"name":"ops","members":[7,42],"total_member_count":2,"type":"anonymous","unread":3},
			{"channel_id":2,"name":"general","members":[7,42,99],"total_member_count":3,"type":"normal","unread":0}
		]}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, false, zap.NewNop())
	channels, err := c.ListChannels(context.Background(), "sid-123")
	if err != nil {
		t.Fatalf("ListChannels() error = %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(channels))
	}
	if channels[0].Unread != 3 || channels[0].Type != "anonymous" {
		t.Errorf("channel[0] = %+v", channels[0])
	}
	if len(channels[0].Members) != 2 {
		t.Errorf("members = %v", channels[0].Members)
	}
}

func TestListChannelsExpiredSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"success":false,"error":{"code":119}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, false, zap.NewNop())
	_, err := c.ListChannels(context.Background(), "stale-sid")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsSessionExpired(err) {
		t.Errorf("error %v not classified as session expiry", err)
	}
}

func TestListPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("api") != "SYNO.Chat.Post" || r.PostForm.Get("version") != "8" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		if r.PostForm.Get("channel_id") != "1" || r.PostForm.Get("prev_count") != "10" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		fmt.Fprint(w, `{"success":true,"data":{"posts":[
			{"id":300,"message":"newest","creator_id":42,"create_at":3000},
			{"id":200,"message":"middle","creator_id":42,"create_at":2000},
			{"id":100,"message":"oldest","creator_id":42,"create_at":1000}
		]}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, false, zap.NewNop())
	posts, err := c.ListPosts(context.Background(), "sid", 1, 10)
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("got %d posts, want 3", len(posts))
	}
	if posts[0].Message != "newest" || posts[2].Message != "oldest" {
		t.Error("remote ordering (newest-first) not preserved")
	}
}

func TestListUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":{"users":[
			{"user_id":7,"nickname":"Alice","username":"alice","type":"user"},
			{"user_id":8,"nickname":"","username":"ghost","type":""}
		]}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, false, zap.NewNop())
	users, err := c.ListUsers(context.Background(), "sid")
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
	if users[0].Nickname != "Alice" {
		t.Errorf("users[0] = %+v", users[0])
	}
}

func TestBaseURLResolvedPerRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":{"sid":"sid-123"}}`)
	}))
	defer srv.Close()

	var mu sync.Mutex
	base := ""
	c := NewClientWithSource(func() string {
		mu.Lock()
		defer mu.Unlock()
		return base
	}, false, zap.NewNop())

	// Before initialization every call fails with a clear error instead
	// of dialing a malformed address.
	if _, err := c.Login(context.Background(), "alice", "s3cret"); !errors.Is(err, ErrNoBaseURL) {
		t.Fatalf("Login() without base url = %v, want ErrNoBaseURL", err)
	}
	if _, err := c.ListChannels(context.Background(), "sid"); !errors.Is(err, ErrNoBaseURL) {
		t.Fatalf("ListChannels() without base url = %v, want ErrNoBaseURL", err)
	}

	// Configuring the address takes effect without rebuilding the client.
	mu.Lock()
	base = srv.URL
	mu.Unlock()

	sid, err := c.Login(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("Login() after configuration error = %v", err)
	}
	if sid != "sid-123" {
		t.Errorf("sid = %q, want sid-123", sid)
	}
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, false, zap.NewNop())
	if _, err := c.ListChannels(context.Background(), "sid"); err == nil {
		t.Fatal("expected decode error")
	}
}
