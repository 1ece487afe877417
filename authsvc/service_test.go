package authsvc

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"voxeledge/edge"
)

var testSecret = []byte("test-secret")

func newTestService(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	svc := NewService(store, testSecret, zap.NewNop().Sugar())
	srv := httptest.NewServer(svc.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp, out
}

func TestRegisterAssignsSequentialIDs(t *testing.T) {
	srv := newTestService(t)

	resp, out := post(t, srv.URL+"/register", map[string]string{"username": "alice", "email": "alice@example.com"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d %v", resp.StatusCode, out)
	}
	user := out["user"].(map[string]interface{})
	if user["id"] != "00000000" {
		t.Errorf("first id = %v, want 00000000", user["id"])
	}

	_, out2 := post(t, srv.URL+"/register", map[string]string{"username": "bob", "email": "bob@example.com"})
	if out2["user"].(map[string]interface{})["id"] != "00000001" {
		t.Errorf("second id = %v, want 00000001", out2["user"].(map[string]interface{})["id"])
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	srv := newTestService(t)
	post(t, srv.URL+"/register", map[string]string{"username": "alice", "email": "alice@example.com"})

	resp, out := post(t, srv.URL+"/register", map[string]string{"username": "ALICE", "email": "other@example.com"})
	if resp.StatusCode != http.StatusConflict || out["error"] != "username_taken" {
		t.Fatalf("got %d %v", resp.StatusCode, out)
	}

	resp2, out2 := post(t, srv.URL+"/register", map[string]string{"username": "carol", "email": "Alice@Example.com"})
	if resp2.StatusCode != http.StatusConflict || out2["error"] != "email_taken" {
		t.Fatalf("got %d %v", resp2.StatusCode, out2)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	srv := newTestService(t)
	resp, _ := post(t, srv.URL+"/register", map[string]string{"username": "", "email": "a@b.c"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty username: %d", resp.StatusCode)
	}
	resp2, _ := post(t, srv.URL+"/register", map[string]string{"username": "x", "email": "not-an-email"})
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("bad email: %d", resp2.StatusCode)
	}
}

func TestLoginMintsVerifiableToken(t *testing.T) {
	srv := newTestService(t)
	post(t, srv.URL+"/register", map[string]string{"username": "alice", "email": "alice@example.com"})

	resp, out := post(t, srv.URL+"/login", map[string]string{"username": "alice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: %d %v", resp.StatusCode, out)
	}
	token, _ := out["token"].(string)
	if token == "" {
		t.Fatal("no token in response")
	}

	// 网关同一套校验逻辑必须接受这里签出的凭证
	claims, err := edge.VerifyToken(token, testSecret)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.Subject != "00000000" || claims.Username != "alice" {
		t.Errorf("claims = %+v", claims)
	}

	// 密钥不一致则拒绝
	if _, err := edge.VerifyToken(token, []byte("other")); !errors.Is(err, edge.ErrTokenSignature) {
		t.Errorf("wrong secret: %v", err)
	}
}

func TestLoginByIDForms(t *testing.T) {
	srv := newTestService(t)
	post(t, srv.URL+"/register", map[string]string{"username": "alice", "email": "alice@example.com"})
	post(t, srv.URL+"/register", map[string]string{"username": "bob", "email": "bob@example.com"})

	// 数字形态
	resp, out := post(t, srv.URL+"/login", map[string]interface{}{"user_id": 1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("numeric id: %d %v", resp.StatusCode, out)
	}
	if out["user"].(map[string]interface{})["username"] != "bob" {
		t.Errorf("numeric id resolved to %v", out["user"])
	}

	// 8 位二进制串形态
	resp2, out2 := post(t, srv.URL+"/login", map[string]interface{}{"user_id": "00000000"})
	if resp2.StatusCode != http.StatusOK || out2["user"].(map[string]interface{})["username"] != "alice" {
		t.Fatalf("bin8 id: %d %v", resp2.StatusCode, out2)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	srv := newTestService(t)
	resp, out := post(t, srv.URL+"/login", map[string]string{"username": "ghost"})
	if resp.StatusCode != http.StatusUnauthorized || out["error"] != "user_not_found" {
		t.Fatalf("got %d %v", resp.StatusCode, out)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestService(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	if out["ok"] != true || out["service"] != "auth" {
		t.Fatalf("health = %v", out)
	}
}

func TestNextFreeIDFillsGaps(t *testing.T) {
	users := []User{{ID: "00000000"}, {ID: "00000010"}}
	id, err := nextFreeID(users)
	if err != nil {
		t.Fatal(err)
	}
	if id != "00000001" {
		t.Errorf("got %s, want 00000001", id)
	}
}

func TestNormalizeID(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"00000010", "00000010", true},
		{"2", "00000010", true},
		{"255", "11111111", true},
		{"256", "", false},
		{"-1", "", false},
		{"abc", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeID(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("NormalizeID(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
