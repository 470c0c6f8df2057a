package auth

import (
	"encoding/base64"
	"regexp"
	"testing"
)

func basic(userPass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(userPass))
}

func request(headers ...string) string {
	raw := "GET /api/state HTTP/1.1\r\nHost: localhost\r\n"
	for _, h := range headers {
		raw += h + "\r\n"
	}
	return raw + "\r\n"
}

func TestValidateRequestDecisionTable(t *testing.T) {
	m := New()
	m.SetCredentials(Credentials{Username: "admin", Password: "123456"})

	tests := []struct {
		name       string
		raw        string
		wantStatus int
		wantBody   string
	}{
		{"valid", request("Authorization: " + basic("admin:123456")), 200, ""},
		{"lowercase header name", request("authorization: " + basic("admin:123456")), 200, ""},
		{"surrounding whitespace", request("AUTHORIZATION:    " + basic("admin:123456") + "   "), 200, ""},
		{"missing header", request(), 401, MsgRequired},
		{"bearer scheme", request("Authorization: Bearer abc"), 401, MsgInvalidFormat},
		{"no token", request("Authorization: Basic"), 401, MsgInvalidFormat},
		{"bad base64", request("Authorization: Basic !!!notbase64"), 401, MsgInvalidFormat},
		{"no colon", request("Authorization: " + basic("admin123456")), 401, MsgInvalidFormat},
		{"wrong password", request("Authorization: " + basic("admin:654321")), 401, MsgInvalidCreds},
		{"wrong user", request("Authorization: " + basic("root:123456")), 401, MsgInvalidCreds},
		{"password with colon", request("Authorization: " + basic("admin:123456:x")), 401, MsgInvalidCreds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.ValidateRequest(tt.raw)
			if res.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", res.StatusCode, tt.wantStatus)
			}
			if res.Body != tt.wantBody {
				t.Errorf("Body = %q, want %q", res.Body, tt.wantBody)
			}
			if tt.wantStatus == 200 {
				if !res.IsValid {
					t.Error("IsValid should be true")
				}
				if len(res.Headers) != 0 {
					t.Errorf("Headers = %v, want none", res.Headers)
				}
				return
			}
			if res.IsValid {
				t.Error("IsValid should be false")
			}
			if got := res.Headers["WWW-Authenticate"]; got != `Basic realm="Web Control"` {
				t.Errorf("WWW-Authenticate = %q", got)
			}
		})
	}
}

func TestValidateRequestWithoutCredentials(t *testing.T) {
	m := New()
	res := m.ValidateRequest(request("Authorization: " + basic("admin:123456")))
	if res.StatusCode != 500 || res.Body != MsgNotConfigured {
		t.Errorf("got %d %q, want 500 %q", res.StatusCode, res.Body, MsgNotConfigured)
	}
}

func TestClearCredentialsIsIdempotent(t *testing.T) {
	m := New()
	m.SetCredentials(CreateAuthCredentials())
	m.ClearCredentials()
	m.ClearCredentials()
	if _, ok := m.Credentials(); ok {
		t.Error("credentials still present after ClearCredentials")
	}
}

func TestHeaderInBodyIsIgnored(t *testing.T) {
	m := New()
	m.SetCredentials(Credentials{Username: "admin", Password: "123456"})
	raw := "POST /api/sync HTTP/1.1\r\nContent-Length: 40\r\n\r\nAuthorization: " + basic("admin:123456")
	if res := m.ValidateRequest(raw); res.StatusCode != 401 || res.Body != MsgRequired {
		t.Errorf("got %d %q, want 401 %q", res.StatusCode, res.Body, MsgRequired)
	}
}

func TestGenerateRandomPassword(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	seen := make(map[string]int)
	collisions := 0

	for i := 0; i < 100; i++ {
		p := GenerateRandomPassword()
		if !pattern.MatchString(p) {
			t.Fatalf("password %q does not match ^\\d{6}$", p)
		}
		if p[0] == '0' {
			t.Fatalf("password %q below 100000", p)
		}
		if seen[p] > 0 {
			collisions++
		}
		seen[p]++
	}

	if collisions >= 10 {
		t.Errorf("%d collisions across 100 passwords", collisions)
	}
}

func TestCreateAuthCredentials(t *testing.T) {
	creds := CreateAuthCredentials()
	if creds.Username != "admin" {
		t.Errorf("Username = %q, want admin", creds.Username)
	}
	if len(creds.Password) != 6 {
		t.Errorf("Password length = %d, want 6", len(creds.Password))
	}
}
