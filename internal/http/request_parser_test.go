package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		body     string
		wantJSON bool
		want     map[string]string
	}{
		{
			name:   "form",
			target: "/transactions",
			body:   "amount=12.50&type=expense&category=Food&note=%20Lunch%20",
			want:   map[string]string{"amount": "12.50", "type": "expense", "category": "Food", "note": "Lunch"},
		},
		{
			name:     "json keeps number text",
			target:   "/transactions",
			body:     `{"amount": 12.50, "type": "income", "note": "a\u0007b"}`,
			wantJSON: true,
			want:     map[string]string{"amount": "12.50", "type": "income", "note": "ab", "category": ""},
		},
		{
			name:   "query fallback",
			target: "/transactions/delete?id=42",
			want:   map[string]string{"id": "42"},
		},
		{
			name:   "body wins over query",
			target: "/transactions/delete?id=1",
			body:   "id=2",
			want:   map[string]string{"id": "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			p := NewRequestBodyParser(req)
			if err := p.Parse(); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON() = %v, want %v", p.IsJSON(), tt.wantJSON)
			}
			for k, v := range tt.want {
				if got := p.Get(k); got != v {
					t.Errorf("Get(%q) = %q, want %q", k, got, v)
				}
			}
		})
	}
}

func TestRequestBodyParserInvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":`))
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	// Parse is idempotent
	if err := p.Parse(); err == nil {
		t.Fatal("expected cached error")
	}
}

func TestCandidateAndID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("amount=5&type=income&category=Gift&note=n&date=2024-05-01&id=7"))
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatal(err)
	}
	c := p.Candidate()
	if c.Amount != "5" || c.Type != "income" || c.Category != "Gift" || c.Note != "n" || c.Date != "2024-05-01" {
		t.Errorf("Candidate() = %+v", c)
	}
	id, err := p.ID()
	if err != nil || id != 7 {
		t.Errorf("ID() = %d, %v", id, err)
	}

	for _, raw := range []string{"", "0", "-3", "abc"} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("id="+raw))
		p := NewRequestBodyParser(req)
		_ = p.Parse()
		if _, err := p.ID(); err != errInvalidID {
			t.Errorf("ID(%q) error = %v, want errInvalidID", raw, err)
		}
	}
}

func TestRequireMethod(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if resp := RequirePOST(req); resp == nil {
		t.Fatal("GET must be rejected")
	} else {
		rr := httptest.NewRecorder()
		resp.Write(rr)
		if rr.Code != http.StatusMethodNotAllowed || rr.Header().Get("Allow") != "POST" {
			t.Errorf("got %d Allow=%q", rr.Code, rr.Header().Get("Allow"))
		}
	}
	if RequireGET(req) != nil {
		t.Error("GET must pass RequireGET")
	}
	if RequireDeleteOrPOST(httptest.NewRequest(http.MethodDelete, "/", nil)) != nil {
		t.Error("DELETE must pass RequireDeleteOrPOST")
	}
}
