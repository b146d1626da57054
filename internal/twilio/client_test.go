package twilio

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(&Config{
		AccountSID: "AC123",
		AuthToken:  "secret",
		BaseURL:    srv.URL,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New(&Config{AuthToken: "secret"}); err == nil {
		t.Fatalf("expected error without account SID")
	}
	if _, err := New(&Config{AccountSID: "AC123"}); err == nil {
		t.Fatalf("expected error without auth token")
	}
}

func TestGetCall(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method=%s, want GET", r.Method)
		}
		if want := "/Accounts/AC123/Calls/CA1.json"; r.URL.Path != want {
			t.Errorf("path=%s, want %s", r.URL.Path, want)
		}
		wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("AC123:secret"))
		if got := r.Header.Get("Authorization"); got != wantAuth {
			t.Errorf("auth=%q, want %q", got, wantAuth)
		}
		w.Write([]byte(`{"sid":"CA1","from":"+1555","to":"+1777","status":"in-progress"}`))
	})

	call, err := c.GetCall(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("GetCall: %v", err)
	}
	if call.From != "+1555" || call.To != "+1777" {
		t.Fatalf("from/to=%q/%q, want +1555/+1777", call.From, call.To)
	}
}

func TestGetCall_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":20404,"message":"The requested resource was not found","status":404}`))
	})

	_, err := c.GetCall(context.Background(), "CA404")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestUpdateCall_SendsTwiml(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method=%s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("Twiml"); !strings.Contains(got, "<Conference") {
			t.Errorf("Twiml=%q, want conference document", got)
		}
		w.Write([]byte(`{"sid":"CA1","status":"in-progress"}`))
	})

	if _, err := c.UpdateCall(context.Background(), "CA1", CallerHoldTwiML("transfer_CA1", "")); err != nil {
		t.Fatalf("UpdateCall: %v", err)
	}
}

func TestUpdateCall_InvalidState(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21220,"message":"Call is not in-progress","status":400}`))
	})

	_, err := c.UpdateCall(context.Background(), "CA1", "<Response/>")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err=%v, want ErrInvalidState", err)
	}
}

func TestMakeCall(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if want := "/Accounts/AC123/Calls.json"; r.URL.Path != want {
			t.Errorf("path=%s, want %s", r.URL.Path, want)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("To"); got != "+19998887777" {
			t.Errorf("To=%q", got)
		}
		if got := r.PostForm.Get("From"); got != "+1555" {
			t.Errorf("From=%q", got)
		}
		w.Write([]byte(`{"sid":"CA9","status":"queued"}`))
	})

	call, err := c.MakeCall(context.Background(), "+19998887777", "+1555", OperatorJoinTwiML("transfer_CA1"))
	if err != nil {
		t.Fatalf("MakeCall: %v", err)
	}
	if call.SID != "CA9" {
		t.Fatalf("sid=%q, want CA9", call.SID)
	}
}

func TestMakeCall_InvalidDestination(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`))
	})

	_, err := c.MakeCall(context.Background(), "bogus", "+1555", "<Response/>")
	if !errors.Is(err, ErrInvalidDestination) {
		t.Fatalf("err=%v, want ErrInvalidDestination", err)
	}
}

func TestDo_ServerErrorIsUpstreamUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"code":20500,"message":"Service unavailable","status":503}`))
	})

	_, err := c.GetCall(context.Background(), "CA1")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err=%v, want ErrUpstreamUnavailable", err)
	}
}

func TestDo_NetworkErrorIsUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(&Config{AccountSID: "AC123", AuthToken: "secret", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.GetCall(context.Background(), "CA1")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err=%v, want ErrUpstreamUnavailable", err)
	}
}

func TestDo_NonJSONErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	})

	_, err := c.GetCall(context.Background(), "CA1")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err=%v, want ErrUpstreamUnavailable", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err=%v, want *APIError", err)
	}
	if apiErr.Message != "upstream exploded" {
		t.Fatalf("message=%q", apiErr.Message)
	}
}
