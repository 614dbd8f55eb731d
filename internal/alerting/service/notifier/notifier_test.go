package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/queuewatch/queuewatch/internal/alerting/model"
	"github.com/queuewatch/queuewatch/internal/alerting/service/engine"
)

func firingEvent() engine.Notification {
	return engine.Notification{
		At: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Instance: model.AlertInstance{
			ID:     "abc",
			Group:  "taskiq",
			Name:   "BrokerDown",
			State:  model.StateFiring,
			Labels: model.LabelMap{"job": "taskiq-broker", "severity": "critical"},
			Value:  0,
		},
	}
}

func TestNotifierPostsEvent(t *testing.T) {
	type received struct {
		body []byte
		auth string
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{body: body, auth: r.Header.Get("Authorization")}
	}))
	defer srv.Close()

	n := New(Config{WebhookURL: srv.URL, BearerToken: "secret"})
	ch := make(chan engine.Notification, 1)
	ch <- firingEvent()
	close(ch)
	n.Run(context.Background(), ch)

	select {
	case r := <-got:
		if r.auth != "Bearer secret" {
			t.Fatalf("authorization header = %q", r.auth)
		}
		var event engine.Notification
		if err := json.Unmarshal(r.body, &event); err != nil {
			t.Fatalf("unmarshal delivered event: %v", err)
		}
		if event.Instance.Name != "BrokerDown" || event.Instance.State != model.StateFiring {
			t.Fatalf("delivered event wrong: %+v", event.Instance)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never called")
	}
}

func TestNotifierBasicAuth(t *testing.T) {
	authed := make(chan bool, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		authed <- ok && user == "alerts" && pass == "pw"
	}))
	defer srv.Close()

	n := New(Config{WebhookURL: srv.URL, BasicUser: "alerts", BasicPass: "pw"})
	ch := make(chan engine.Notification, 1)
	ch <- firingEvent()
	close(ch)
	n.Run(context.Background(), ch)

	select {
	case ok := <-authed:
		if !ok {
			t.Fatal("basic credentials not sent")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never called")
	}
}

func TestNotifierWithoutWebhookLogsOnly(t *testing.T) {
	n := New(Config{})
	ch := make(chan engine.Notification, 1)
	ch <- firingEvent()
	close(ch)
	// must drain and return without a destination configured
	n.Run(context.Background(), ch)
}

func TestNotifierFailedDeliveryDoesNotStopConsumption(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := New(Config{WebhookURL: srv.URL})
	ch := make(chan engine.Notification, 2)
	ch <- firingEvent()
	ch <- firingEvent()
	close(ch)
	n.Run(context.Background(), ch)

	if calls != 2 {
		t.Fatalf("expected both events attempted, got %d", calls)
	}
}
