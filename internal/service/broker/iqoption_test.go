package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeIQServer struct {
	srv      *httptest.Server
	authed   atomic.Bool
	ssidSeen atomic.Value
}

func newFakeIQServer(t *testing.T, ssid string) *fakeIQServer {
	t.Helper()
	f := &fakeIQServer{}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req["password"] != "secret" {
			_, _ = w.Write([]byte(`{"code":"invalid_credentials","message":"wrong password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":"success","ssid":"` + ssid + `"}`))
	})
	mux.HandleFunc("/echo/websocket", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var frame struct {
				Name      string          `json:"name"`
				RequestID string          `json:"request_id"`
				Msg       json.RawMessage `json:"msg"`
			}
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Name == "ssid" {
				var s string
				_ = json.Unmarshal(frame.Msg, &s)
				f.ssidSeen.Store(s)
				f.authed.Store(s == ssid)
				continue
			}
			var inner struct {
				Name string          `json:"name"`
				Body json.RawMessage `json:"body"`
			}
			_ = json.Unmarshal(frame.Msg, &inner)
			_ = conn.WriteJSON(f.reply(frame.RequestID, inner.Name, inner.Body))
		}
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIQServer) reply(id, name string, body json.RawMessage) map[string]interface{} {
	if !f.authed.Load() {
		return map[string]interface{}{"name": "result", "request_id": id, "status": 4003,
			"msg": map[string]interface{}{"message": "unauthorized"}}
	}
	switch name {
	case "get-underlying-list":
		return map[string]interface{}{"name": "underlying-list", "request_id": id, "status": 2000,
			"msg": map[string]interface{}{"underlying": []map[string]interface{}{
				{"active_id": 1, "underlying": "EURUSD", "name": "EUR/USD", "is_suspended": false},
				{"active_id": 76, "underlying": "EURUSD-OTC", "is_suspended": false},
				{"active_id": 5, "underlying": "USDJPY", "is_suspended": true},
			}}}
	case "get-candles":
		var req struct {
			ActiveID int   `json:"active_id"`
			Size     int   `json:"size"`
			To       int64 `json:"to"`
			Count    int   `json:"count"`
		}
		_ = json.Unmarshal(body, &req)
		candles := make([]map[string]interface{}, 0, req.Count)
		// newest first to check the client sorts
		for i := 0; i < req.Count; i++ {
			from := req.To - req.To%int64(req.Size) - int64(i*req.Size)
			candles = append(candles, map[string]interface{}{
				"from": from, "open": 1.1, "close": 1.1 + float64(req.ActiveID)/1000,
				"min": 1.09, "max": 1.12, "volume": 100 + i,
			})
		}
		return map[string]interface{}{"name": "candles", "request_id": id, "status": 2000,
			"msg": map[string]interface{}{"candles": candles}}
	case "get-balances":
		return map[string]interface{}{"name": "balances", "request_id": id, "status": 2000,
			"msg": []map[string]interface{}{
				{"type": 1, "amount": 50.5, "currency": "USD"},
				{"type": 4, "amount": 10000, "currency": "USD"},
			}}
	}
	return map[string]interface{}{"name": "result", "request_id": id, "status": 4004,
		"msg": map[string]interface{}{"message": "unknown request"}}
}

func (f *fakeIQServer) config() IQOptionConfig {
	return IQOptionConfig{
		WSURL:          "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/echo/websocket",
		AuthURL:        f.srv.URL + "/api/v2/login",
		Email:          "trader@example.com",
		Password:       "secret",
		RequestTimeout: 2 * time.Second,
		RateLimit:      100,
	}
}

func TestIQOptionBrokerRoundTrip(t *testing.T) {
	srv := newFakeIQServer(t, "session-123")
	b, err := NewIQOptionBroker(srv.config(), nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer b.Disconnect()
	if !b.IsConnected() {
		t.Fatalf("not connected after Connect")
	}

	assets, err := b.Assets(ctx)
	if err != nil {
		t.Fatalf("assets: %v", err)
	}
	if len(assets) != 3 {
		t.Fatalf("assets = %+v", assets)
	}
	byName := map[string]bool{}
	for _, a := range assets {
		byName[a.Symbol] = a.IsActive
		if a.Symbol == "EURUSD-OTC" && !a.IsOTC {
			t.Fatalf("OTC flag missing")
		}
	}
	if !byName["EURUSD"] || byName["USDJPY"] {
		t.Fatalf("suspension not mapped: %v", byName)
	}

	candles, err := b.GetCandles(ctx, "eurusd", 300, 4)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if len(candles) != 4 {
		t.Fatalf("len = %d", len(candles))
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i].Time.After(candles[i-1].Time) {
			t.Fatalf("candles not ascending at %d", i)
		}
	}
	if candles[0].High != 1.12 || candles[0].Low != 1.09 {
		t.Fatalf("min/max not mapped: %+v", candles[0])
	}

	bal, err := b.Balance(ctx)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Amount != 10000 || bal.Mode != "practice" {
		t.Fatalf("balance = %+v", bal)
	}

	if _, err := b.GetCandles(ctx, "GBPUSD", 300, 4); err == nil {
		t.Fatalf("unknown asset accepted")
	}

	_ = b.Disconnect()
	if b.IsConnected() {
		t.Fatalf("still connected after Disconnect")
	}
	if _, err := b.GetCandles(ctx, "EURUSD", 300, 4); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("want ErrNotConnected, got %v", err)
	}
}

func TestIQOptionBrokerLoginRejected(t *testing.T) {
	srv := newFakeIQServer(t, "session-123")
	cfg := srv.config()
	cfg.Password = "wrong"
	b, err := NewIQOptionBroker(cfg, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := b.Connect(context.Background()); err == nil || !strings.Contains(err.Error(), "rejected") {
		t.Fatalf("want login rejection, got %v", err)
	}
	if b.IsConnected() {
		t.Fatalf("connected after rejected login")
	}
}

func TestIQOptionBrokerRequiresEndpoint(t *testing.T) {
	if _, err := NewIQOptionBroker(IQOptionConfig{}, nil); err == nil {
		t.Fatalf("missing websocket url accepted")
	}
	if _, err := NewIQOptionBroker(IQOptionConfig{WSURL: "ws://x"}, nil); err == nil {
		t.Fatalf("missing credentials accepted")
	}
}
