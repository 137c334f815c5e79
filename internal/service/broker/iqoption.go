package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	simplejson "github.com/bitly/go-simplejson"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"SignalScan/internal/domain/models"
	"SignalScan/internal/service/ratelimit"
	pkghttp "SignalScan/pkg/http"
	applogger "SignalScan/pkg/logger"
)

// IQOptionConfig configures the IQ Option websocket broker.
type IQOptionConfig struct {
	WSURL          string
	AuthURL        string
	Email          string
	Password       string
	SSID           string // pre-issued session, skips login
	AccountMode    string // practice or real
	RateLimit      float64
	RateBurst      float64
	RequestTimeout time.Duration
	PingInterval   time.Duration
	ReconnectMax   time.Duration
	ReconnectTries int
}

const (
	iqBalanceReal     = 1
	iqBalancePractice = 4
)

type iqSession struct {
	conn *websocket.Conn
	stop chan struct{}
}

// IQOptionBroker talks the IQ Option JSON websocket protocol: every request
// is a "sendMessage" frame carrying a request_id that the response echoes.
type IQOptionBroker struct {
	cfg     IQOptionConfig
	http    *pkghttp.Client
	limiter *ratelimit.Limiter
	log     *applogger.Logger

	mu      sync.Mutex
	sess    *iqSession
	ssid    string
	pending map[string]chan *simplejson.Json
	actives map[string]int

	writeMu   sync.Mutex
	seq       atomic.Uint64
	connected atomic.Bool
	closing   atomic.Bool
}

func NewIQOptionBroker(cfg IQOptionConfig, log *applogger.Logger) (*IQOptionBroker, error) {
	if cfg.WSURL == "" {
		return nil, errors.New("iqoption: websocket url is required")
	}
	if cfg.SSID == "" && (cfg.AuthURL == "" || cfg.Email == "") {
		return nil, errors.New("iqoption: either ssid or auth url and credentials are required")
	}
	if log == nil {
		log = applogger.Nop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 30 * time.Second
	}
	if cfg.ReconnectTries <= 0 {
		cfg.ReconnectTries = 10
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = cfg.RateLimit
	}
	if cfg.AccountMode == "" {
		cfg.AccountMode = "practice"
	}
	return &IQOptionBroker{
		cfg:     cfg,
		http:    pkghttp.NewClient(pkghttp.WithTimeout(cfg.RequestTimeout)),
		limiter: ratelimit.New(),
		log:     log.With(applogger.String("broker", string(TypeIQOption))),
		ssid:    cfg.SSID,
		pending: make(map[string]chan *simplejson.Json),
		actives: make(map[string]int),
	}, nil
}

// Connect logs in when no session id is configured, opens the websocket
// and authenticates it.
func (b *IQOptionBroker) Connect(ctx context.Context) error {
	if b.connected.Load() {
		return nil
	}
	b.closing.Store(false)
	if err := b.open(ctx); err != nil {
		return err
	}
	b.log.Info("iqoption: connected", applogger.String("mode", b.cfg.AccountMode))
	return nil
}

func (b *IQOptionBroker) login(ctx context.Context) (string, error) {
	var resp struct {
		Code    string `json:"code"`
		SSID    string `json:"ssid"`
		Message string `json:"message"`
	}
	body := map[string]string{"identifier": b.cfg.Email, "password": b.cfg.Password}
	if err := b.http.DoJSON(ctx, http.MethodPost, b.cfg.AuthURL, body, &resp); err != nil {
		return "", fmt.Errorf("iqoption login: %w", err)
	}
	if resp.SSID == "" {
		return "", fmt.Errorf("iqoption login rejected: %s %s", resp.Code, resp.Message)
	}
	return resp.SSID, nil
}

func (b *IQOptionBroker) open(ctx context.Context) error {
	b.mu.Lock()
	ssid := b.ssid
	b.mu.Unlock()
	if ssid == "" {
		var err error
		if ssid, err = b.login(ctx); err != nil {
			return err
		}
		b.mu.Lock()
		b.ssid = ssid
		b.mu.Unlock()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("iqoption dial: %w", err)
	}
	sess := &iqSession{conn: conn, stop: make(chan struct{})}
	if err := b.write(sess, map[string]interface{}{"name": "ssid", "msg": ssid}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("iqoption auth: %w", err)
	}

	b.mu.Lock()
	b.sess = sess
	b.mu.Unlock()
	b.connected.Store(true)

	go b.readLoop(sess)
	go b.pingLoop(sess)
	return nil
}

func (b *IQOptionBroker) write(sess *iqSession, v interface{}) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_ = sess.conn.SetWriteDeadline(time.Now().Add(b.cfg.RequestTimeout))
	return sess.conn.WriteJSON(v)
}

func (b *IQOptionBroker) readLoop(sess *iqSession) {
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			b.dropped(sess, err)
			return
		}
		js, err := simplejson.NewJson(raw)
		if err != nil {
			continue
		}
		id := js.Get("request_id").MustString()
		if id == "" {
			continue
		}
		b.mu.Lock()
		ch, ok := b.pending[id]
		b.mu.Unlock()
		if ok {
			select {
			case ch <- js:
			default:
			}
		}
	}
}

func (b *IQOptionBroker) pingLoop(sess *iqSession) {
	ticker := time.NewTicker(b.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.stop:
			return
		case <-ticker.C:
			b.writeMu.Lock()
			err := sess.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			b.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// dropped tears down a session after a read error and, unless the drop was
// requested, reconnects in the background.
func (b *IQOptionBroker) dropped(sess *iqSession, cause error) {
	b.mu.Lock()
	if b.sess != sess {
		b.mu.Unlock()
		return
	}
	b.sess = nil
	close(sess.stop)
	for id, ch := range b.pending {
		close(ch)
		delete(b.pending, id)
	}
	b.mu.Unlock()
	b.connected.Store(false)
	_ = sess.conn.Close()

	if b.closing.Load() {
		return
	}
	b.log.Warn("iqoption: connection lost", applogger.Error(cause))
	go b.reconnect()
}

func (b *IQOptionBroker) reconnect() {
	bo := &backoff.Backoff{Min: 500 * time.Millisecond, Max: b.cfg.ReconnectMax, Factor: 2, Jitter: true}
	for int(bo.Attempt()) < b.cfg.ReconnectTries {
		time.Sleep(bo.Duration())
		if b.closing.Load() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), b.cfg.RequestTimeout)
		err := b.open(ctx)
		cancel()
		if err == nil {
			b.log.Info("iqoption: reconnected", applogger.Int("attempts", int(bo.Attempt())))
			return
		}
		b.log.Warn("iqoption: reconnect failed", applogger.Int("attempt", int(bo.Attempt())), applogger.Error(err))
	}
	b.log.Error("iqoption: giving up reconnecting", applogger.Int("attempts", b.cfg.ReconnectTries))
}

// request sends one sendMessage frame and waits for the matching response.
func (b *IQOptionBroker) request(ctx context.Context, name, version string, body interface{}) (*simplejson.Json, error) {
	b.mu.Lock()
	sess := b.sess
	if sess == nil {
		b.mu.Unlock()
		return nil, ErrNotConnected
	}
	id := strconv.FormatUint(b.seq.Add(1), 10)
	ch := make(chan *simplejson.Json, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	frame := map[string]interface{}{
		"name":       "sendMessage",
		"request_id": id,
		"msg": map[string]interface{}{
			"name":    name,
			"version": version,
			"body":    body,
		},
	}
	if err := b.write(sess, frame); err != nil {
		return nil, fmt.Errorf("iqoption %s: %w", name, err)
	}

	timer := time.NewTimer(b.cfg.RequestTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("iqoption %s: %w", name, context.DeadlineExceeded)
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, models.ErrConnectionLost
		}
		if status, err := resp.Get("status").Int(); err == nil && status != 2000 && status != 0 {
			return nil, fmt.Errorf("iqoption %s: status %d: %s", name, status, resp.Get("msg").Get("message").MustString())
		}
		return resp.Get("msg"), nil
	}
}

func (b *IQOptionBroker) Disconnect() error {
	b.closing.Store(true)
	b.mu.Lock()
	sess := b.sess
	b.mu.Unlock()
	b.connected.Store(false)
	if sess == nil {
		return nil
	}
	b.writeMu.Lock()
	_ = sess.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	b.writeMu.Unlock()
	// readLoop observes the close and tears the session down
	return sess.conn.Close()
}

func (b *IQOptionBroker) IsConnected() bool { return b.connected.Load() }

func (b *IQOptionBroker) Balance(ctx context.Context) (Balance, error) {
	msg, err := b.request(ctx, "get-balances", "1.0", map[string]interface{}{
		"types_ids": []int{iqBalanceReal, iqBalancePractice},
	})
	if err != nil {
		return Balance{}, err
	}
	want := iqBalancePractice
	if b.cfg.AccountMode == "real" {
		want = iqBalanceReal
	}
	items, _ := msg.Array()
	for i := range items {
		it := msg.GetIndex(i)
		if it.Get("type").MustInt() != want {
			continue
		}
		return Balance{
			Amount:   it.Get("amount").MustFloat64(),
			Currency: it.Get("currency").MustString(),
			Mode:     b.cfg.AccountMode,
		}, nil
	}
	return Balance{}, fmt.Errorf("iqoption: no %s balance", b.cfg.AccountMode)
}

// Assets lists the digital-option underlyings and refreshes the symbol to
// active id table used for candle requests.
func (b *IQOptionBroker) Assets(ctx context.Context) ([]models.Asset, error) {
	msg, err := b.request(ctx, "get-underlying-list", "2.0", map[string]interface{}{"type": "digital-option"})
	if err != nil {
		return nil, err
	}
	list := msg.Get("underlying")
	items, _ := list.Array()
	out := make([]models.Asset, 0, len(items))
	ids := make(map[string]int, len(items))
	for i := range items {
		it := list.GetIndex(i)
		symbol := strings.ToUpper(it.Get("underlying").MustString())
		if symbol == "" {
			continue
		}
		ids[symbol] = it.Get("active_id").MustInt()
		out = append(out, models.Asset{
			Symbol:   symbol,
			Name:     it.Get("name").MustString(symbol),
			IsActive: !it.Get("is_suspended").MustBool(),
			IsOTC:    strings.HasSuffix(symbol, "-OTC"),
		})
	}
	b.mu.Lock()
	b.actives = ids
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (b *IQOptionBroker) activeID(ctx context.Context, symbol string) (int, error) {
	symbol = strings.ToUpper(symbol)
	b.mu.Lock()
	id, ok := b.actives[symbol]
	loaded := len(b.actives) > 0
	b.mu.Unlock()
	if ok {
		return id, nil
	}
	if !loaded {
		if _, err := b.Assets(ctx); err != nil {
			return 0, err
		}
		b.mu.Lock()
		id, ok = b.actives[symbol]
		b.mu.Unlock()
		if ok {
			return id, nil
		}
	}
	return 0, fmt.Errorf("iqoption: unknown asset %q", symbol)
}

func (b *IQOptionBroker) GetCandles(ctx context.Context, symbol string, tfSeconds, count int) ([]models.Candle, error) {
	if !b.IsConnected() {
		return nil, ErrNotConnected
	}
	id, err := b.activeID(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := b.limiter.Wait(ctx, "candles", b.cfg.RateBurst, b.cfg.RateLimit); err != nil {
		return nil, err
	}
	msg, err := b.request(ctx, "get-candles", "2.0", map[string]interface{}{
		"active_id": id,
		"size":      tfSeconds,
		"to":        time.Now().Unix(),
		"count":     count,
	})
	if err != nil {
		return nil, err
	}

	list := msg.Get("candles")
	items, _ := list.Array()
	out := make([]models.Candle, 0, len(items))
	for i := range items {
		c := list.GetIndex(i)
		out = append(out, models.Candle{
			Time:   time.Unix(c.Get("from").MustInt64(), 0).UTC(),
			Open:   c.Get("open").MustFloat64(),
			High:   c.Get("max").MustFloat64(),
			Low:    c.Get("min").MustFloat64(),
			Close:  c.Get("close").MustFloat64(),
			Volume: c.Get("volume").MustFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func (b *IQOptionBroker) Name() string { return "IQ Option" }
func (b *IQOptionBroker) Type() Type   { return TypeIQOption }
