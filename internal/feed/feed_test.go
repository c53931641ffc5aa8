package feed

import (
	"context"
	"errors"
	"grid-trader-go/internal/models"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRESTFeed(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    float64
		wantErr bool
	}{
		{name: "ok", status: 200, body: `{"symbol":"ETHUSDT","price":"3000.50"}`, want: 3000.5},
		{name: "server error", status: 500, body: `{"code":-1000,"msg":"boom"}`, wantErr: true},
		{name: "bad price", status: 200, body: `{"symbol":"ETHUSDT","price":"abc"}`, wantErr: true},
		{name: "zero price", status: 200, body: `{"symbol":"ETHUSDT","price":"0"}`, wantErr: true},
		{name: "not json", status: 200, body: `<html>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
				assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			price, err := NewRESTFeed("", "", srv.URL).FetchPrice(context.Background(), "ETHUSDT")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, models.ErrFetch))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, price)
		})
	}
}

func TestRESTFeedUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewRESTFeed("", "", url).FetchPrice(context.Background(), "ETHUSDT")
	assert.ErrorIs(t, err, models.ErrFetch)
}

const klineCSV = `open_time,open,high,low,close,volume,close_time,quote_asset_volume,number_of_trades,taker_buy_base_asset_volume,taker_buy_quote_asset_volume
1704067200000,3000,3010,2990,3005.5,1,1704067259999,1,1,1,1
1704067260000,3005.5,3012,2999,2991,1,1704067319999,1,1,1,1
`

func TestReplayFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ETHUSDT.csv")
	require.NoError(t, os.WriteFile(path, []byte(klineCSV), 0644))

	f, err := LoadReplayFeed(path)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, time.UnixMilli(1704067200000), f.Start())
	assert.Equal(t, time.UnixMilli(1704067260000), f.End())

	ctx := context.Background()
	p, err := f.FetchPrice(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 3005.5, p)
	p, err = f.FetchPrice(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2991.0, p)

	_, err = f.FetchPrice(ctx, "ETHUSDT")
	assert.ErrorIs(t, err, models.ErrFeedExhausted)
}

func TestReplayFeedInvalid(t *testing.T) {
	_, err := ParseReplayFeed(strings.NewReader("open_time,open,high,low,close\n"))
	assert.Error(t, err)

	_, err = ParseReplayFeed(strings.NewReader("h\n1,2,3\n"))
	assert.Error(t, err)

	_, err = ParseReplayFeed(strings.NewReader("h,h,h,h,h\nx,1,1,1,1\n"))
	assert.Error(t, err)

	_, err = LoadReplayFeed(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestReplayFeedHonoursContext(t *testing.T) {
	f, err := ParseReplayFeed(strings.NewReader(klineCSV))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.FetchPrice(ctx, "ETHUSDT")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamFeedBeforeFirstMessage(t *testing.T) {
	f := NewStreamFeed("ws://127.0.0.1:1", "ETHUSDT", time.Minute, zap.NewNop())

	_, err := f.FetchPrice(context.Background(), "ETHUSDT")
	assert.ErrorIs(t, err, models.ErrFetch)

	_, err = f.FetchPrice(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, models.ErrFetch)
}

func TestStreamFeedStalePrice(t *testing.T) {
	f := NewStreamFeed("ws://127.0.0.1:1", "ETHUSDT", time.Minute, zap.NewNop())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.price, f.updated = 3000, base

	f.now = func() time.Time { return base.Add(30 * time.Second) }
	p, err := f.FetchPrice(context.Background(), "ethusdt")
	require.NoError(t, err)
	assert.Equal(t, 3000.0, p)

	f.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = f.FetchPrice(context.Background(), "ETHUSDT")
	assert.ErrorIs(t, err, models.ErrFetch)
}

func TestStreamFeedReceivesTrades(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/ethusdt@aggTrade", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"e":"aggTrade","s":"ETHUSDT","p":"3001.25"}`))
		// 保持连接直到客户端关闭
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	f := NewStreamFeed(wsURL, "ETHUSDT", time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		p, err := f.FetchPrice(context.Background(), "ETHUSDT")
		return err == nil && p == 3001.25
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream feed did not stop after cancel")
	}
}
