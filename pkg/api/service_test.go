package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"xhrbridge/internal/config"
	"xhrbridge/pkg/xhr"
)

func newTestService(t *testing.T, onNew func(HandleID, *xhr.Request)) Service {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Sqlite.Dsn = filepath.Join(t.TempDir(), "svc.sqlite3")
	svc, err := New(Options{Config: cfg, OnNewHandle: onNew})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(5 * time.Second):
		t.Fatal("未收到交换事件")
		return Event{}
	}
}

func TestServiceConstructionHook(t *testing.T) {
	var hooked []HandleID
	svc := newTestService(t, func(id HandleID, r *xhr.Request) {
		require.NotNil(t, r)
		hooked = append(hooked, id)
	})

	id, r, err := svc.NewHandle()
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, []HandleID{id}, hooked)

	got, ok := svc.Get(id)
	require.True(t, ok)
	require.Same(t, r, got)
}

func TestServiceFullExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("pong"))
	}))
	defer srv.Close()

	svc := newTestService(t, nil)
	events := svc.SubscribeEvents()

	id, r, err := svc.NewHandle()
	require.NoError(t, err)
	require.NoError(t, r.Open("GET", srv.URL, true))
	require.NoError(t, r.Send(nil))

	evt := waitEvent(t, events)
	require.Equal(t, "load", evt.Type)
	require.Equal(t, id, evt.Handle)
	require.Equal(t, 200, evt.Status)
	require.Equal(t, "pong", r.ResponseText())

	// 交换日志已落库
	recs, err := svc.ListExchanges(10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "load", recs[0].Outcome)
	require.Equal(t, string(id), recs[0].HandleID)
	require.Equal(t, int64(4), recs[0].Bytes)
}

func TestServiceErrorExchange(t *testing.T) {
	svc := newTestService(t, nil)
	events := svc.SubscribeEvents()

	_, r, err := svc.NewHandle()
	require.NoError(t, err)
	require.NoError(t, r.Open("GET", "http://127.0.0.1:1/nope", true))
	require.NoError(t, r.Send(nil))

	evt := waitEvent(t, events)
	require.Equal(t, "error", evt.Type)
	require.Equal(t, 0, evt.Status)
}

func TestServiceRelease(t *testing.T) {
	svc := newTestService(t, nil)

	id, _, err := svc.NewHandle()
	require.NoError(t, err)
	require.NoError(t, svc.Release(id))
	_, ok := svc.Get(id)
	require.False(t, ok)
	require.Error(t, svc.Release(id))
}

func TestServiceClose(t *testing.T) {
	svc := newTestService(t, nil)
	_, _, err := svc.NewHandle()
	require.NoError(t, err)
	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close()) // 幂等

	_, _, err = svc.NewHandle()
	require.Error(t, err)
}
