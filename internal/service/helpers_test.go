package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DukeRupert/labsnap/internal/ai/mock"
	"github.com/DukeRupert/labsnap/internal/auth"
	"github.com/DukeRupert/labsnap/internal/clock"
	"github.com/DukeRupert/labsnap/internal/countdown"
	"github.com/DukeRupert/labsnap/internal/storage"
	"github.com/DukeRupert/labsnap/internal/store"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// idleTicker never fires, so armed countdowns stay at their start value.
type idleTicker struct {
	c chan time.Time
}

func (t idleTicker) C() <-chan time.Time { return t.c }
func (t idleTicker) Stop()               {}

func newIdleTicker(time.Duration) countdown.Ticker {
	return idleTicker{c: make(chan time.Time)}
}

type meteringFixture struct {
	metering   MeteringService
	records    *store.Resilient
	countdowns *countdown.Registry
	clock      *clock.Fake
}

func newMeteringFixture() *meteringFixture {
	clk := clock.NewFake(day0)
	records := store.NewResilient(nil, testLogger())
	countdowns := countdown.NewRegistry(countdown.WithTicker(newIdleTicker))
	return &meteringFixture{
		metering:   NewMeteringService(records, countdowns, clk, testLogger()),
		records:    records,
		countdowns: countdowns,
		clock:      clk,
	}
}

// pngBytes encodes a blank w×h PNG.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

type solveFixture struct {
	*meteringFixture
	svc      SolveService
	analyzer *mock.Provider
	history  *store.MemoryHistory
	files    *storage.LocalStorage
}

func newSolveFixture(t *testing.T) *solveFixture {
	t.Helper()
	m := newMeteringFixture()
	analyzer := mock.New(testLogger())
	history := store.NewMemoryHistory()
	files, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, testLogger())
	require.NoError(t, err)

	return &solveFixture{
		meteringFixture: m,
		svc:             NewSolveService(m.metering, analyzer, NewImageProcessor(), history, files, m.clock, testLogger()),
		analyzer:        analyzer,
		history:         history,
		files:           files,
	}
}

func (f *solveFixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Drain(ctx))
}

func member(id string) auth.Identity {
	return auth.Identity{UserID: id, Email: id + "@example.com", Authenticated: true}
}
