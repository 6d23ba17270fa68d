// internal/diag/diag_test.go
package diag

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/tamzrod/mattebox/internal/assoc"
	"github.com/tamzrod/mattebox/internal/datalog"
	"github.com/tamzrod/mattebox/internal/events"
	"github.com/tamzrod/mattebox/internal/filter"
	"github.com/tamzrod/mattebox/internal/machine"
	"github.com/tamzrod/mattebox/internal/nvm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeController runs tasks inline.
type fakeController struct {
	view  machine.View
	execs int
	err   error
}

func (f *fakeController) View() machine.View { return f.view }

func (f *fakeController) Exec(_ context.Context, fn func() error) error {
	f.execs++
	if f.err != nil {
		return f.err
	}
	return fn()
}

type fakeHistory struct{ recs []datalog.Record }

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]datalog.Record, error) {
	if limit < len(f.recs) {
		return f.recs[:limit], nil
	}
	return f.recs, nil
}

type fixture struct {
	ctl   *fakeController
	flags *events.Flags
	store *assoc.Store
	srv   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := assoc.New(nvm.NewRAM(8192, nvm.Blank))
	require.NoError(t, err)
	require.NoError(t, store.Format())

	f := &fixture{ctl: &fakeController{}, flags: &events.Flags{}, store: store}
	f.srv = NewRouter(Deps{
		Controller: f.ctl,
		Flags:      f.flags,
		Buttons:    events.NewButtons(f.flags, 0),
		Store:      store,
		History:    &fakeHistory{recs: []datalog.Record{{ID: 2}, {ID: 1}}},
		Log:        zap.NewNop(),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLive(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSection(t *testing.T) {
	f := newFixture(t)
	f.ctl.view.State = machine.ReorderPending
	f.ctl.view.Pending = 2
	f.ctl.view.Section.Slots[1] = filter.Slot{UID: filter.TagID{0xAB}, Name: filter.MakeName("IR"), Position: 2}

	rec := f.do(t, http.MethodGet, "/api/section", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got sectionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "reorder-pending", got.State)
	assert.Equal(t, uint8(2), got.Pending)
	require.Len(t, got.Positions, 3)
	assert.Equal(t, "IR", got.Positions[1].Name)
	assert.Equal(t, "AB00000000000000", got.Positions[1].UID)
	assert.Empty(t, got.Positions[0].UID)
}

func TestPressButton_RaisesFlag(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/buttons/2?press=long", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, events.Button2Long, f.flags.Take())

	rec = f.do(t, http.MethodPost, "/api/buttons/3", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, events.Button3Short, f.flags.Take())
}

func TestSection_ShowsPendingEvents(t *testing.T) {
	f := newFixture(t)

	assert.NotContains(t, decode(t, f.do(t, http.MethodGet, "/api/section", "")), "pending_events")

	f.flags.Raise(events.Button1Short)
	got := decode(t, f.do(t, http.MethodGet, "/api/section", ""))
	assert.Equal(t, "b1-short", got["pending_events"])
	assert.Equal(t, events.Button1Short, f.flags.Take(), "peeking leaves the word intact")
}

// edgeFixture serves only the button routes with its own threshold.
func edgeFixture(t *testing.T, threshold time.Duration) (*events.Flags, http.Handler) {
	t.Helper()
	flags := &events.Flags{}
	return flags, NewRouter(Deps{
		Controller: &fakeController{},
		Buttons:    events.NewButtons(flags, threshold),
		Log:        zap.NewNop(),
	})
}

func post(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	return rec
}

func TestButtonEdges_ShortPress(t *testing.T) {
	flags, h := edgeFixture(t, time.Hour)

	assert.Equal(t, http.StatusAccepted, post(t, h, "/api/buttons/1/down").Code)
	time.Sleep(2 * time.Millisecond)
	rec := post(t, h, "/api/buttons/1/up")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, events.Button1Short, flags.Take())
}

func TestButtonEdges_LongPressUsesThreshold(t *testing.T) {
	flags, h := edgeFixture(t, time.Millisecond)

	post(t, h, "/api/buttons/3/down")
	time.Sleep(10 * time.Millisecond)
	rec := post(t, h, "/api/buttons/3/up")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, events.Button3Long, flags.Take())
}

func TestButtonEdges_ReleaseWithoutPress(t *testing.T) {
	flags, h := edgeFixture(t, 0)

	rec := post(t, h, "/api/buttons/2/up")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, events.Flag(0), flags.Take())

	assert.Equal(t, http.StatusBadRequest, post(t, h, "/api/buttons/4/down").Code)
}

func TestPressButton_Validation(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/buttons/4", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/buttons/x", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/buttons/1?press=double", "").Code)
	assert.Equal(t, events.Flag(0), f.flags.Take())
}

func TestMedia_WithoutDetector(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/media/insert", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/media/eject", "").Code)
}

func TestAssociations_PutGetList(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/associations/04A1B2C3D4E5F601", `{"name":"ND.6"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/associations/04:A1:B2:C3:D4:E5:F6:01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ND.6", decode(t, rec)["name"])

	rec = f.do(t, http.MethodGet, "/api/associations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["associations"], 1)
	counts := body["counts"].(map[string]any)
	assert.EqualValues(t, 716, counts["uid_capacity"])

	assert.Equal(t, 3, f.ctl.execs, "every store call goes through the loop")
}

func TestAssociations_Errors(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/associations/0000000000000042", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/associations/zz", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/associations/0000000000000000", `{"name":"X"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/associations/0000000000000001", `{"name":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/associations/0000000000000001", `{"name":"ELEVENCHARS"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/associations/0000000000000001", `{`).Code)

	f.ctl.err = errors.New("loop stopped")
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/api/associations", "").Code)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/history?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["records"], 1)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/history?limit=-1", "").Code)
}

func TestServe_StopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, newFixture(t).srv, zap.NewNop()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health/live")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	http.DefaultClient.CloseIdleConnections()
}
