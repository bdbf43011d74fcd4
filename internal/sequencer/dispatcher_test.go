package sequencer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ugoku-core/internal/camera"
	"github.com/nerrad567/ugoku-core/internal/device"
	"github.com/nerrad567/ugoku-core/internal/retry"
	"github.com/nerrad567/ugoku-core/internal/task"
	"github.com/nerrad567/ugoku-core/internal/transport"
)

// events is a shared, ordered record of waits and device calls.
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, fmt.Sprintf(format, args...))
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

// fakeResolver resolves a fixed device set.
type fakeResolver map[string]device.Handle

func (r fakeResolver) Resolve(id string) (device.Handle, error) {
	h, ok := r[id]
	if !ok {
		return nil, device.ErrNotFound
	}
	return h, nil
}

// fakeCamera records built and sent commands.
type fakeCamera struct {
	ev       *events
	id       string
	buildErr error
	sendErr  error
	attempts int
}

func (c *fakeCamera) cmd(op string) (camera.Command, error) {
	if c.buildErr != nil {
		return camera.Command{}, c.buildErr
	}
	return camera.Command{Request: transport.Request{Method: "X", URL: op}}, nil
}

func (c *fakeCamera) Raw(method, path, _ string) (camera.Command, error) {
	return c.cmd(strings.ToUpper(method) + " " + path)
}

func (c *fakeCamera) Shutter(af bool) (camera.Command, error) {
	return c.cmd(fmt.Sprintf("shutter af=%v", af))
}

func (c *fakeCamera) SetSetting(name, value string) (camera.Command, error) {
	return c.cmd(name + "=" + value)
}

func (c *fakeCamera) RefreshSettings() (camera.Command, error) {
	return c.cmd("settings")
}

func (c *fakeCamera) Run(_ context.Context, cmd camera.Command) (*transport.Response, int, error) {
	c.ev.add("%s: %s", c.id, cmd.Request.URL)
	attempts := c.attempts
	if attempts == 0 {
		attempts = 1
	}
	if c.sendErr != nil {
		return nil, attempts, c.sendErr
	}
	return &transport.Response{Status: http.StatusOK}, attempts, nil
}

// fakeTable records turntable moves. If block is set, Turn waits on it.
type fakeTable struct {
	ev      *events
	id      string
	err     error
	entered chan struct{}
	block   chan struct{}
	onTurn  func(ctx context.Context)
}

func (f *fakeTable) Turn(ctx context.Context, clockwise bool, degrees int) error {
	if f.onTurn != nil {
		f.onTurn(ctx)
	}
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	f.ev.add("%s: turn cw=%v %d", f.id, clockwise, degrees)
	return f.err
}

func (f *fakeTable) SetSpeed(rpm int) error {
	f.ev.add("%s: speed %d", f.id, rpm)
	return f.err
}

// recorder is an Observer capturing everything it sees.
type recorder struct {
	mu       sync.Mutex
	started  []Execution
	outcomes []Outcome
	finished []Execution
}

func (r *recorder) RunStarted(e Execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, e)
}

func (r *recorder) TaskFinished(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recorder) RunFinished(e Execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, e)
}

type harness struct {
	d     *Dispatcher
	ev    *events
	cam   *fakeCamera
	table *fakeTable
	rec   *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ev := &events{}
	devices := fakeResolver{
		"cam1":  &device.Camera{ID: "cam1", Endpoint: "127.0.0.1:8080"},
		"table": &device.Turntable{ID: "table", Port: "/dev/ttyUSB0"},
	}
	h := &harness{
		d:     NewDispatcher(devices, nil),
		ev:    ev,
		cam:   &fakeCamera{ev: ev, id: "cam1"},
		table: &fakeTable{ev: ev, id: "table"},
		rec:   &recorder{},
	}
	h.d.AddCamera("cam1", h.cam)
	h.d.AddTurntable("table", h.table)
	h.d.AddObserver(h.rec)
	h.d.wait = func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrStopped, err)
		}
		ev.add("wait %v", d)
		return nil
	}
	h.d.newID = func() string { return "run-1" }
	return h
}

func mustList(t *testing.T, rows ...string) *task.List {
	t.Helper()
	recs := make([][]string, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, strings.Split(r, ","))
	}
	list, err := task.FromRows(task.Columns, recs)
	if err != nil {
		t.Fatalf("FromRows() error = %v", err)
	}
	return list
}

func TestRun_SingleWaitOnAll(t *testing.T) {
	h := newHarness(t)
	list := mustList(t, "t1,0,all,wait,,")

	exec, err := h.d.Run(context.Background(), list, Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if exec.State != StateCompleted {
		t.Errorf("State = %s, want completed", exec.State)
	}
	if len(h.rec.outcomes) != 1 || h.rec.outcomes[0].Status != StatusCompleted {
		t.Errorf("outcomes = %+v, want one completed", h.rec.outcomes)
	}
	for _, e := range h.ev.all() {
		if !strings.HasPrefix(e, "wait") {
			t.Errorf("unexpected device call %q", e)
		}
	}
	if h.d.State() != StateCompleted {
		t.Errorf("Dispatcher.State() = %s", h.d.State())
	}
}

func TestRun_OrderAndWaitBeforeAction(t *testing.T) {
	h := newHarness(t)
	list := mustList(t,
		"t1,0,cam1,aperture,f4.0,",
		"t2,1.5,table,cw,90,",
		"t3,0,table,speed,10,",
		"t4,0.5,cam1,shutter,yes,",
		"t5,0,all,sleep,,",
		"t6,0,cam1,get,/shooting/settings,",
	)

	exec, err := h.d.Run(context.Background(), list, Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{
		"wait 0s", "cam1: aperture=f4.0",
		"wait 1.5s", "table: turn cw=true 90",
		"wait 0s", "table: speed 10",
		"wait 500ms", "cam1: shutter af=true",
		"wait 0s",
		"wait 0s", "cam1: GET /shooting/settings",
	}
	got := h.ev.all()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("events:\n got %v\nwant %v", got, want)
	}

	if exec.Completed != 6 || exec.Total != 6 {
		t.Errorf("Completed/Total = %d/%d, want 6/6", exec.Completed, exec.Total)
	}
	for i, o := range h.rec.outcomes {
		if o.Row != i {
			t.Errorf("outcome %d has row %d", i, o.Row)
		}
		if o.RunID != "run-1" {
			t.Errorf("outcome RunID = %q", o.RunID)
		}
	}
}

func TestRun_UnknownTargetHaltsWithoutTransport(t *testing.T) {
	h := newHarness(t)
	list := mustList(t,
		"t1,0,cam9,shutter,,",
		"t2,0,cam1,shutter,,",
	)

	exec, err := h.d.Run(context.Background(), list, Options{})

	var halt *HaltError
	if !errors.As(err, &halt) {
		t.Fatalf("Run() error = %v, want *HaltError", err)
	}
	if halt.Row != 0 || halt.TaskID != "t1" {
		t.Errorf("halt = row %d task %s, want row 0 task t1", halt.Row, halt.TaskID)
	}
	if !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("error = %v, want ErrUnknownTarget", err)
	}
	if !IsResolution(err) {
		t.Error("IsResolution() = false")
	}
	if exec.State != StateHalted || exec.HaltTaskID != "t1" || exec.HaltRow == nil || *exec.HaltRow != 0 {
		t.Errorf("exec = %+v", exec)
	}
	for _, e := range h.ev.all() {
		if strings.HasPrefix(e, "cam") || strings.HasPrefix(e, "table") {
			t.Errorf("unexpected device call %q", e)
		}
	}
	if len(h.rec.outcomes) != 1 || h.rec.outcomes[0].Status != StatusFailed {
		t.Errorf("outcomes = %+v, want one failed", h.rec.outcomes)
	}
}

func TestRun_HaltsOnFirstFailure(t *testing.T) {
	h := newHarness(t)
	h.table.err = transport.Fatal("serial write", transport.ErrPortBroken)
	list := mustList(t,
		"t1,0,cam1,shutter,,",
		"t2,0,table,ccw,45,",
		"t3,0,cam1,shutter,,",
	)

	exec, err := h.d.Run(context.Background(), list, Options{})

	var halt *HaltError
	if !errors.As(err, &halt) || halt.Row != 1 || halt.TaskID != "t2" {
		t.Fatalf("Run() error = %v, want halt at row 1", err)
	}
	if !errors.Is(err, transport.ErrPortBroken) {
		t.Errorf("error = %v, want ErrPortBroken in chain", err)
	}
	if exec.Completed != 1 {
		t.Errorf("Completed = %d, want 1", exec.Completed)
	}
	want := []string{"wait 0s", "cam1: shutter af=false", "wait 0s", "table: turn cw=false 45"}
	if got := h.ev.all(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("events = %v, want %v", got, want)
	}
	if len(h.rec.outcomes) != 2 {
		t.Errorf("len(outcomes) = %d, want 2", len(h.rec.outcomes))
	}
	if len(h.rec.finished) != 1 || h.rec.finished[0].State != StateHalted {
		t.Errorf("finished = %+v", h.rec.finished)
	}
}

func TestRun_ResolutionErrors(t *testing.T) {
	tests := []struct {
		name     string
		row      string
		buildErr error
		want     error
	}{
		{name: "all only allows wait", row: "t1,0,all,shutter,,", want: ErrUnknownAction},
		{name: "unknown camera action", row: "t1,0,cam1,spin,,", want: ErrUnknownAction},
		{name: "camera action on turntable", row: "t1,0,table,shutter,,", want: ErrUnknownAction},
		{name: "turntable action on camera", row: "t1,0,cam1,cw,90,", want: ErrUnknownAction},
		{name: "setting alias without wb key", row: "t1,0,cam1,wb,auto,", want: ErrUnknownAction},
		{name: "degrees not a number", row: "t1,0,table,cw,ninety,", want: ErrInvalidParam},
		{name: "degrees fractional", row: "t1,0,table,cw,12.5,", want: ErrInvalidParam},
		{name: "speed zero", row: "t1,0,table,speed,0,", want: ErrInvalidParam},
		{name: "speed missing", row: "t1,0,table,speed,,", want: ErrInvalidParam},
		{name: "bad autofocus flag", row: "t1,0,cam1,shutter,maybe,", want: ErrInvalidParam},
		{name: "raw without path", row: "t1,0,cam1,get,,", want: ErrInvalidParam},
		{name: "builder rejects value", row: "t1,0,cam1,aperture,f99,", buildErr: camera.ErrInvalidValue, want: camera.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.cam.buildErr = tt.buildErr

			_, err := h.d.Run(context.Background(), mustList(t, tt.row), Options{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Run() error = %v, want %v", err, tt.want)
			}
			if !IsResolution(err) {
				t.Errorf("IsResolution(%v) = false", err)
			}
			for _, e := range h.ev.all() {
				if !strings.HasPrefix(e, "wait") {
					t.Errorf("unexpected device call %q", e)
				}
			}
		})
	}
}

func TestRun_DryRun(t *testing.T) {
	h := newHarness(t)
	list := mustList(t,
		"t1,5,cam1,shutter,,",
		"t2,5,table,cw,90,",
		"t3,5,all,wait,,",
	)

	exec, err := h.d.Run(context.Background(), list, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !exec.DryRun || exec.State != StateCompleted {
		t.Errorf("exec = %+v", exec)
	}
	if got := h.ev.all(); len(got) != 0 {
		t.Errorf("dry run touched devices or waited: %v", got)
	}
	for _, o := range h.rec.outcomes {
		if o.Status != StatusValidated {
			t.Errorf("outcome %s status = %s, want validated", o.TaskID, o.Status)
		}
	}
}

func TestRun_DryRunReportsFirstWouldBeHalt(t *testing.T) {
	h := newHarness(t)
	list := mustList(t,
		"t1,0,cam1,shutter,,",
		"t2,0,cam9,shutter,,",
		"t3,0,all,shutter,,",
	)

	_, err := h.d.Run(context.Background(), list, Options{DryRun: true})

	var halt *HaltError
	if !errors.As(err, &halt) || halt.Row != 1 || !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("Run() error = %v, want unknown target at row 1", err)
	}
	if got := h.ev.all(); len(got) != 0 {
		t.Errorf("dry run touched devices: %v", got)
	}
}

func TestRun_CancelledDuringWait(t *testing.T) {
	h := newHarness(t)
	h.d.wait = wait

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	list := mustList(t,
		"t1,0,cam1,shutter,,",
		"t2,10,cam1,shutter,,",
	)

	start := time.Now()
	exec, err := h.d.Run(ctx, list, Options{})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Run() took %v; wait was not interrupted", elapsed)
	}

	var halt *HaltError
	if !errors.As(err, &halt) || halt.Row != 1 {
		t.Fatalf("Run() error = %v, want halt at row 1", err)
	}
	if !Stopped(err) {
		t.Errorf("Stopped(%v) = false", err)
	}
	if exec.Completed != 1 {
		t.Errorf("Completed = %d, want 1", exec.Completed)
	}
	if n := len(h.ev.all()); n != 1 {
		t.Errorf("device calls = %d, want 1", n)
	}
}

func TestRun_RefusesConcurrentRun(t *testing.T) {
	h := newHarness(t)
	h.table.entered = make(chan struct{})
	h.table.block = make(chan struct{})
	list := mustList(t, "t1,0,table,cw,10,")

	done := make(chan error, 1)
	go func() {
		_, err := h.d.Run(context.Background(), list, Options{})
		done <- err
	}()

	<-h.table.entered
	if h.d.State() != StateRunning {
		t.Errorf("State() = %s, want running", h.d.State())
	}
	if snap := h.d.Snapshot(); snap.Cursor != 0 || snap.ID != "run-1" {
		t.Errorf("Snapshot() = %+v", snap)
	}

	if _, err := h.d.Run(context.Background(), list, Options{}); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}

	close(h.table.block)
	if err := <-done; err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	// A finished dispatcher can run again, from row 0.
	h.table.entered = nil
	h.table.block = nil
	if _, err := h.d.Run(context.Background(), list, Options{}); err != nil {
		t.Errorf("rerun error = %v", err)
	}
}

func TestRun_CancelledDuringTurnStopsBeforeNextRow(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The driver sees the run's context, so a stop cuts its settle short.
	h.table.onTurn = func(turnCtx context.Context) {
		cancel()
		if turnCtx.Err() == nil {
			t.Error("Turn() got a context the run cannot cancel")
		}
	}

	list := mustList(t,
		"t1,0,table,cw,90,",
		"t2,0,cam1,shutter,,",
	)
	exec, err := h.d.Run(ctx, list, Options{})

	var halt *HaltError
	if !errors.As(err, &halt) || halt.Row != 1 || !Stopped(err) {
		t.Fatalf("Run() error = %v, want stop at row 1", err)
	}
	if exec.Completed != 1 {
		t.Errorf("Completed = %d, want 1", exec.Completed)
	}
	for _, e := range h.ev.all() {
		if strings.HasPrefix(e, "cam1:") {
			t.Errorf("camera touched after stop: %v", h.ev.all())
		}
	}
}

func TestRun_NilList(t *testing.T) {
	h := newHarness(t)
	if _, err := h.d.Run(context.Background(), nil, Options{}); !errors.Is(err, ErrNilList) {
		t.Errorf("Run(nil) error = %v, want ErrNilList", err)
	}

	exec, err := h.d.Run(context.Background(), mustList(t), Options{})
	if err != nil {
		t.Fatalf("Run(empty) error = %v", err)
	}
	if exec.State != StateCompleted || exec.Total != 0 {
		t.Errorf("Run(empty) = %s with %d rows, want completed with 0", exec.State, exec.Total)
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "90", want: 90},
		{in: " -45 ", want: -45},
		{in: "90.0", want: 90},
		{in: "1e2", want: 100},
		{in: "12.5", wantErr: true},
		{in: "", wantErr: true},
		{in: "NaN", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseInt(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseInt(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseInt(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// cameraServer is a camera that always answers the given status, counting requests.
func cameraServer(t *testing.T, status int, body string) (*httptest.Server, *int, *sync.Mutex) {
	t.Helper()
	var (
		mu    sync.Mutex
		count int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &count, &mu
}

func realCamera(t *testing.T, srv *httptest.Server, attempts int) (*Dispatcher, *device.Camera, *recorder) {
	t.Helper()
	cam := &device.Camera{
		ID:       "cam1",
		Endpoint: strings.TrimPrefix(srv.URL, "http://"),
		Tuning:   device.Tuning{Attempts: attempts, Delay: time.Millisecond, Timeout: time.Second},
	}
	client := camera.NewClient(cam, transport.NewHTTP(time.Second), retry.New(), camera.Options{})

	d := NewDispatcher(fakeResolver{"cam1": cam}, nil)
	d.AddCamera("cam1", client)
	rec := &recorder{}
	d.AddObserver(rec)
	return d, cam, rec
}

func TestRun_RetriesExhaustedAgainstBusyCamera(t *testing.T) {
	srv, count, mu := cameraServer(t, http.StatusServiceUnavailable, `{"message":"Device busy"}`)
	d, _, rec := realCamera(t, srv, 4)

	_, err := d.Run(context.Background(), mustList(t, "t1,0,cam1,shutter,,"), Options{})
	if !errors.Is(err, retry.ErrRetriesExhausted) {
		t.Fatalf("Run() error = %v, want ErrRetriesExhausted", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if *count != 4 {
		t.Errorf("requests = %d, want 4", *count)
	}
	if rec.outcomes[0].Attempts != 4 {
		t.Errorf("outcome attempts = %d, want 4", rec.outcomes[0].Attempts)
	}
}

func TestRun_FatalOnFirstAttempt(t *testing.T) {
	srv, count, mu := cameraServer(t, http.StatusBadRequest, `{"message":"Invalid parameter"}`)
	d, _, _ := realCamera(t, srv, 5)

	_, err := d.Run(context.Background(), mustList(t, "t1,0,cam1,put,/shooting/settings/av,"), Options{})
	if !errors.Is(err, retry.ErrFatal) {
		t.Fatalf("Run() error = %v, want ErrFatal", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if *count != 1 {
		t.Errorf("requests = %d, want 1", *count)
	}
}

func TestRun_AutoSurvivesSettingsRefresh(t *testing.T) {
	srv, _, _ := cameraServer(t, http.StatusOK, `{"iso": {"value": "auto", "ability": ["auto", "100", "200"]}}`)
	d, cam, _ := realCamera(t, srv, 1)

	if _, err := d.Run(context.Background(), mustList(t, "t1,0,cam1,settings,,"), Options{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	s, ok := cam.Setting(camera.KeyISO)
	if !ok {
		t.Fatal("iso missing from snapshot")
	}
	if s.Value != device.Auto {
		t.Errorf("iso = %q, want %q", s.Value, device.Auto)
	}
}
