package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gocv.io/x/gocv"
)

// fakeHelperEnv switches the test binary into a stand-in for
// mediapipe_service.py. Its value selects the behaviour.
const fakeHelperEnv = "HANDTRACK_FAKE_HELPER"

func TestMain(m *testing.M) {
	if mode := os.Getenv(fakeHelperEnv); mode != "" {
		os.Exit(runFakeHelper(mode))
	}
	os.Exit(m.Run())
}

// runFakeHelper speaks the helper protocol on stdin/stdout:
//
//	echo             one hand whose wrist is (width, height), handedness is the pid
//	error            an error reply for every frame, staying alive
//	crash-after-one  answers the first frame and exits on the second
//	die              writes an import error to stderr and exits 1
func runFakeHelper(mode string) int {
	if mode == "die" {
		fmt.Fprintln(os.Stderr, "Traceback (most recent call last):")
		fmt.Fprintln(os.Stderr, "ModuleNotFoundError: No module named 'mediapipe'")
		return 1
	}

	in := bufio.NewReader(os.Stdin)
	enc := json.NewEncoder(os.Stdout)
	header := make([]byte, 12)

	for n := 0; ; n++ {
		if _, err := io.ReadFull(in, header); err != nil {
			return 0
		}
		w := binary.BigEndian.Uint32(header[0:4])
		h := binary.BigEndian.Uint32(header[4:8])
		c := binary.BigEndian.Uint32(header[8:12])
		if _, err := io.ReadFull(in, make([]byte, w*h*c)); err != nil {
			return 0
		}

		switch {
		case mode == "error":
			enc.Encode(map[string]any{"hands": []any{}, "error": "bad frame"})
		case mode == "crash-after-one" && n > 0:
			return 2
		default:
			enc.Encode(map[string]any{
				"hands": []jsonHand{{
					Points:     []jsonPoint{{X: float64(w), Y: float64(h)}},
					Handedness: strconv.Itoa(os.Getpid()),
					Score:      0.9,
				}},
			})
		}
	}
}

// newFakeHelperDetector returns a detector that runs the test binary as its
// helper in the given mode.
func newFakeHelperDetector(t *testing.T, mode string, log *zap.Logger) *MediaPipeDetector {
	t.Helper()
	t.Setenv(fakeHelperEnv, mode)

	script := filepath.Join(t.TempDir(), "mediapipe_service.py")
	if err := os.WriteFile(script, []byte("# stand-in\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := NewMediaPipeDetector(Config{
		MaxHands:   1,
		ScriptPath: script,
		PythonPath: os.Args[0],
	}, log)
	if err != nil {
		t.Fatalf("NewMediaPipeDetector() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func smallFrame(t *testing.T) *gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(4, 6, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return &m
}

func TestMediaPipeDetector_HelperRoundTrip(t *testing.T) {
	d := newFakeHelperDetector(t, "echo", nil)
	frame := smallFrame(t)

	if d.started || d.starts != 0 {
		t.Fatal("helper should not start before the first frame")
	}

	hands, err := d.Detect(frame)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if d.starts != 1 {
		t.Errorf("starts = %d, want 1", d.starts)
	}
	if len(hands) != 1 {
		t.Fatalf("got %d hands, want 1", len(hands))
	}
	wrist := hands[0].Points[Wrist]
	if wrist.X != 6 || wrist.Y != 4 {
		t.Errorf("wrist = (%v, %v), want the frame size (6, 4)", wrist.X, wrist.Y)
	}
	if hands[0].Score != 0.9 {
		t.Errorf("score = %v, want 0.9", hands[0].Score)
	}

	again, err := d.Detect(frame)
	if err != nil {
		t.Fatalf("second Detect() error = %v", err)
	}
	if again[0].Handedness != hands[0].Handedness || d.starts != 1 {
		t.Error("second frame should reuse the running helper")
	}
}

func TestMediaPipeDetector_HelperErrorKeepsProcess(t *testing.T) {
	d := newFakeHelperDetector(t, "error", nil)
	frame := smallFrame(t)

	for i := 0; i < 2; i++ {
		_, err := d.Detect(frame)
		if !errors.Is(err, ErrHelper) {
			t.Fatalf("Detect() #%d error = %v, want ErrHelper", i, err)
		}
		if !strings.Contains(err.Error(), "bad frame") {
			t.Errorf("error %q should carry the helper message", err)
		}
	}
	if !d.started || d.starts != 1 {
		t.Errorf("started = %v, starts = %d; helper should stay up after an error reply", d.started, d.starts)
	}
}

func TestMediaPipeDetector_RestartsAfterCrash(t *testing.T) {
	d := newFakeHelperDetector(t, "crash-after-one", nil)
	frame := smallFrame(t)

	first, err := d.Detect(frame)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	_, err = d.Detect(frame)
	if err == nil {
		t.Fatal("Detect() on a crashing helper should fail")
	}
	if errors.Is(err, ErrHelperUnavailable) {
		t.Fatalf("a helper that answered before should be restarted, got %v", err)
	}
	if d.started {
		t.Error("crashed helper should be torn down")
	}

	second, err := d.Detect(frame)
	if err != nil {
		t.Fatalf("Detect() after restart error = %v", err)
	}
	if d.starts != 2 {
		t.Errorf("starts = %d, want 2", d.starts)
	}
	if second[0].Handedness == first[0].Handedness {
		t.Error("restarted helper should be a new process")
	}
}

func TestMediaPipeDetector_DeadHelperIsUnavailable(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := newFakeHelperDetector(t, "die", zap.New(core))
	frame := smallFrame(t)

	for i := 0; i < 3; i++ {
		if _, err := d.Detect(frame); !errors.Is(err, ErrHelperUnavailable) {
			t.Fatalf("Detect() #%d error = %v, want ErrHelperUnavailable", i, err)
		}
	}
	if d.starts != 1 {
		t.Errorf("starts = %d, want 1", d.starts)
	}

	entries := logs.FilterMessage("mediapipe helper failed to start").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d start failures, want 1", len(entries))
	}
	stderr, _ := entries[0].ContextMap()["stderr"].(string)
	if !strings.Contains(stderr, "No module named 'mediapipe'") {
		t.Errorf("stderr field = %q, want the helper's import error", stderr)
	}
}

func TestMediaPipeDetector_MissingInterpreterIsUnavailable(t *testing.T) {
	script := filepath.Join(t.TempDir(), "mediapipe_service.py")
	if err := os.WriteFile(script, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := NewMediaPipeDetector(Config{
		ScriptPath: script,
		PythonPath: filepath.Join(t.TempDir(), "no-such-python"),
	}, nil)
	if err != nil {
		t.Fatalf("NewMediaPipeDetector() error = %v", err)
	}
	defer d.Close()

	frame := smallFrame(t)
	for i := 0; i < 2; i++ {
		if _, err := d.Detect(frame); !errors.Is(err, ErrHelperUnavailable) {
			t.Fatalf("Detect() #%d error = %v, want ErrHelperUnavailable", i, err)
		}
	}
	if d.starts != 0 {
		t.Errorf("starts = %d, want 0", d.starts)
	}
}

func TestMediaPipeDetector_CloseWaitsForHelper(t *testing.T) {
	d := newFakeHelperDetector(t, "echo", nil)

	if _, err := d.Detect(smallFrame(t)); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if d.started {
		t.Error("Close() should stop the helper")
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{max: 8}
	io.WriteString(b, "abcdef")
	io.WriteString(b, "ghijkl")

	if got := b.String(); got != "efghijkl" {
		t.Errorf("String() = %q, want %q", got, "efghijkl")
	}
	if got := (*tailBuffer)(nil).String(); got != "" {
		t.Errorf("nil String() = %q, want empty", got)
	}
}
