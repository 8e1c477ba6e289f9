package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
	"gocv.io/x/gocv"
)

// ErrScriptNotFound is returned when mediapipe_service.py cannot be located.
var ErrScriptNotFound = errors.New("mediapipe_service.py not found")

var (
	// ErrEmptyFrame is returned when Detect is handed an empty Mat.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrUnsupportedFrame is returned for frames that are not 8-bit 3-channel.
	ErrUnsupportedFrame = errors.New("unsupported frame type")
	// ErrHelper wraps an error reported by the helper for a single frame.
	ErrHelper = errors.New("mediapipe")
	// ErrHelperUnavailable is returned once a helper has died before
	// answering any frame. It is sticky: no further starts are attempted.
	ErrHelperUnavailable = errors.New("mediapipe helper unavailable")
)

// stderrTailSize bounds how much helper stderr is kept for diagnostics.
const stderrTailSize = 4096

// MediaPipeDetector implements Detector by driving MediaPipe Hands in a
// Python helper process over its stdin/stdout.
type MediaPipeDetector struct {
	config     Config
	scriptPath string
	log        *zap.Logger
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	stderr     *zapio.Writer
	tail       *tailBuffer
	mu         sync.Mutex
	started    bool

	// answered is set once the current helper has replied to a frame.
	answered    bool
	unavailable error
	starts      int
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config, log *zap.Logger) (*MediaPipeDetector, error) {
	config.Validate()

	scriptPath := config.ScriptPath
	if scriptPath != "" {
		if _, err := os.Stat(scriptPath); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, scriptPath)
		}
	} else {
		scriptPath = findMediaPipeScript()
	}
	if scriptPath == "" {
		return nil, ErrScriptNotFound
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &MediaPipeDetector{
		config:     config,
		scriptPath: scriptPath,
		log:        log.Named("mediapipe"),
	}, nil
}

// Detect sends an RGB frame to the helper and returns the hands it found.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := checkFrame(frame); err != nil {
		return nil, err
	}
	if d.unavailable != nil {
		return nil, d.unavailable
	}

	if err := d.ensureStarted(); err != nil {
		d.unavailable = fmt.Errorf("%w: %v", ErrHelperUnavailable, err)
		d.log.Warn("mediapipe helper failed to start", zap.Error(err))
		return nil, d.unavailable
	}

	if err := writeFrame(d.stdin, frame); err != nil {
		return nil, d.fail(err)
	}

	hands, err := readHands(d.stdout)
	if err != nil {
		if errors.Is(err, ErrHelper) {
			d.answered = true
			return nil, err
		}
		return nil, d.fail(err)
	}
	d.answered = true
	return hands, nil
}

// fail handles a broken helper pipe. A helper that dies before its first
// answer cannot be expected to recover, so it is marked unavailable;
// otherwise it is restarted on the next frame.
func (d *MediaPipeDetector) fail(cause error) error {
	if d.answered {
		d.kill(cause)
		return cause
	}

	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	// Wait in shutdown drains stderr, so the tail is complete afterwards.
	d.shutdown()
	tail := d.tail.String()

	d.unavailable = fmt.Errorf("%w: %v", ErrHelperUnavailable, cause)
	d.log.Warn("mediapipe helper failed to start",
		zap.Error(cause),
		zap.String("stderr", tail),
	)
	return d.unavailable
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

// args returns the helper command line after the interpreter.
func (d *MediaPipeDetector) args() []string {
	return []string{
		d.scriptPath,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	}
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	pythonPath := d.config.PythonPath
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, d.args()...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// MediaPipe and TensorFlow Lite chatter on stderr; keep it at debug level.
	d.stderr = &zapio.Writer{Log: d.log, Level: zap.DebugLevel}
	d.tail = &tailBuffer{max: stderrTailSize}
	d.cmd.Stderr = io.MultiWriter(d.stderr, d.tail)

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.answered = false
	d.starts++

	d.log.Info("mediapipe helper started",
		zap.String("python", pythonPath),
		zap.String("script", d.scriptPath),
		zap.Int("pid", d.cmd.Process.Pid),
	)
	return nil
}

// kill stops a helper whose pipe broke so the next Detect starts a new one.
func (d *MediaPipeDetector) kill(cause error) {
	if !d.started {
		return
	}
	d.log.Warn("mediapipe helper lost, restarting on next frame", zap.Error(cause))
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.shutdown()
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	if d.stderr != nil {
		d.stderr.Close()
	}
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
	d.stderr = nil

	if err != nil {
		return fmt.Errorf("mediapipe helper exit: %w", err)
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	if b == nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}

// writeFrame writes a frame header (width, height, channels as big-endian
// uint32) followed by the raw pixel bytes.
func writeFrame(w io.Writer, frame *gocv.Mat) error {
	if err := checkFrame(frame); err != nil {
		return err
	}

	src := frame
	if !frame.IsContinuous() {
		c := frame.Clone()
		defer c.Close()
		src = &c
	}

	header := make([]byte, 12)
	binary.BigEndian.PutUint32(header[0:4], uint32(src.Cols()))
	binary.BigEndian.PutUint32(header[4:8], uint32(src.Rows()))
	binary.BigEndian.PutUint32(header[8:12], uint32(src.Channels()))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(src.ToBytes()); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

func checkFrame(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() {
		return ErrEmptyFrame
	}
	if frame.Type() != gocv.MatTypeCV8UC3 {
		return fmt.Errorf("%w: %v, want 8-bit 3-channel", ErrUnsupportedFrame, frame.Type())
	}
	return nil
}

// readHands reads one JSON response line from the helper.
func readHands(r *bufio.Reader) ([]HandLandmarks, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrHelper, response.Error)
	}

	result := make([]HandLandmarks, len(response.Hands))
	for i, h := range response.Hands {
		result[i] = h.toHandLandmarks()
	}
	return result, nil
}

func findMediaPipeScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/mediapipe_service.py",
		"../scripts/mediapipe_service.py",
		filepath.Join(execDir, "scripts/mediapipe_service.py"),
		filepath.Join(os.Getenv("HOME"), ".handtrack/scripts/mediapipe_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".handtrack/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		lm.Points[i] = Point3D{
			X: h.Points[i].X,
			Y: h.Points[i].Y,
			Z: h.Points[i].Z,
		}
	}

	return lm
}
