package capture

import (
	"bytes"
	"errors"
	"image"
	"strings"
	"testing"

	"gocv.io/x/gocv"
)

// stripe returns a 1x3 BGR frame whose pixels are (10,20,30), (40,50,60), (70,80,90).
func stripe(t *testing.T) gocv.Mat {
	t.Helper()
	m, err := gocv.NewMatFromBytes(1, 3, gocv.MatTypeCV8UC3, []byte{
		10, 20, 30,
		40, 50, 60,
		70, 80, 90,
	})
	if err != nil {
		t.Fatalf("NewMatFromBytes() error = %v", err)
	}
	return m
}

func TestCamera_ReadFrame(t *testing.T) {
	tests := []struct {
		name    string
		mirror  bool
		rgb     bool
		wantBGR []byte
		wantRGB []byte
	}{
		{
			name:    "plain",
			wantBGR: []byte{10, 20, 30, 40, 50, 60, 70, 80, 90},
		},
		{
			name:    "mirrored",
			mirror:  true,
			wantBGR: []byte{70, 80, 90, 40, 50, 60, 10, 20, 30},
		},
		{
			name:    "rgb",
			rgb:     true,
			wantBGR: []byte{10, 20, 30, 40, 50, 60, 70, 80, 90},
			wantRGB: []byte{30, 20, 10, 60, 50, 40, 90, 80, 70},
		},
		{
			name:    "mirrored rgb",
			mirror:  true,
			rgb:     true,
			wantBGR: []byte{70, 80, 90, 40, 50, 60, 10, 20, 30},
			wantRGB: []byte{90, 80, 70, 60, 50, 40, 30, 20, 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := stripe(t)
			defer src.Close()

			cam := NewCamera(NewMockSource([]*gocv.Mat{&src}, false), Options{Mirror: tt.mirror, RGB: tt.rgb})
			defer cam.Close()

			frame, err := cam.ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame() error = %v", err)
			}
			defer frame.Close()

			if got := frame.BGR.ToBytes(); !bytes.Equal(got, tt.wantBGR) {
				t.Errorf("BGR = %v, want %v", got, tt.wantBGR)
			}

			if tt.wantRGB == nil {
				if frame.HasRGB() {
					t.Error("RGB should be empty when conversion is off")
				}
				return
			}
			if !frame.HasRGB() {
				t.Fatal("RGB should be present")
			}
			if got := frame.RGB.ToBytes(); !bytes.Equal(got, tt.wantRGB) {
				t.Errorf("RGB = %v, want %v", got, tt.wantRGB)
			}
		})
	}
}

func TestCamera_ReadFrame_Failure(t *testing.T) {
	src := stripe(t)
	defer src.Close()

	cam := NewCamera(NewMockSource([]*gocv.Mat{&src}, false), Options{})
	defer cam.Close()

	frame, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("first ReadFrame() error = %v", err)
	}
	frame.Close()

	frame, err = cam.ReadFrame()
	if !errors.Is(err, ErrReadFailed) {
		t.Errorf("ReadFrame() after last frame error = %v, want ErrReadFailed", err)
	}
	if frame != nil {
		t.Error("failed read should not return a frame")
	}
}

func TestCamera_SetMirror(t *testing.T) {
	src := stripe(t)
	defer src.Close()

	cam := NewCamera(NewMockSource([]*gocv.Mat{&src}, true), Options{})
	defer cam.Close()

	if cam.Mirror() {
		t.Fatal("mirror should start off")
	}

	cam.SetMirror(true)
	if !cam.Mirror() {
		t.Fatal("Mirror() should be true after SetMirror(true)")
	}

	frame, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	defer frame.Close()

	if got := frame.BGR.ToBytes()[:3]; !bytes.Equal(got, []byte{70, 80, 90}) {
		t.Errorf("first pixel = %v, want mirrored [70 80 90]", got)
	}
}

func TestCamera_FrameSize(t *testing.T) {
	t.Run("from properties", func(t *testing.T) {
		src := NewMockSource(nil, false)
		src.SetSize(1280, 720)
		cam := NewCamera(src, Options{})

		w, h := cam.FrameSize()
		if w != 1280 || h != 720 {
			t.Errorf("FrameSize() = %dx%d, want 1280x720", w, h)
		}
		if src.Reads() != 0 {
			t.Error("properties path should not consume a frame")
		}
	})

	t.Run("from sample frame", func(t *testing.T) {
		frame := gocv.NewMatWithSize(90, 160, gocv.MatTypeCV8UC3)
		defer frame.Close()

		src := NewMockSource([]*gocv.Mat{&frame}, false)
		cam := NewCamera(src, Options{})

		w, h := cam.FrameSize()
		if w != 160 || h != 90 {
			t.Errorf("FrameSize() = %dx%d, want 160x90", w, h)
		}
		if src.Reads() != 1 {
			t.Errorf("sample should consume one frame, consumed %d", src.Reads())
		}
	})

	t.Run("partial properties fall through", func(t *testing.T) {
		src := NewMockSource(nil, false)
		src.SetSize(1280, 0)
		cam := NewCamera(src, Options{})

		w, h := cam.FrameSize()
		if w != DefaultWidth || h != DefaultHeight {
			t.Errorf("FrameSize() = %dx%d, want default", w, h)
		}
	})

	t.Run("last resort", func(t *testing.T) {
		cam := NewCamera(NewMockSource(nil, false), Options{})

		w, h := cam.FrameSize()
		if w != DefaultWidth || h != DefaultHeight {
			t.Errorf("FrameSize() = %dx%d, want %dx%d", w, h, DefaultWidth, DefaultHeight)
		}
	})
}

func TestCamera_Conversions(t *testing.T) {
	src := NewMockSource(nil, false)
	src.SetSize(640, 480)
	cam := NewCamera(src, Options{})

	if got := cam.NormToPixel(0.5, 0.25); got != image.Pt(320, 120) {
		t.Errorf("NormToPixel(0.5, 0.25) = %v, want (320,120)", got)
	}

	nx, ny := cam.PixelToNorm(320, 120)
	if nx != 0.5 || ny != 0.25 {
		t.Errorf("PixelToNorm(320, 120) = (%v, %v), want (0.5, 0.25)", nx, ny)
	}
}

func TestCamera_Close(t *testing.T) {
	src := NewMockSource(nil, false)
	cam := NewCamera(src, Options{Index: 2})

	if cam.Index() != 2 {
		t.Errorf("Index() = %d, want 2", cam.Index())
	}

	if err := cam.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !src.Closed() {
		t.Error("Close should close the source")
	}
	if err := cam.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadFrame() after Close error = %v, want ErrClosed", err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(Options{File: "/nonexistent/clip.mp4"})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Open() error = %v, want ErrOpen", err)
	}
}

func TestOpen_MissingCameraIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping device test in short mode")
	}

	cam, err := Open(Options{Index: 99})
	if err == nil {
		cam.Close()
		t.Skip("a device exists at index 99")
	}
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Open() error = %v, want ErrOpen", err)
	}
	if want := "camera with index 99 could not be opened"; !strings.Contains(err.Error(), want) {
		t.Errorf("Open() error = %q, want it to contain %q", err, want)
	}
}

func TestOpen_Camera_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam, err := Open(Options{Index: 0, Mirror: true, RGB: true, Width: 640, Height: 480})
	if err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}
	defer cam.Close()

	frame, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() failed: %v", err)
	}
	defer frame.Close()

	if frame.BGR.Empty() || !frame.HasRGB() {
		t.Error("expected both BGR and RGB images")
	}
	if frame.BGR.Cols() != 640 || frame.BGR.Rows() != 480 {
		t.Logf("Frame dimensions: %dx%d (expected 640x480, but camera may not support)", frame.BGR.Cols(), frame.BGR.Rows())
	}
}
