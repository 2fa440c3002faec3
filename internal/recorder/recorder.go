package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/idest-edu/assignment-gateway/internal/utils"
)

// PreferredMIME is tried first; devices that cannot encode it fall back to
// their default container.
const PreferredMIME = "audio/webm;codecs=opus"

var (
	ErrPermissionDenied   = errors.New("microphone permission denied")
	ErrCaptureUnsupported = errors.New("audio capture not supported")
	ErrNotRecording       = errors.New("no recording in progress")
	ErrAlreadyRecording   = errors.New("recording already in progress")
)

// CaptureDevice abstracts the audio capture hardware. Open starts a capture
// stream encoded in the given container; Release must free the underlying
// hardware and is safe to call more than once.
type CaptureDevice interface {
	Supports(mimeType string) bool
	DefaultMIME() string
	Open(ctx context.Context, mimeType string) (io.ReadCloser, error)
	Release() error
}

// Clip is a finished recording handed off to the submission layer as an
// immutable named blob.
type Clip struct {
	Name string
	MIME string
	Data []byte
}

func (c *Clip) FileName() string { return c.Name }

func (c *Clip) Empty() bool { return c == nil || len(c.Data) == 0 }

// Recorder drives one CaptureDevice. At most one recording at a time; the
// device is released on every exit path (stop, error, teardown).
type Recorder struct {
	device CaptureDevice
	logger utils.Logger

	mu        sync.Mutex
	recording bool
	target    string
	mime      string
	stream    io.ReadCloser
	buf       bytes.Buffer
	copyDone  chan error
}

func New(device CaptureDevice, logger utils.Logger) *Recorder {
	return &Recorder{device: device, logger: logger}
}

// Start begins capturing for the named target (part1/part2/part3).
func (r *Recorder) Start(ctx context.Context, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return ErrAlreadyRecording
	}

	mimeType := r.device.DefaultMIME()
	if r.device.Supports(PreferredMIME) {
		mimeType = PreferredMIME
	}

	stream, err := r.device.Open(ctx, mimeType)
	if err != nil {
		// The device may hold hardware even when Open fails partway.
		if relErr := r.device.Release(); relErr != nil {
			r.logger.Warn("failed to release capture device after open error", "error", relErr)
		}
		if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrCaptureUnsupported) {
			return err
		}
		return fmt.Errorf("failed to open capture stream: %w", err)
	}

	r.recording = true
	r.target = target
	r.mime = mimeType
	r.stream = stream
	r.buf.Reset()
	r.copyDone = make(chan error, 1)

	go func() {
		_, err := io.Copy(&r.buf, stream)
		r.copyDone <- err
	}()

	r.logger.Info("recording started", "target", target, "mime", mimeType)
	return nil
}

// Stop ends the recording and returns the captured clip. The capture
// device is released before returning, success or not.
func (r *Recorder) Stop() (*Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return nil, ErrNotRecording
	}

	copyErr := r.finishLocked()
	if copyErr != nil && !errors.Is(copyErr, io.ErrClosedPipe) {
		return nil, fmt.Errorf("capture stream failed: %w", copyErr)
	}

	clip := &Clip{
		Name: r.target + "." + extensionFor(r.mime),
		MIME: r.mime,
		Data: append([]byte(nil), r.buf.Bytes()...),
	}
	r.buf.Reset()

	r.logger.Info("recording stopped", "target", r.target, "bytes", len(clip.Data))
	return clip, nil
}

// Abort discards any in-progress recording and releases the device. Called
// on page teardown; a no-op when idle.
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return
	}
	_ = r.finishLocked()
	r.buf.Reset()
}

// finishLocked closes the stream, waits for the copy goroutine and releases
// the device. Returns the copy error, if any.
func (r *Recorder) finishLocked() error {
	_ = r.stream.Close()
	copyErr := <-r.copyDone

	if err := r.device.Release(); err != nil {
		r.logger.Warn("failed to release capture device", "error", err)
	}

	r.recording = false
	r.stream = nil
	return copyErr
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func extensionFor(mimeType string) string {
	if strings.Contains(mimeType, "ogg") {
		return "ogg"
	}
	return "webm"
}
