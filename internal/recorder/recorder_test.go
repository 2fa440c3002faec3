package recorder

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/idest-edu/assignment-gateway/internal/utils"
)

// fakeDevice plays back canned audio and counts releases.
type fakeDevice struct {
	supported map[string]bool
	audio     string
	openErr   error

	opened   []string
	releases int
}

func (d *fakeDevice) Supports(mimeType string) bool { return d.supported[mimeType] }

func (d *fakeDevice) DefaultMIME() string { return "audio/ogg" }

func (d *fakeDevice) Open(_ context.Context, mimeType string) (io.ReadCloser, error) {
	d.opened = append(d.opened, mimeType)
	if d.openErr != nil {
		return nil, d.openErr
	}
	return io.NopCloser(strings.NewReader(d.audio)), nil
}

func (d *fakeDevice) Release() error {
	d.releases++
	return nil
}

func TestRecorder_PrefersOpusWebM(t *testing.T) {
	device := &fakeDevice{
		supported: map[string]bool{PreferredMIME: true},
		audio:     "opus-bytes",
	}
	r := New(device, utils.NewDevelopmentLogger())

	if err := r.Start(context.Background(), "part1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clip, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if clip.MIME != PreferredMIME {
		t.Errorf("mime = %q, want %q", clip.MIME, PreferredMIME)
	}
	if clip.Name != "part1.webm" {
		t.Errorf("name = %q, want part1.webm", clip.Name)
	}
	if string(clip.Data) != "opus-bytes" {
		t.Errorf("data = %q", clip.Data)
	}
	if device.releases != 1 {
		t.Errorf("releases = %d, want 1", device.releases)
	}
}

func TestRecorder_FallsBackToDeviceDefault(t *testing.T) {
	device := &fakeDevice{supported: map[string]bool{}, audio: "ogg-bytes"}
	r := New(device, utils.NewDevelopmentLogger())

	if err := r.Start(context.Background(), "part2"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clip, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if clip.MIME != "audio/ogg" {
		t.Errorf("mime = %q, want audio/ogg", clip.MIME)
	}
	if clip.Name != "part2.ogg" {
		t.Errorf("name = %q, want part2.ogg", clip.Name)
	}
	if len(device.opened) != 1 || device.opened[0] != "audio/ogg" {
		t.Errorf("opened with %v", device.opened)
	}
}

func TestRecorder_ReleasesDeviceWhenOpenFails(t *testing.T) {
	device := &fakeDevice{
		supported: map[string]bool{},
		openErr:   ErrPermissionDenied,
	}
	r := New(device, utils.NewDevelopmentLogger())

	err := r.Start(context.Background(), "part1")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if device.releases != 1 {
		t.Errorf("releases = %d, want 1 even on open failure", device.releases)
	}
	if r.Recording() {
		t.Error("recorder must stay idle after failed start")
	}
}

func TestRecorder_AbortReleasesAndDiscards(t *testing.T) {
	device := &fakeDevice{supported: map[string]bool{}, audio: "discard-me"}
	r := New(device, utils.NewDevelopmentLogger())

	if err := r.Start(context.Background(), "part3"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Abort()

	if device.releases != 1 {
		t.Errorf("releases = %d, want 1", device.releases)
	}
	if r.Recording() {
		t.Error("recorder still recording after abort")
	}
	if _, err := r.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop after abort = %v, want ErrNotRecording", err)
	}
}

func TestRecorder_SingleRecordingAtATime(t *testing.T) {
	device := &fakeDevice{supported: map[string]bool{}, audio: "x"}
	r := New(device, utils.NewDevelopmentLogger())

	if err := r.Start(context.Background(), "part1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(context.Background(), "part1"); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second Start = %v, want ErrAlreadyRecording", err)
	}
	if _, err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Free to start again once stopped.
	if err := r.Start(context.Background(), "part2"); err != nil {
		t.Fatalf("restart: %v", err)
	}
	r.Abort()
}

func TestClip_Empty(t *testing.T) {
	var nilClip *Clip
	if !nilClip.Empty() {
		t.Error("nil clip must be empty")
	}
	if !(&Clip{Name: "part1.webm"}).Empty() {
		t.Error("dataless clip must be empty")
	}
	if (&Clip{Data: []byte{1}}).Empty() {
		t.Error("clip with data must not be empty")
	}
}
