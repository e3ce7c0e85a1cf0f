package oit

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gogpu/oit/backend"
)

func TestIsFrameRecoverable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrNoDrawable, true},
		{ErrBufferAllocation, true},
		{fmt.Errorf("frame 3: %w", ErrNoDrawable), true},
		{ErrStreamMismatch, false},
		{ErrMissingEntryPoint, false},
		{ErrImageBlockMismatch, false},
		{errors.New("device lost"), false},
	}
	for _, tt := range tests {
		if got := IsFrameRecoverable(tt.err); got != tt.want {
			t.Errorf("IsFrameRecoverable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		from, want error
	}{
		{backend.ErrNoDrawable, ErrNoDrawable},
		{backend.ErrOutOfMemory, ErrBufferAllocation},
		{backend.ErrFunctionNotFound, ErrMissingEntryPoint},
		{backend.ErrWrongStage, ErrMissingEntryPoint},
		{backend.ErrUnsupportedFormat, ErrUnsupportedFormat},
		{backend.ErrTileSize, ErrTileSizeMismatch},
		{backend.ErrSampleLength, ErrImageBlockMismatch},
		{backend.ErrClosed, ErrClosed},
	}
	for _, tt := range tests {
		err := classify(fmt.Errorf("device: %w", tt.from))
		if !errors.Is(err, tt.want) {
			t.Errorf("classify(%v) = %v, want it to wrap %v", tt.from, err, tt.want)
		}
		if !errors.Is(err, tt.from) {
			t.Errorf("classify(%v) lost the device error", tt.from)
		}
	}
}

func TestClassify_PassThrough(t *testing.T) {
	if classify(nil) != nil {
		t.Error("classify(nil) != nil")
	}
	other := errors.New("unrelated")
	if got := classify(other); got != other {
		t.Errorf("classify(other) = %v, want it unchanged", got)
	}
	already := fmt.Errorf("%w: %w", ErrNoDrawable, backend.ErrNoDrawable)
	if got := classify(already); got != already {
		t.Errorf("classify() wrapped an already classified error: %v", got)
	}
}
