package safefileio

import (
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNoFollowError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "ELOOP error", err: &os.PathError{Err: syscall.ELOOP}, want: true},
		{name: "EMLINK error", err: &os.PathError{Err: syscall.EMLINK}, want: true},
		{name: "bare ELOOP", err: syscall.ELOOP, want: false},
		{name: "other error", err: os.ErrNotExist, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNoFollowError(tt.err))
		})
	}
}

func TestIsLinkUnsupported(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "cross device", err: &os.LinkError{Op: "link", Err: syscall.EXDEV}, want: true},
		{name: "not supported", err: &os.LinkError{Op: "link", Err: syscall.ENOTSUP}, want: true},
		{name: "no syscall", err: &os.LinkError{Op: "link", Err: syscall.ENOSYS}, want: true},
		{name: "vfat refuses links", err: &os.LinkError{Op: "link", Err: syscall.EPERM}, want: true},
		{name: "target exists", err: &os.LinkError{Op: "link", Err: syscall.EEXIST}, want: false},
		{name: "disk full", err: &os.LinkError{Op: "link", Err: syscall.ENOSPC}, want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isLinkUnsupported(tt.err))
		})
	}
}
