package notifier

import (
	"testing"
	"time"
)

func TestFileDataState(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Minute)

	tests := []struct {
		name string
		fd   FileData
		hash string
		want State
	}{
		{
			name: "create",
			fd:   FileData{InDisk: true, InStore: false},
			want: StateCreate,
		},
		{
			name: "delete",
			fd:   FileData{InDisk: false, InStore: true},
			want: StateDelete,
		},
		{
			name: "update on mtime mismatch",
			fd:   FileData{InDisk: true, InStore: true, DiskMtime: later, StoreMtime: now},
			want: StateUpdate,
		},
		{
			name: "extractor update on hash mismatch",
			fd:   FileData{InDisk: true, InStore: true, DiskMtime: now, StoreMtime: now, ExtractorHash: "v1", Mimetype: "text/plain"},
			hash: "v2",
			want: StateExtractorUpdate,
		},
		{
			name: "none when everything matches",
			fd:   FileData{InDisk: true, InStore: true, DiskMtime: now, StoreMtime: now, ExtractorHash: "v2"},
			hash: "v2",
			want: StateNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fd.State(tt.hash); got != tt.want {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
		})
	}
}
