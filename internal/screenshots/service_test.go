package screenshots

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestUploadRequestFieldNames(t *testing.T) {
	payload := []byte(`{"image_base64":"aGVsbG8=","machine_id":"machine-1","note":"first run"}`)

	var req UploadRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		t.Fatalf("failed to unmarshal upload request: %v", err)
	}

	if req.ImageData != "aGVsbG8=" {
		t.Errorf("image payload = %q, want %q", req.ImageData, "aGVsbG8=")
	}
	if req.MachineID != "machine-1" || req.Note != "first run" {
		t.Errorf("metadata = %q/%q, want machine-1/first run", req.MachineID, req.Note)
	}
}

func TestDecodeImage(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	encoded := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{"plain base64", encoded, raw, false},
		{"data URI prefix", "data:image/png;base64," + encoded, raw, false},
		{"comma without data prefix", "not-data," + encoded, nil, true},
		{"invalid base64", "!!!not base64!!!", nil, true},
		{"empty", "", []byte{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeImage(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeImage(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && !bytes.Equal(got, tt.want) {
				t.Errorf("decodeImage(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
