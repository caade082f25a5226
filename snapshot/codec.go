package snapshot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// document is the stored JSON shape of a Record.
type document struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Data         byteArray `json:"data"`
	CreatedAt    string    `json:"createdAt"`
	LastModified string    `json:"lastModified"`
}

// byteArray encodes as a JSON array of integers in 0..255 instead of the
// base64 string encoding/json uses for []byte.
type byteArray []byte

func (b byteArray) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, 2+len(b)*4)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return append(out, ']'), nil
}

func (b *byteArray) UnmarshalJSON(data []byte) error {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	if values == nil {
		*b = nil
		return nil
	}
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return fmt.Errorf("data[%d]: value %d out of byte range", i, v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

func encodeRecord(r *Record) ([]byte, error) {
	data := r.Data
	if data == nil {
		data = []byte{}
	}
	return json.Marshal(document{
		ID:           r.ID,
		Name:         r.Name,
		Data:         byteArray(data),
		CreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339Nano),
		LastModified: r.LastModified.UTC().Format(time.RFC3339Nano),
	})
}

func decodeRecord(raw []byte) (*Record, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("createdAt: %w", err)
	}
	lastModified, err := time.Parse(time.RFC3339Nano, doc.LastModified)
	if err != nil {
		return nil, fmt.Errorf("lastModified: %w", err)
	}
	data := []byte(doc.Data)
	if data == nil {
		data = []byte{}
	}
	return &Record{
		ID:           doc.ID,
		Name:         doc.Name,
		Data:         data,
		CreatedAt:    createdAt,
		LastModified: lastModified,
	}, nil
}
