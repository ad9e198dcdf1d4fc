// Package snapshot persists the full state of a run: a versioned JSON
// header line followed by the compressed world document. Snapshots are
// written on interrupt and read back by replay tooling.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version   int     `json:"version"`
	RunID     string  `json:"run_id"`
	Benchmark string  `json:"benchmark"`
	Model     string  `json:"model"`
	Step      uint64  `json:"step"`
	Period    int     `json:"period"`
	Score     float64 `json:"score"`
}

// Document is a captured run. World holds the benchmark state as the
// world package marshals it; this package never interprets it.
type Document struct {
	Header Header          `json:"header"`
	Seed   int64           `json:"seed"`
	World  json.RawMessage `json:"world"`
}

func Path(dir, runID string) string {
	return filepath.Join(dir, runID+".snap.zst")
}

func Write(path string, doc Document) error {
	doc.Header.Version = Version
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(doc.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(&doc); err != nil {
		return fmt.Errorf("snapshot encode: %w", err)
	}
	return nil
}

func Read(path string) (Document, error) {
	var doc Document
	f, err := os.Open(path)
	if err != nil {
		return doc, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return doc, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line exists so tooling can peek without decoding the
	// body; the body repeats it.
	hline, err := br.ReadBytes('\n')
	if err != nil {
		return doc, fmt.Errorf("snapshot header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(hline, &h); err != nil {
		return doc, fmt.Errorf("snapshot header: %w", err)
	}
	if h.Version != Version {
		return doc, fmt.Errorf("snapshot version %d unsupported", h.Version)
	}

	if err := json.NewDecoder(br).Decode(&doc); err != nil {
		return doc, fmt.Errorf("snapshot decode: %w", err)
	}
	return doc, nil
}
