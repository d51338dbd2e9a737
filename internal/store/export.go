package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

var patternHeader = []string{
	"player_id", "signature", "opening", "opening_name",
	"frequency", "wins", "losses", "draws", "blunders", "last_used",
}

// WritePatternsCSV writes rows as CSV with a header line.
func WritePatternsCSV(w io.Writer, rows []Pattern) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(patternHeader); err != nil {
		return err
	}
	for _, p := range rows {
		rec := []string{
			p.PlayerID,
			p.Signature,
			p.Opening,
			p.OpeningName,
			strconv.Itoa(p.Frequency),
			strconv.Itoa(p.Wins),
			strconv.Itoa(p.Losses),
			strconv.Itoa(p.Draws),
			strconv.Itoa(p.Blunders),
			p.LastUsed.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportPatterns writes rows to path, zstd-compressed when path ends in .zst.
func ExportPatterns(path string, rows []Pattern) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	var w io.Writer = f
	var zw *zstd.Encoder
	if strings.HasSuffix(path, ".zst") {
		zw, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return err
		}
		w = zw
	}
	if err := WritePatternsCSV(w, rows); err != nil {
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return err
		}
	}
	return f.Sync()
}

// ReadPatternsCSV reads rows written by WritePatternsCSV, decompressing .zst input.
func ReadPatternsCSV(path string) ([]Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}

	cr := csv.NewReader(r)
	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var out []Pattern
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) != len(patternHeader) {
			return nil, fmt.Errorf("pattern csv: %d fields, want %d", len(rec), len(patternHeader))
		}
		p := Pattern{PlayerID: rec[0], Signature: rec[1], Opening: rec[2], OpeningName: rec[3]}
		ints := []*int{&p.Frequency, &p.Wins, &p.Losses, &p.Draws, &p.Blunders}
		for i, dst := range ints {
			if *dst, err = strconv.Atoi(rec[4+i]); err != nil {
				return nil, fmt.Errorf("pattern csv field %s: %w", patternHeader[4+i], err)
			}
		}
		if p.LastUsed, err = time.Parse(time.RFC3339, rec[9]); err != nil {
			return nil, fmt.Errorf("pattern csv last_used: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}
