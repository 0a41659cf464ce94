// Package resume persists partial-progress records so an interrupted
// multi-file job can pick up where it stopped (C8). Records are written
// atomically (write-then-rename) and mirrored in memory behind a single
// lock; a background sweep prunes entries older than max_resume_age.
package resume

import (
	"bytes"
	"encoding/gob"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/OneOfOne/xxhash"

	"github.com/ferrocp/ferrocp/internal/strategy"
	"github.com/ferrocp/ferrocp/pkg/ferrors"
)

// Record is the on-disk descriptor named in §4.8/§6.3: enough state for
// the executor to resume a copy at bytes_transferred instead of
// restarting from zero.
type Record struct {
	RequestID        string
	Source           string
	Destination      string
	BytesTransferred int64
	TotalSize        int64
	SourceModTime    int64 // unix seconds, the source's mtime when interrupted
	LastChunkSeq     int64
	ContentHash      string // optional, empty when unset
	InterruptedAt    int64  // unix seconds
	RetryCount       int
	Options          strategy.Options
}

// NewRecord builds a Record from a task's in-flight progress at the
// moment the executor gives up on it. withHash controls whether the
// optional content_hash is computed, since hashing bytes already copied
// means re-reading them.
func NewRecord(requestID, source, destination string, bytesTransferred, lastChunkSeq int64, retryCount int, opts strategy.Options, withHash bool) (Record, error) {
	info, err := os.Stat(source)
	if err != nil {
		return Record{}, ferrors.Wrap(ferrors.CodeIO, "stat source for resume record", err).WithComponent("resume.store").WithPath(source)
	}

	r := Record{
		RequestID:        requestID,
		Source:           source,
		Destination:      destination,
		BytesTransferred: bytesTransferred,
		TotalSize:        info.Size(),
		SourceModTime:    info.ModTime().Unix(),
		LastChunkSeq:     lastChunkSeq,
		InterruptedAt:    time.Now().Unix(),
		RetryCount:       retryCount,
		Options:          opts,
	}

	if withHash {
		hash, err := contentHash(destination)
		if err == nil {
			r.ContentHash = hash
		}
	}

	return r, nil
}

// fileName is the record's stable on-disk path: <resume_dir>/<request_id>.resume.
func fileName(dir, requestID string) string {
	return filepath.Join(dir, requestID+".resume")
}

// save writes r atomically: encode to a temp file in the same directory,
// then rename over the final path. The rename is the only visible state
// transition, so a crash mid-encode never leaves a partial record.
func save(dir string, r Record) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ferrors.Wrap(ferrors.CodeIO, "create resume dir", err).WithComponent("resume.store").WithPath(dir)
	}

	final := fileName(dir, r.RequestID)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return ferrors.Wrap(ferrors.CodeIO, "create resume temp file", err).WithComponent("resume.store").WithPath(tmp)
	}
	if err := gob.NewEncoder(f).Encode(r); err != nil {
		f.Close()
		os.Remove(tmp)
		return ferrors.Wrap(ferrors.CodeIO, "encode resume record", err).WithComponent("resume.store").WithPath(tmp)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return ferrors.Wrap(ferrors.CodeIO, "sync resume temp file", err).WithComponent("resume.store").WithPath(tmp)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return ferrors.Wrap(ferrors.CodeIO, "close resume temp file", err).WithComponent("resume.store").WithPath(tmp)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return ferrors.Wrap(ferrors.CodeIO, "rename resume record into place", err).WithComponent("resume.store").WithPath(final)
	}
	return nil
}

// load decodes a single record file.
func load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, ferrors.Wrap(ferrors.CodeIO, "read resume record", err).WithComponent("resume.store").WithPath(path)
	}
	var r Record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r); err != nil {
		return Record{}, ferrors.Wrap(ferrors.CodeResumeInvalid, "decode resume record", err).WithComponent("resume.store").WithPath(path)
	}
	return r, nil
}

func remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return ferrors.Wrap(ferrors.CodeIO, "remove resume record", err).WithComponent("resume.store").WithPath(path)
	}
	return nil
}

// contentHash computes the optional fast digest §3 names, used only when
// the caller asks for verification beyond size/mtime matching.
func contentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New64()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// validAt reports whether r is still within max_resume_age of now.
func (r Record) validAt(now time.Time, maxAge time.Duration) bool {
	interruptedAt := time.Unix(r.InterruptedAt, 0)
	return now.Sub(interruptedAt) <= maxAge
}
