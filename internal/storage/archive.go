package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"energytrack/internal/domain"
)

// ReadingSnapshot is the JSON document written for one archived series.
type ReadingSnapshot struct {
	MeterID    int64             `json:"meter_id"`
	RangeStart time.Time         `json:"range_start"`
	RangeEnd   time.Time         `json:"range_end"`
	ArchivedAt time.Time         `json:"archived_at"`
	Readings   []SnapshotReading `json:"readings"`
}

type SnapshotReading struct {
	ReadingID   int64     `json:"reading_id"`
	Value       *float64  `json:"value"`
	ReadingTime time.Time `json:"reading_time"`
}

// Archiver serialises reading series and stores them under a fixed prefix.
type Archiver struct {
	store     Service
	bucket    string
	keyPrefix string
	now       func() time.Time
}

func NewArchiver(store Service, bucket, keyPrefix string) *Archiver {
	return &Archiver{
		store:     store,
		bucket:    bucket,
		keyPrefix: strings.Trim(keyPrefix, "/"),
		now:       time.Now,
	}
}

// Enabled reports whether a store and bucket are configured.
func (a *Archiver) Enabled() bool {
	return a != nil && a.store != nil && a.bucket != ""
}

// MeterPrefix is the key prefix under which a meter's archives live.
func (a *Archiver) MeterPrefix(meterID int64) string {
	return path.Join(a.keyPrefix, fmt.Sprintf("meter-%d", meterID)) + "/"
}

// Archive uploads the readings of one meter and returns the object location.
func (a *Archiver) Archive(ctx context.Context, meterID int64, rng domain.TimeRange, readings []domain.Reading) (string, error) {
	if !a.Enabled() {
		return "", fmt.Errorf("storage service not configured")
	}
	now := a.now().UTC()
	snap := ReadingSnapshot{
		MeterID:    meterID,
		RangeStart: rng.Start,
		RangeEnd:   rng.End,
		ArchivedAt: now,
		Readings:   make([]SnapshotReading, len(readings)),
	}
	for i, r := range readings {
		snap.Readings[i] = SnapshotReading{ReadingID: r.ID, Value: r.Value, ReadingTime: r.Timestamp}
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	key := a.MeterPrefix(meterID) + fmt.Sprintf("%s-%s.json", now.Format("20060102T150405Z"), uuid.NewString())
	return a.store.PutObject(ctx, bytes.NewReader(body), PutOptions{
		Bucket:      a.bucket,
		Key:         key,
		ContentType: "application/json",
	})
}

// List returns the archives stored for a meter.
func (a *Archiver) List(ctx context.Context, meterID int64) ([]ObjectInfo, error) {
	if !a.Enabled() {
		return nil, fmt.Errorf("storage service not configured")
	}
	return a.store.ListObjects(ctx, a.bucket, a.MeterPrefix(meterID))
}
