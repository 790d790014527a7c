package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/roomdesk/apiserver/internal/storage"
	"github.com/roomdesk/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryArchive struct {
	docs     map[string][]byte
	metadata map[string]map[string]string
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{docs: map[string][]byte{}, metadata: map[string]map[string]string{}}
}

func (m *memoryArchive) SaveJSON(_ context.Context, key string, value any, metadata map[string]string) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	m.docs[key] = data
	m.metadata[key] = metadata
	return key, nil
}

func (m *memoryArchive) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var objects []storage.ObjectInfo
	for key, data := range m.docs {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, storage.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (m *memoryArchive) LoadJSON(_ context.Context, key string, value any) error {
	data, ok := m.docs[key]
	if !ok {
		return errBoom
	}
	return json.Unmarshal(data, value)
}

func TestExportWeek(t *testing.T) {
	now := time.Date(2025, 7, 18, 10, 0, 0, 0, time.UTC)
	reservations := newMemoryReservations()
	reservations.items = []types.Reservation{
		{RoomID: 1, Date: "2025-07-14", Start: "09:00", End: "10:00", Status: types.ReservationConfirmed},
		{RoomID: 2, Date: "2025-07-15", Start: "09:00", End: "10:00", Status: types.ReservationPending},
		{RoomID: 2, Date: "2025-07-21", Start: "09:00", End: "10:00", Status: types.ReservationPending},
	}
	rooms := newMemoryRooms(types.Room{ID: 1, Name: "A"}, types.Room{ID: 2, Name: "B"})
	archive := newMemoryArchive()
	svc := NewExportService(reservations, rooms, archive, &fakeClock{now: now}, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))

	keys, err := svc.ExportWeek(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-13/room-1.json", "2025-07-13/room-2.json"}, keys)
	assert.Equal(t, map[string]string{
		"room-id":    "2",
		"week-start": "2025-07-13",
		"week-end":   "2025-07-19",
	}, archive.metadata["2025-07-13/room-2.json"])

	listed, err := svc.ListSnapshots(context.Background(), "2025-07-19")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "2025-07-13/room-1.json", listed[0].Key)

	snapshot, err := svc.LoadSnapshot(context.Background(), "2025-07-17", 2)
	require.NoError(t, err)
	assert.Equal(t, "B", snapshot.RoomName)
	assert.Equal(t, "2025-07-19", snapshot.To)
	require.Len(t, snapshot.Entries, 1)
	assert.Equal(t, "2025-07-15", snapshot.Entries[0].Date)

	_, err = svc.LoadSnapshot(context.Background(), "07/17", 2)
	assert.ErrorIs(t, err, ErrValidation)
}
