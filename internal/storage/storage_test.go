package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/MeKo-Tech/cellgrid/internal/workspace"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleEntries = []workspace.Entry{
	{BlockID: "c4", DocumentID: "main", CellText: "42", SensorTag: "TT-4",
		AIContext: &workspace.AIContext{RowHeader: "Temp", ColHeader: "Value"}},
	{BlockID: "m1", DocumentID: "main", CellText: "Sensor Value", SensorTag: "TT-1"},
	{BlockID: "f-1", CellText: "Ambient", SensorTag: "AT-1", IsCustom: true},
}

func TestOpen_LogAndUnknown(t *testing.T) {
	sink, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	assert.IsType(t, &LogSink{}, sink)
	assert.NoError(t, sink.Close())

	_, err = Open(context.Background(), Options{Kind: "s3"})
	assert.ErrorContains(t, err, `unknown storage sink "s3"`)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, sink.Save(context.Background(), "s-1", sampleEntries))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Saving sensor tags", record["msg"])
	assert.Equal(t, "s-1", record["session"])
	assert.EqualValues(t, 3, record["entries"])
	payload, ok := record["payload"].([]any)
	require.True(t, ok)
	assert.Len(t, payload, 3)
}

func TestEncodeDecodeEntries(t *testing.T) {
	values, err := encodeEntries(sampleEntries)
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.JSONEq(t, `{"blockId":"f-1","cellText":"Ambient","sensorTag":"AT-1","isCustom":true,"aiContext":null}`, values[2].(string))

	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = v.(string)
	}
	decoded, err := decodeEntries(strs)
	require.NoError(t, err)
	assert.Equal(t, sampleEntries, decoded)

	_, err = decodeEntries([]string{"{"})
	assert.Error(t, err)
}

func TestToRows(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := toRows("s-1", sampleEntries, now)
	require.Len(t, rows, 3)

	assert.Equal(t, 0, rows[0].Position)
	assert.True(t, rows[0].RowHeader.Valid)
	assert.Equal(t, "Value", rows[0].ColHeader.String)
	assert.False(t, rows[1].RowHeader.Valid)
	assert.Equal(t, 2, rows[2].Position)
	assert.Equal(t, now, rows[2].SavedAt)

	for i, r := range rows {
		assert.Equal(t, sampleEntries[i], r.entry())
	}
}

func TestWrapPostgres(t *testing.T) {
	err := wrapPostgres(&pq.Error{Code: undefinedTable}, "failed to insert tags")
	assert.ErrorContains(t, err, "table sensor_tags missing")

	var pqErr *pq.Error
	assert.ErrorAs(t, err, &pqErr)
}

func TestRedisSink_Integration(t *testing.T) {
	addr := os.Getenv("CELLGRID_TEST_REDIS_ADDR")
	if testing.Short() || addr == "" {
		t.Skip("set CELLGRID_TEST_REDIS_ADDR to run Redis integration tests")
	}

	ctx := context.Background()
	sink, err := NewRedisSink(ctx, addr, "", 0, time.Minute)
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	session := uuid.NewString()
	require.NoError(t, sink.Save(ctx, session, sampleEntries))
	require.NoError(t, sink.Save(ctx, session, sampleEntries[:1]))

	got, err := sink.Load(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, sampleEntries[:1], got)

	ttl, err := sink.rdb.TTL(ctx, tagsKey(session)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, sink.Save(ctx, session, nil))
	got, err = sink.Load(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPostgresSink_Integration(t *testing.T) {
	dsn := os.Getenv("CELLGRID_TEST_POSTGRES_DSN")
	if testing.Short() || dsn == "" {
		t.Skip("set CELLGRID_TEST_POSTGRES_DSN to run Postgres integration tests")
	}

	ctx := context.Background()
	sink, err := NewPostgresSink(ctx, dsn)
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()
	require.NoError(t, sink.EnsureSchema(ctx))

	session := uuid.NewString()
	require.NoError(t, sink.Save(ctx, session, sampleEntries))
	got, err := sink.Load(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, sampleEntries, got)

	require.NoError(t, sink.Save(ctx, session, sampleEntries[1:2]))
	got, err = sink.Load(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, sampleEntries[1:2], got)
}
