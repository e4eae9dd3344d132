package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/table"
)

const bookingsCSV = `Date,Time,Booking ID,Booking Status,Ride Distance
2024-03-23,12:29:38,"""CNR5884300""",No Driver Found,null
2024-11-29,18:01:39,"""CNR1326809""",Incomplete,5.73
2024-08-23,08:56:10,"""CNR8494506""",Completed,
`

func TestLoadLocalCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookings.csv")
	require.NoError(t, os.WriteFile(path, []byte(bookingsCSV), 0644))

	l, err := NewLoader()
	require.NoError(t, err)
	defer l.Close()

	tbl, err := l.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Time", "Booking ID", "Booking Status", "Ride Distance"}, tbl.Columns())
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, table.String(`"CNR5884300"`), tbl.Value(0, "Booking ID"))
	assert.True(t, tbl.Value(0, "Ride Distance").IsMissing(), "null token is missing")
	assert.True(t, tbl.Value(2, "Ride Distance").IsMissing(), "empty cell is missing")
	assert.Equal(t, table.String("5.73"), tbl.Value(1, "Ride Distance"))
}

func TestLoadFileURL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bookings.csv"), []byte(bookingsCSV), 0644))

	l, err := NewLoader()
	require.NoError(t, err)
	defer l.Close()

	tbl, err := l.Load(context.Background(), "file://"+filepath.ToSlash(dir)+"/bookings.csv")
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
}

func TestLoadMissingFile(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Load(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	require.ErrorIs(t, err, ErrLoad)
}

func TestLoadEmptyLocation(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Load(context.Background(), "  ")
	require.ErrorIs(t, err, ErrLoad)
}

func TestLoadZstdFromBucket(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll([]byte(bookingsCSV), nil)
	require.NoError(t, enc.Close())
	require.NoError(t, bucket.WriteAll(ctx, "raw/bookings.csv.zst", compressed, nil))

	var opened string
	l, err := NewLoader(WithBucketOpener(func(_ context.Context, u string) (*blob.Bucket, error) {
		opened = u
		return bucket, nil
	}))
	require.NoError(t, err)
	defer l.Close()

	tbl, err := l.Load(ctx, "mem://rides/raw/bookings.csv.zst")
	require.NoError(t, err)
	assert.Equal(t, "mem://rides", opened)
	assert.Equal(t, 3, tbl.Len())
}

func TestDecodeXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Booking ID", "Booking Value"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"CNR1", "120"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"CNR2"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	d, err := NewDecoder()
	require.NoError(t, err)
	defer d.Close()

	tbl, err := d.Decode("bookings.xlsx", buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, table.String("120"), tbl.Value(0, "Booking Value"))
	assert.True(t, tbl.Value(1, "Booking Value").IsMissing())
}

func TestDecodeRejectsUnknownExtension(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Decode("bookings.json", []byte("{}"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeDelimitedRejectsLongRecords(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Decode("x.csv", []byte("a,b\n1,2,3\n"))
	require.Error(t, err)
}

func TestSplitBucketLocation(t *testing.T) {
	cases := []struct {
		in, bucket, key string
		ok              bool
	}{
		{"gs://rides/in/bookings.csv", "gs://rides", "in/bookings.csv", true},
		{"s3://rides/bookings.csv?region=us-east-1", "s3://rides?region=us-east-1", "bookings.csv", true},
		{"file:///data/in/bookings.csv", "file:///data/in/", "bookings.csv", true},
		{"file://localhost/data/in/bookings.csv", "file:///data/in/", "bookings.csv", true},
		{"/data/in/bookings.csv", "", "", false},
		{"bookings.csv", "", "", false},
	}
	for _, tc := range cases {
		bucket, key, ok, err := splitBucketLocation(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.bucket, bucket, tc.in)
		assert.Equal(t, tc.key, key, tc.in)
	}
}

func TestLoadRejectsRelativeFileURL(t *testing.T) {
	_, _, _, err := splitBucketLocation("file://data/raw/x.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"data"`)

	l, err := NewLoader()
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Load(context.Background(), "file://data/raw/x.csv")
	require.ErrorIs(t, err, ErrLoad)
}
