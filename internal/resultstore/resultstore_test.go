package resultstore

import (
	"bytes"
	"context"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiteco/backdoor-sweep/internal/errors"
)

func TestKeyName(t *testing.T) {
	assert.Equal(t, "length_1_angle_0", KeyFor(1, 0).Name())
	assert.Equal(t, "length_3_angle_45", KeyFor(3, math.Pi/4).Name())
	assert.Equal(t, "length_5_angle_180", KeyFor(5, math.Pi).Name())
	assert.Equal(t, "length_2.5_angle_135", KeyFor(2.5, 3*math.Pi/4).Name())

	// angles are rounded to whole degrees, not truncated
	assert.Equal(t, 60, KeyFor(1, math.Pi/3).AngleDegrees)
	assert.Equal(t, 135, KeyFor(1, math.Pi*0.75).AngleDegrees)
}

func TestParseKey(t *testing.T) {
	k, ok := ParseKey("/tmp/out/length_2.5_angle_135.msgp.gz")
	require.True(t, ok)
	assert.Equal(t, Key{Length: 2.5, AngleDegrees: 135}, k)

	k, ok = ParseKey("length_3_angle_90")
	require.True(t, ok)
	assert.Equal(t, Key{Length: 3, AngleDegrees: 90}, k)

	for _, bad := range []string{"", "summary.csv", "length_x_angle_1", "length_1_angle_", "length_1"} {
		_, ok := ParseKey(bad)
		assert.False(t, ok, bad)
	}
}

func TestSortKeys(t *testing.T) {
	keys := []Key{{3, 0}, {1, 90}, {1, 0}}
	SortKeys(keys)
	assert.Equal(t, []Key{{1, 0}, {1, 90}, {3, 0}}, keys)
}

func testRecord() Record {
	return Record{Err: [][3]float64{{0.1, 0.02, 0.9}, {0.15, 0, 0.75}, {0, 0, 1}}}
}

func TestCodecs(t *testing.T) {
	for _, ext := range []string{".msgp", ".json", ".gob", ".msgp.gz", ".json.sz"} {
		t.Run(ext, func(t *testing.T) {
			rec := testRecord()
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, ext, &rec))
			got, err := Decode(&buf, ext)
			require.NoError(t, err)
			assert.Equal(t, rec, got)
		})
	}
}

func TestJSONLayout(t *testing.T) {
	rec := Record{Err: [][3]float64{{0.5, 0.25, 1}}}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ".json", &rec))
	assert.JSONEq(t, `{"err": [[0.5, 0.25, 1]]}`, buf.String())
}

func TestMsgpRejectsWrongWidth(t *testing.T) {
	var buf bytes.Buffer
	// {"err": [[1, 2]]}
	buf.Write([]byte{0x81, 0xa3, 'e', 'r', 'r', 0x91, 0x92, 0x01, 0x02})
	_, err := Decode(&buf, ".msgp")
	assert.Error(t, err)
}

func TestValidateExt(t *testing.T) {
	assert.NoError(t, ValidateExt(".gob.gz"))
	assert.Error(t, ValidateExt(".pkl"))
	assert.Error(t, ValidateExt(".gz"))
}

func TestColumn(t *testing.T) {
	assert.Equal(t, []float64{0.9, 0.75, 1}, testRecord().Column(2))
}

func TestLocalStore(t *testing.T) {
	dir, err := ioutil.TempDir("", "resultstore")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	ctx := context.Background()
	store, err := Open(context.Background(), filepath.Join(dir, "out"), Options{Ext: ".json"})
	require.NoError(t, err)

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	path, err := store.Put(ctx, KeyFor(3, math.Pi/2), testRecord())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "length_3_angle_90.json"), path)

	// overwriting replaces the record
	other := Record{Err: [][3]float64{{1, 1, 1}}}
	_, err = store.Put(ctx, KeyFor(3, math.Pi/2), other)
	require.NoError(t, err)
	_, err = store.Put(ctx, KeyFor(1, 0), testRecord())
	require.NoError(t, err)

	got, err := store.Get(ctx, KeyFor(3, math.Pi/2))
	require.NoError(t, err)
	assert.Equal(t, other, got)

	// stray files are ignored
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "out", "notes.json"), []byte("{}"), 0644))
	keys, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Key{{1, 0}, {3, 90}}, keys)

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 3, "temporary files are cleaned up")
}

func TestLocalStorePersistenceFailure(t *testing.T) {
	f, err := ioutil.TempFile("", "resultstore")
	require.NoError(t, err)
	f.Close()
	defer os.Remove(f.Name())

	// the destination directory is a regular file
	store := NewLocalStore(filepath.Join(f.Name(), "out"), Options{})
	_, err = store.Put(context.Background(), KeyFor(1, 0), testRecord())
	require.Error(t, err)
	assert.True(t, errors.IsPersistence(err))

	_, err = store.Get(context.Background(), KeyFor(1, 0))
	assert.True(t, errors.IsPersistence(err))
}

func TestOpenRejectsExt(t *testing.T) {
	_, err := Open(context.Background(), "out", Options{Ext: ".pkl"})
	assert.Error(t, err)
}

func TestValidateURI(t *testing.T) {
	u, err := ValidateURI("s3://bucket/runs/a")
	require.NoError(t, err)
	assert.Equal(t, "bucket", u.Host)

	_, err = ValidateURI("gs://bucket/runs")
	assert.Error(t, err)
	_, err = ValidateURI("s3:///runs")
	assert.Error(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	buf, err := ioutil.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(in.Key)] = buf
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	buf, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &s3.GetObjectOutput{Body: ioutil.NopCloser(bytes.NewReader(buf))}, nil
}

func (f *fakeS3) ListObjectsPagesWithContext(ctx aws.Context, in *s3.ListObjectsInput, fn func(*s3.ListObjectsOutput, bool) bool, _ ...request.Option) error {
	var names []string
	for k := range f.objects {
		names = append(names, k)
	}
	sort.Strings(names)

	// one object per page
	for i, name := range names {
		page := &s3.ListObjectsOutput{Contents: []*s3.Object{{Key: aws.String(name)}}}
		if !fn(page, i == len(names)-1) {
			break
		}
	}
	return nil
}

func TestS3Store(t *testing.T) {
	u, err := ValidateURI("s3://bucket/runs/a/")
	require.NoError(t, err)
	client := &fakeS3{objects: make(map[string][]byte)}
	store := newS3Store(client, u, Options{Ext: ".msgp.gz"})

	ctx := context.Background()
	uri, err := store.Put(ctx, KeyFor(5, math.Pi), testRecord())
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/runs/a/length_5_angle_180.msgp.gz", uri)
	assert.Contains(t, client.objects, "runs/a/length_5_angle_180.msgp.gz")

	client.objects["runs/a/nested/length_1_angle_0.msgp.gz"] = nil
	client.objects["runs/a/length_1_angle_0.json"] = nil

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Key{{5, 180}}, keys)

	got, err := store.Get(ctx, KeyFor(5, math.Pi))
	require.NoError(t, err)
	assert.Equal(t, testRecord(), got)

	_, err = store.Get(ctx, KeyFor(1, 0))
	assert.True(t, errors.IsPersistence(err))

	client.putErr = os.ErrPermission
	_, err = store.Put(ctx, KeyFor(1, 0), testRecord())
	assert.True(t, errors.IsPersistence(err))
}

type fakeLocation struct {
	constraint *string
	ctx        aws.Context
}

func (f *fakeLocation) GetBucketLocationWithContext(ctx aws.Context, in *s3.GetBucketLocationInput, _ ...request.Option) (*s3.GetBucketLocationOutput, error) {
	f.ctx = ctx
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &s3.GetBucketLocationOutput{LocationConstraint: f.constraint}, nil
}

type ctxKey struct{}

func TestBucketRegion(t *testing.T) {
	ctx := context.WithValue(context.Background(), ctxKey{}, "caller")

	client := &fakeLocation{constraint: aws.String("eu-west-1")}
	region, err := bucketRegion(ctx, client, "bucket")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", region)
	assert.Equal(t, "caller", client.ctx.Value(ctxKey{}))

	region, err = bucketRegion(ctx, &fakeLocation{}, "bucket")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", region)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = bucketRegion(cancelled, &fakeLocation{}, "bucket")
	assert.Equal(t, context.Canceled, err)
}
