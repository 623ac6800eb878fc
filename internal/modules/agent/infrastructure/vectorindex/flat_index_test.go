package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustIndex(t *testing.T, metric string, dim int) *FlatIndex {
	t.Helper()
	x, err := NewFlatIndex(metric, dim)
	require.NoError(t, err)
	return x
}

func TestNewFlatIndexValidation(t *testing.T) {
	_, err := NewFlatIndex("manhattan", 4)
	require.Error(t, err)

	_, err = NewFlatIndex(MetricCosine, 0)
	require.Error(t, err)

	x, err := NewFlatIndex("", 4)
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, x.Metric())
}

func TestAddDimensionMismatch(t *testing.T) {
	x := mustIndex(t, MetricCosine, 3)
	err := x.Add([]float32{1, 2}, Chunk{Content: "a"})
	require.Error(t, err)
	assert.Equal(t, 0, x.Len())
}

func TestSearchCosineOrdering(t *testing.T) {
	x := mustIndex(t, MetricCosine, 2)
	require.NoError(t, x.Add([]float32{1, 0}, Chunk{Content: "east"}))
	require.NoError(t, x.Add([]float32{0, 1}, Chunk{Content: "north"}))
	require.NoError(t, x.Add([]float32{1, 1}, Chunk{Content: "northeast"}))

	got, err := x.Search([]float32{1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "east", got[0].Chunk.Content)
	assert.Equal(t, "northeast", got[1].Chunk.Content)
	assert.True(t, got[0].Score >= got[1].Score)
}

func TestSearchL2Ordering(t *testing.T) {
	x := mustIndex(t, MetricL2, 2)
	require.NoError(t, x.Add([]float32{0, 0}, Chunk{Content: "origin"}))
	require.NoError(t, x.Add([]float32{3, 4}, Chunk{Content: "far"}))

	got, err := x.Search([]float32{0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "origin", got[0].Chunk.Content)
	assert.True(t, got[0].Score <= got[1].Score)
}

func TestSearchTopKTruncation(t *testing.T) {
	x := mustIndex(t, MetricIP, 1)
	for i := 0; i < 10; i++ {
		require.NoError(t, x.Add([]float32{float32(i)}, Chunk{Content: "c", Position: i}))
	}
	got, err := x.Search([]float32{1}, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = x.Search([]float32{1}, 100)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestSearchEmptyIndex(t *testing.T) {
	x := mustIndex(t, MetricCosine, 2)
	got, err := x.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	x := mustIndex(t, MetricCosine, 2)
	require.NoError(t, x.Add([]float32{1, 0}, Chunk{Content: "第一段", Source: "a.txt", Position: 0}))
	require.NoError(t, x.Add([]float32{0, 1}, Chunk{Content: "第二段", Source: "a.txt", Position: 1}))

	indexData, storeData, err := x.Encode()
	require.NoError(t, err)
	require.NotEmpty(t, indexData)
	require.NotEmpty(t, storeData)

	y, err := Decode(indexData, storeData)
	require.NoError(t, err)
	assert.Equal(t, 2, y.Len())
	assert.Equal(t, 2, y.Dim())
	assert.Equal(t, MetricCosine, y.Metric())

	got, err := y.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "第一段", got[0].Chunk.Content)
}

func TestDecodeCorruptBlobs(t *testing.T) {
	_, err := Decode([]byte("garbage"), []byte("garbage"))
	require.Error(t, err)

	x := mustIndex(t, MetricCosine, 2)
	require.NoError(t, x.Add([]float32{1, 0}, Chunk{Content: "a"}))
	indexData, _, err := x.Encode()
	require.NoError(t, err)

	empty := mustIndex(t, MetricCosine, 2)
	_, emptyStore, err := empty.Encode()
	require.NoError(t, err)

	// 索引段与存储段数量不一致
	_, err = Decode(indexData, emptyStore)
	require.Error(t, err)
}
