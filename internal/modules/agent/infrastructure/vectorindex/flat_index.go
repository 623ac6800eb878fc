package vectorindex

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"sort"

	"LinkMind/pkg/xerr"
)

// 相似度度量
const (
	MetricCosine = "cosine"
	MetricL2     = "l2"
	MetricIP     = "ip"
)

// Chunk 索引中的一个知识片段
type Chunk struct {
	Content  string
	Source   string
	Position int
}

// SearchResult 检索结果，Score 语义随度量变化（l2 越小越近，其余越大越近）
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// FlatIndex 暴力检索的平面向量索引
// 向量与片段按相同下标平行存储，序列化为两段字节（索引段 / 存储段），必须成对读写
type FlatIndex struct {
	metric string
	dim    int
	vecs   [][]float32
	chunks []Chunk
}

// indexPayload / storePayload 分别是两段 blob 的 gob 载荷
type indexPayload struct {
	Metric  string
	Dim     int
	Vectors [][]float32
}

type storePayload struct {
	Chunks []Chunk
}

func normalizeMetric(metric string) (string, error) {
	switch metric {
	case "", MetricCosine, "余弦":
		return MetricCosine, nil
	case MetricL2, "euclidean", "欧氏距离":
		return MetricL2, nil
	case MetricIP, "inner_product", "内积":
		return MetricIP, nil
	default:
		return "", xerr.ValidationError(fmt.Sprintf("不支持的相似度度量: %s", metric))
	}
}

func NewFlatIndex(metric string, dim int) (*FlatIndex, error) {
	m, err := normalizeMetric(metric)
	if err != nil {
		return nil, err
	}
	if dim <= 0 {
		return nil, xerr.ValidationError(fmt.Sprintf("非法向量维度: %d", dim))
	}
	return &FlatIndex{metric: m, dim: dim}, nil
}

func (x *FlatIndex) Len() int { return len(x.vecs) }
func (x *FlatIndex) Dim() int { return x.dim }
func (x *FlatIndex) Metric() string { return x.metric }

// Add 追加一个向量与其片段，维度不匹配时拒绝
func (x *FlatIndex) Add(vec []float32, chunk Chunk) error {
	if len(vec) != x.dim {
		return xerr.ValidationError(fmt.Sprintf("向量维度不匹配: 期望 %d 实际 %d", x.dim, len(vec)))
	}
	x.vecs = append(x.vecs, vec)
	x.chunks = append(x.chunks, chunk)
	return nil
}

// Search 返回与查询向量最近的 topK 个片段，索引为空时返回空切片
func (x *FlatIndex) Search(query []float32, topK int) ([]SearchResult, error) {
	if len(query) != x.dim {
		return nil, xerr.ValidationError(fmt.Sprintf("查询向量维度不匹配: 期望 %d 实际 %d", x.dim, len(query)))
	}
	if topK <= 0 || len(x.vecs) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(x.vecs))
	for i, v := range x.vecs {
		results = append(results, SearchResult{
			Chunk: x.chunks[i],
			Score: x.score(query, v),
		})
	}

	if x.metric == MetricL2 {
		sort.SliceStable(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	} else {
		sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	}

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (x *FlatIndex) score(a, b []float32) float32 {
	switch x.metric {
	case MetricL2:
		var sum float64
		for i := range a {
			d := float64(a[i] - b[i])
			sum += d * d
		}
		return float32(math.Sqrt(sum))
	case MetricIP:
		return dot(a, b)
	default:
		na := norm(a)
		nb := norm(b)
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}

// Encode 序列化为索引段与存储段两份字节
func (x *FlatIndex) Encode() (indexData, storeData []byte, err error) {
	var ib bytes.Buffer
	if err := gob.NewEncoder(&ib).Encode(indexPayload{
		Metric:  x.metric,
		Dim:     x.dim,
		Vectors: x.vecs,
	}); err != nil {
		return nil, nil, fmt.Errorf("编码索引段失败: %w", err)
	}

	var sb bytes.Buffer
	if err := gob.NewEncoder(&sb).Encode(storePayload{Chunks: x.chunks}); err != nil {
		return nil, nil, fmt.Errorf("编码存储段失败: %w", err)
	}
	return ib.Bytes(), sb.Bytes(), nil
}

// Decode 从 blob 对还原索引，两段长度不一致视为损坏
func Decode(indexData, storeData []byte) (*FlatIndex, error) {
	var ip indexPayload
	if err := gob.NewDecoder(bytes.NewReader(indexData)).Decode(&ip); err != nil {
		return nil, fmt.Errorf("解码索引段失败: %w", err)
	}
	var sp storePayload
	if err := gob.NewDecoder(bytes.NewReader(storeData)).Decode(&sp); err != nil {
		return nil, fmt.Errorf("解码存储段失败: %w", err)
	}
	if len(ip.Vectors) != len(sp.Chunks) {
		return nil, fmt.Errorf("索引损坏: 向量数 %d 与片段数 %d 不一致", len(ip.Vectors), len(sp.Chunks))
	}

	x, err := NewFlatIndex(ip.Metric, ip.Dim)
	if err != nil {
		return nil, err
	}
	x.vecs = ip.Vectors
	x.chunks = sp.Chunks
	return x, nil
}
