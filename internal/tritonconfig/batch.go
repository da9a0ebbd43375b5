package tritonconfig

import "model-release/internal/schema"

// BatchPolicy controls whether the serving engine adds an implicit batch
// dimension. MaxBatchSize 0 disables batching and every declared shape keeps
// its leading dimension.
type BatchPolicy struct {
	MaxBatchSize int `json:"max_batch_size"`
}

// NewBatchPolicy derives the policy from an optional batch hint: absent or <= 1
// disables batching, anything larger becomes the max batch size.
func NewBatchPolicy(hint *int) BatchPolicy {
	if hint == nil || *hint <= 1 {
		return BatchPolicy{MaxBatchSize: 0}
	}
	return BatchPolicy{MaxBatchSize: *hint}
}

func (p BatchPolicy) Batching() bool {
	return p.MaxBatchSize > 0
}

// ServingDims converts a signature shape into the dims declared to the engine.
// Dynamic markers become schema.Dynamic and, with batching enabled, the leading
// dimension is dropped because the engine supplies it. An empty result is
// declared as a single dynamic dimension.
func (p BatchPolicy) ServingDims(shape schema.Shape) []int64 {
	dims := make([]int64, 0, len(shape))
	for _, d := range shape {
		if d.IsDynamic() {
			dims = append(dims, schema.Dynamic)
		} else {
			dims = append(dims, int64(d))
		}
	}

	if p.Batching() && len(dims) > 0 {
		dims = dims[1:]
	}

	if len(dims) == 0 {
		return []int64{schema.Dynamic}
	}
	return dims
}
