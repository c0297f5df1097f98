package pointcloud

import (
	"math"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// basicPointCloud is the basic implementation of the PointCloud interface. Points are kept in
// insertion order and indexed by position.
type basicPointCloud struct {
	mu       sync.RWMutex
	points   []r3.Vector
	data     []Data
	indexMap map[r3.Vector]int
	meta     MetaData
}

// New returns an empty PointCloud backed by a basicPointCloud.
func New() PointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty, preallocated PointCloud backed by a basicPointCloud.
func NewWithPrealloc(size int) PointCloud {
	return &basicPointCloud{
		points:   make([]r3.Vector, 0, size),
		data:     make([]Data, 0, size),
		indexMap: make(map[r3.Vector]int, size),
		meta:     NewMetaData(),
	}
}

func (cloud *basicPointCloud) Size() int {
	cloud.mu.RLock()
	defer cloud.mu.RUnlock()
	return len(cloud.points)
}

func (cloud *basicPointCloud) MetaData() MetaData {
	cloud.mu.RLock()
	defer cloud.mu.RUnlock()
	return cloud.meta
}

func (cloud *basicPointCloud) At(x, y, z float64) (Data, bool) {
	cloud.mu.RLock()
	defer cloud.mu.RUnlock()
	idx, ok := cloud.indexMap[r3.Vector{X: x, Y: y, Z: z}]
	if !ok {
		return nil, false
	}
	return cloud.data[idx], true
}

// Set validates that the point is finite before setting it in the cloud.
func (cloud *basicPointCloud) Set(p r3.Vector, d Data) error {
	if !isFinite(p) {
		return errors.Errorf("cannot store non finite point %v", p)
	}
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	if idx, ok := cloud.indexMap[p]; ok {
		cloud.data[idx] = d
		if d != nil && d.HasColor() {
			cloud.meta.HasColor = true
		}
		return nil
	}
	cloud.indexMap[p] = len(cloud.points)
	cloud.points = append(cloud.points, p)
	cloud.data = append(cloud.data, d)
	cloud.meta.Merge(p, d)
	return nil
}

func (cloud *basicPointCloud) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	cloud.mu.RLock()
	defer cloud.mu.RUnlock()

	start, end := 0, len(cloud.points)
	if numBatches > 0 {
		batchSize := (len(cloud.points) + numBatches - 1) / numBatches
		start = myBatch * batchSize
		end = start + batchSize
		if end > len(cloud.points) {
			end = len(cloud.points)
		}
	}
	for i := start; i < end; i++ {
		if !fn(cloud.points[i], cloud.data[i]) {
			return
		}
	}
}

func isFinite(p r3.Vector) bool {
	for _, v := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
