package geo

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"

	"github.com/1F47E/shoreline-transects/pkg/models"
)

const (
	tolerance   = 0.01
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// spatialItem wraps a shoreline point for R-Tree indexing
type spatialItem struct {
	models.Point
	idx  int
	rect *rtreego.Rect
}

func (si *spatialItem) Bounds() *rtreego.Rect {
	return si.rect
}

// PointIndex is a thread-safe R-Tree over the points of one shoreline
type PointIndex struct {
	tree      *rtreego.Rtree
	mu        sync.RWMutex
	itemCount atomic.Int64
	extent    models.BoundingBox
	hasExtent bool
}

// NewPointIndex creates an index over the given points
func NewPointIndex(points []models.Point) *PointIndex {
	g := &PointIndex{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren),
	}
	g.IndexPoints(points)
	return g
}

// IndexPoints indexes a batch of points, building their rectangles in parallel
func (g *PointIndex) IndexPoints(points []models.Point) {
	if len(points) == 0 {
		return
	}

	numCPU := runtime.NumCPU()
	items := make([]*spatialItem, len(points))
	var wg sync.WaitGroup

	batchSize := len(points) / numCPU
	if batchSize < 1 {
		batchSize = 1
		numCPU = len(points)
	}

	for i := 0; i < numCPU && i*batchSize < len(points); i++ {
		start := i * batchSize
		end := start + batchSize
		if i == numCPU-1 || end > len(points) {
			end = len(points)
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for j := start; j < end; j++ {
				p := points[j]
				if math.IsNaN(p.X) || math.IsNaN(p.Y) {
					continue
				}
				items[j] = &spatialItem{
					Point: p,
					idx:   j,
					rect:  rtreego.Point{p.X, p.Y}.ToRect(tolerance),
				}
			}
		}(start, end)
	}

	wg.Wait()

	// Tree insertion is not safe for concurrent use
	g.mu.Lock()
	defer g.mu.Unlock()

	offset := int(g.itemCount.Load())
	count := int64(0)
	for _, item := range items {
		if item == nil {
			continue
		}
		item.idx += offset
		g.grow(item.Point)
		g.tree.Insert(item)
		count++
	}
	g.itemCount.Add(count)
}

func (g *PointIndex) grow(p models.Point) {
	if !g.hasExtent {
		g.extent = models.BoundingBox{Min: p, Max: p}
		g.hasExtent = true
		return
	}
	g.extent.Min.X = math.Min(g.extent.Min.X, p.X)
	g.extent.Min.Y = math.Min(g.extent.Min.Y, p.Y)
	g.extent.Max.X = math.Max(g.extent.Max.X, p.X)
	g.extent.Max.Y = math.Max(g.extent.Max.Y, p.Y)
}

// WithinBand returns the indexed points whose offset from the line is at most band.
// The result is identical to Line.WithinBand over the indexed points.
func (g *PointIndex) WithinBand(l *Line, band float64) ([]models.Point, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.itemCount.Load() == 0 {
		return []models.Point{}, nil
	}

	// Clip the infinite line to the chainage span covered by the index extent
	corners := []models.Point{
		g.extent.Min,
		{X: g.extent.Min.X, Y: g.extent.Max.Y},
		g.extent.Max,
		{X: g.extent.Max.X, Y: g.extent.Min.Y},
	}
	tMin, tMax := math.Inf(1), math.Inf(-1)
	for _, c := range corners {
		t := l.Chainage(c)
		tMin = math.Min(tMin, t)
		tMax = math.Max(tMax, t)
	}
	a, b := l.PointAt(tMin), l.PointAt(tMax)

	pad := band + tolerance
	box := models.BoundingBox{
		Min: models.Point{X: math.Min(a.X, b.X) - pad, Y: math.Min(a.Y, b.Y) - pad},
		Max: models.Point{X: math.Max(a.X, b.X) + pad, Y: math.Max(a.Y, b.Y) + pad},
	}

	items, err := g.searchBox(box)
	if err != nil {
		return nil, err
	}

	points := make([]models.Point, 0, len(items))
	for _, item := range items {
		if math.Abs(l.SignedOffset(item.Point)) <= band {
			points = append(points, item.Point)
		}
	}
	return points, nil
}

func (g *PointIndex) searchBox(box models.BoundingBox) ([]*spatialItem, error) {
	bounds, err := rtreego.NewRect(
		rtreego.Point{box.Min.X, box.Min.Y},
		[]float64{
			math.Max(box.Max.X-box.Min.X, tolerance),
			math.Max(box.Max.Y-box.Min.Y, tolerance),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid search box: %w", err)
	}

	results := g.tree.SearchIntersect(bounds)
	items := make([]*spatialItem, 0, len(results))
	for _, result := range results {
		item, ok := result.(*spatialItem)
		if !ok {
			continue
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].idx < items[j].idx })
	return items, nil
}

// Size returns the number of indexed points
func (g *PointIndex) Size() int64 {
	return g.itemCount.Load()
}
