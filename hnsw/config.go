package hnsw

import (
	"math"

	"github.com/nnvec/hnswdb/internal/logging"
)

// Metric selects the distance function used for both construction and
// search. Lower is always more similar, regardless of metric.
type Metric int

const (
	// Euclidean is squared L2 distance (no square root taken).
	Euclidean Metric = iota
	// Cosine is 1 minus cosine similarity.
	Cosine
	// InnerProduct is the negated dot product.
	InnerProduct
)

// String returns the canonical configuration-surface name of m.
func (m Metric) String() string {
	switch m {
	case Euclidean:
		return "euclidean"
	case Cosine:
		return "cosine"
	case InnerProduct:
		return "inner_product"
	default:
		return "unknown"
	}
}

// ParseMetric maps one of the three accepted configuration strings to a
// Metric. ok is false for anything else.
func ParseMetric(s string) (m Metric, ok bool) {
	switch s {
	case "euclidean":
		return Euclidean, true
	case "cosine":
		return Cosine, true
	case "inner_product":
		return InnerProduct, true
	default:
		return 0, false
	}
}

// Sentinel is the reserved internal id marking an empty adjacency slot.
const Sentinel uint32 = 0xFFFFFFFF

const (
	defaultM              = 16
	defaultEfConstruction = 200
	defaultEfSearch       = 50
)

// options holds the fully-resolved configuration for an Index, built by
// applying Option functions over a set of computed defaults.
type options struct {
	dim                   int
	m                     int
	mmax0                 int
	mmax0Set              bool
	efConstruction        int
	efSearch              int
	metric                Metric
	mL                    float64
	mLSet                 bool
	useHeuristic          bool
	keepPrunedConnections bool
	seed                  *uint32
	logger                *logging.Logger
}

// Option configures an Index at construction time.
type Option func(*options)

// WithM sets the target layer>0 degree. Also re-derives Mmax0 and mL from
// the new M unless those were explicitly overridden by WithMmax0/WithML.
func WithM(m int) Option {
	return func(o *options) { o.m = m }
}

// WithMmax0 sets the layer-0 neighbor cap explicitly, overriding the 2*M
// default.
func WithMmax0(mmax0 int) Option {
	return func(o *options) {
		o.mmax0 = mmax0
		o.mmax0Set = true
	}
}

// WithEfConstruction sets the beam width used while linking new nodes.
func WithEfConstruction(ef int) Option {
	return func(o *options) { o.efConstruction = ef }
}

// WithEfSearch sets the default beam width used at query time.
func WithEfSearch(ef int) Option {
	return func(o *options) { o.efSearch = ef }
}

// WithMetric selects the distance function.
func WithMetric(m Metric) Option {
	return func(o *options) { o.metric = m }
}

// WithML overrides the level-generation scale, overriding the 1/ln(M)
// default.
func WithML(mL float64) Option {
	return func(o *options) {
		o.mL = mL
		o.mLSet = true
	}
}

// WithSeed fixes the PRNG seed so level assignments are reproducible for a
// given insert order.
func WithSeed(seed uint32) Option {
	return func(o *options) { o.seed = &seed }
}

// WithHeuristic toggles diversity-aware neighbor selection (enabled by
// default).
func WithHeuristic(enabled bool) Option {
	return func(o *options) { o.useHeuristic = enabled }
}

// WithKeepPrunedConnections toggles backfilling from discarded candidates
// when the heuristic leaves room in a neighbor row (enabled by default).
func WithKeepPrunedConnections(keep bool) Option {
	return func(o *options) { o.keepPrunedConnections = keep }
}

// WithLogger attaches a logger. The Index itself never emits log records;
// this is only threaded through for callers composing Index into a
// ShardManager that wants a single logger instance shared everywhere.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

func applyOptions(dim int, optFns []Option) options {
	o := options{
		dim:                   dim,
		m:                     defaultM,
		efConstruction:        defaultEfConstruction,
		efSearch:              defaultEfSearch,
		metric:                Euclidean,
		useHeuristic:          true,
		keepPrunedConnections: true,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.m <= 0 {
		o.m = defaultM
	}
	if !o.mmax0Set {
		o.mmax0 = 2 * o.m
	}
	if !o.mLSet {
		o.mL = 1.0 / math.Log(float64(o.m))
	}
	if o.efConstruction <= 0 {
		o.efConstruction = defaultEfConstruction
	}
	if o.efSearch <= 0 {
		o.efSearch = defaultEfSearch
	}
	return o
}

// maxN returns the neighbor cap for layer l: Mmax0 at layer 0, M above it.
func (o *options) maxN(level int) int {
	if level == 0 {
		return o.mmax0
	}
	return o.m
}
