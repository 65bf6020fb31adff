package prepare

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/statclim/downgo/pkg/errors"
)

// Block records the transform of one contiguous group of raw columns: the
// standardization factors and the principal-component loadings retained for
// the group. With per-variable reduction each predictor variable owns one
// block; a joint reduction uses a single block spanning all columns.
type Block struct {
	Name     string
	Start    int // first raw column of the group
	Cols     int // raw column count of the group
	Scaler   *Standardizer
	Loadings *mat.Dense // Cols x retained components
	Variance []float64  // explained-variance fraction per retained component
}

// Components returns the number of retained components of the block.
func (b *Block) Components() int {
	_, k := b.Loadings.Dims()
	return k
}

// Reduction is a recorded projection from raw flattened columns into the
// reduced feature space. Once fitted it is immutable; projecting new data
// reuses the stored factors and never refits.
type Reduction struct {
	RawFeatures int
	Blocks      []Block
}

// Features returns the width of the reduced feature space.
func (r *Reduction) Features() int {
	total := 0
	for i := range r.Blocks {
		total += r.Blocks[i].Components()
	}
	return total
}

// ExplainedVariance returns the cumulative explained-variance fraction of
// the retained components, averaged over blocks.
func (r *Reduction) ExplainedVariance() float64 {
	if len(r.Blocks) == 0 {
		return 0
	}
	total := 0.0
	for i := range r.Blocks {
		total += floats.Sum(r.Blocks[i].Variance)
	}
	return total / float64(len(r.Blocks))
}

// Project maps raw flattened rows into the reduced feature space using the
// recorded factors. The input width must equal the raw width the reduction
// was fitted on.
func (r *Reduction) Project(x mat.Matrix) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != r.RawFeatures {
		return nil, errors.NewShapeMismatchError("Reduction.Project", r.RawFeatures, cols, 1)
	}

	out := mat.NewDense(rows, r.Features(), nil)
	offset := 0
	for i := range r.Blocks {
		b := &r.Blocks[i]
		view := extractBlock(x, b.Start, b.Cols)
		std := b.Scaler.transform(view)

		k := b.Components()
		scores := mat.NewDense(rows, k, nil)
		scores.Mul(std, b.Loadings)

		for row := 0; row < rows; row++ {
			for j := 0; j < k; j++ {
				out.Set(row, offset+j, scores.At(row, j))
			}
		}
		offset += k
	}
	return out, nil
}

// Reconstruct maps reduced rows back to the raw column space: scores times
// transposed loadings, then the inverse of the standardization. Used for
// predictand reductions, where backend output arrives in component space.
func (r *Reduction) Reconstruct(scores mat.Matrix) (*mat.Dense, error) {
	rows, cols := scores.Dims()
	if cols != r.Features() {
		return nil, errors.NewShapeMismatchError("Reduction.Reconstruct", r.Features(), cols, 1)
	}

	out := mat.NewDense(rows, r.RawFeatures, nil)
	offset := 0
	for i := range r.Blocks {
		b := &r.Blocks[i]
		k := b.Components()

		sub := extractBlock(scores, offset, k)
		raw := mat.NewDense(rows, b.Cols, nil)
		raw.Mul(sub, b.Loadings.T())
		b.Scaler.inverse(raw)

		for row := 0; row < rows; row++ {
			for j := 0; j < b.Cols; j++ {
				out.Set(row, b.Start+j, raw.At(row, j))
			}
		}
		offset += k
	}
	return out, nil
}

// extractBlock copies columns [start, start+cols) of x into a new matrix.
func extractBlock(x mat.Matrix, start, cols int) *mat.Dense {
	rows, _ := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, x.At(i, start+j))
		}
	}
	return out
}

// fitBlock standardizes one column group and fits its principal components,
// retaining the smallest count whose cumulative explained variance reaches
// the threshold.
func fitBlock(x mat.Matrix, name string, start, cols int, opts *PCOptions) (Block, error) {
	view := extractBlock(x, start, cols)
	scaler := fitStandardizer(view)
	std := scaler.transform(view)

	var pc stat.PC
	if ok := pc.PrincipalComponents(std, nil); !ok {
		return Block{}, errors.Wrap(errors.ErrSingularMatrix,
			"principal component decomposition failed for "+name)
	}

	vars := pc.VarsTo(nil)
	total := floats.Sum(vars)

	k := len(vars)
	if total <= 0 {
		// constant group: keep a single component
		k = 1
	} else {
		cum := 0.0
		for i, v := range vars {
			cum += v
			if cum/total >= opts.threshold() {
				k = i + 1
				break
			}
		}
	}
	if opts.MaxComponents > 0 && k > opts.MaxComponents {
		k = opts.MaxComponents
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	loadings := mat.DenseCopyOf(vecs.Slice(0, cols, 0, k))

	variance := make([]float64, k)
	if total > 0 {
		for i := 0; i < k; i++ {
			variance[i] = vars[i] / total
		}
	}

	return Block{
		Name:     name,
		Start:    start,
		Cols:     cols,
		Scaler:   scaler,
		Loadings: loadings,
		Variance: variance,
	}, nil
}

// fitReduction builds the recorded transform over the raw flattened matrix.
// blockSpans names the column group of each variable; a joint reduction
// passes a single span covering everything.
func fitReduction(x mat.Matrix, spans []blockSpan, opts *PCOptions) (*Reduction, error) {
	_, rawFeatures := x.Dims()
	red := &Reduction{RawFeatures: rawFeatures, Blocks: make([]Block, 0, len(spans))}
	for _, span := range spans {
		b, err := fitBlock(x, span.name, span.start, span.cols, opts)
		if err != nil {
			return nil, err
		}
		red.Blocks = append(red.Blocks, b)
	}
	return red, nil
}

// blockSpan names one contiguous group of raw columns.
type blockSpan struct {
	name  string
	start int
	cols  int
}
