package grid

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/statclim/downgo/pkg/errors"
)

// extractRows copies the given rows of m into a new matrix, preserving
// order. Grown from the subset extraction used by the cross-validation
// driver: fold training sets are always fresh copies, never views.
func extractRows(m *mat.Dense, rows []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.At(r, j))
		}
	}
	return out
}

func checkRows(op string, rows []int, steps int) error {
	if len(rows) == 0 {
		return errors.Wrap(errors.ErrEmptyData, op+": empty row selection")
	}
	for _, r := range rows {
		if r < 0 || r >= steps {
			return errors.NewValueError(op, "row index out of range")
		}
	}
	return nil
}

// Subset returns a copy of the set restricted to the given time indices, in
// the given order. The receiver is left untouched.
func (p *PredictorSet) Subset(rows []int) (*PredictorSet, error) {
	if err := checkRows("PredictorSet.Subset", rows, len(p.Times)); err != nil {
		return nil, err
	}

	times := make([]time.Time, len(rows))
	for i, r := range rows {
		times[i] = p.Times[r]
	}

	vars := make([]Variable, len(p.Variables))
	for vi, v := range p.Variables {
		members := make([]*mat.Dense, len(v.Members))
		for mi, member := range v.Members {
			members[mi] = extractRows(member, rows)
		}
		vars[vi] = Variable{Name: v.Name, Members: members}
	}

	return &PredictorSet{Times: times, Variables: vars}, nil
}

// SelectMember returns a copy of the set reduced to the single given
// ensemble member. Training requires exactly one member; forecast ensembles
// are subset with this before Train and predicted member by member.
func (p *PredictorSet) SelectMember(member int) (*PredictorSet, error) {
	if member < 0 || member >= p.MemberCount() {
		return nil, errors.NewValueError("PredictorSet.SelectMember", "member index out of range")
	}

	times := make([]time.Time, len(p.Times))
	copy(times, p.Times)

	vars := make([]Variable, len(p.Variables))
	for vi, v := range p.Variables {
		var dst mat.Dense
		dst.CloneFrom(v.Members[member])
		vars[vi] = Variable{Name: v.Name, Members: []*mat.Dense{&dst}}
	}

	return &PredictorSet{Times: times, Variables: vars}, nil
}

// Subset returns a copy of the set restricted to the given time indices, in
// the given order.
func (p *PredictandSet) Subset(rows []int) (*PredictandSet, error) {
	if err := checkRows("PredictandSet.Subset", rows, len(p.Times)); err != nil {
		return nil, err
	}

	times := make([]time.Time, len(rows))
	for i, r := range rows {
		times[i] = p.Times[r]
	}

	sites := make([]Site, len(p.Sites))
	copy(sites, p.Sites)

	return &PredictandSet{
		Times: times,
		Sites: sites,
		Data:  extractRows(p.Data, rows),
	}, nil
}

// NewPredictionSet allocates a prediction set on the given time and site
// axes with every value initialized to NaN. Writers fill in the rows they
// cover; rows still NaN afterwards were never predicted.
func NewPredictionSet(times []time.Time, sites []Site, nMembers int) *PredictionSet {
	members := make([]*mat.Dense, nMembers)
	for m := range members {
		data := make([]float64, len(times)*len(sites))
		for i := range data {
			data[i] = math.NaN()
		}
		members[m] = mat.NewDense(len(times), len(sites), data)
	}

	ts := make([]time.Time, len(times))
	copy(ts, times)
	ss := make([]Site, len(sites))
	copy(ss, sites)

	return &PredictionSet{Times: ts, Sites: ss, Members: members}
}
