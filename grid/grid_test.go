package grid

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/statclim/downgo/pkg/errors"
)

func makeTimes(n int) []time.Time {
	times := make([]time.Time, n)
	start := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range times {
		times[i] = start.AddDate(0, 0, i)
	}
	return times
}

func makePredictors(steps, points, members int) *PredictorSet {
	vars := []Variable{
		{Name: "slp", Members: make([]*mat.Dense, members)},
		{Name: "t850", Members: make([]*mat.Dense, members)},
	}
	for vi := range vars {
		for m := 0; m < members; m++ {
			data := make([]float64, steps*points)
			for i := range data {
				data[i] = float64(vi*1000 + m*100 + i)
			}
			vars[vi].Members[m] = mat.NewDense(steps, points, data)
		}
	}
	return &PredictorSet{Times: makeTimes(steps), Variables: vars}
}

func makePredictand(steps, sites int) *PredictandSet {
	siteList := make([]Site, sites)
	for i := range siteList {
		siteList[i] = Site{ID: string(rune('A' + i)), Lat: 40 + float64(i), Lon: -3 + float64(i)}
	}
	data := make([]float64, steps*sites)
	for i := range data {
		data[i] = float64(i) * 0.5
	}
	return &PredictandSet{
		Times: makeTimes(steps),
		Sites: siteList,
		Data:  mat.NewDense(steps, sites, data),
	}
}

func TestPredictorSetValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PredictorSet)
		wantErr bool
	}{
		{
			name:    "valid set",
			mutate:  func(p *PredictorSet) {},
			wantErr: false,
		},
		{
			name:    "no variables",
			mutate:  func(p *PredictorSet) { p.Variables = nil },
			wantErr: true,
		},
		{
			name:    "no time steps",
			mutate:  func(p *PredictorSet) { p.Times = nil },
			wantErr: true,
		},
		{
			name: "row count differs from time axis",
			mutate: func(p *PredictorSet) {
				p.Variables[0].Members[0] = mat.NewDense(3, 4, nil)
			},
			wantErr: true,
		},
		{
			name: "uneven member counts",
			mutate: func(p *PredictorSet) {
				p.Variables[1].Members = p.Variables[1].Members[:1]
			},
			wantErr: true,
		},
		{
			name: "unnamed variable",
			mutate: func(p *PredictorSet) {
				p.Variables[0].Name = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := makePredictors(10, 4, 2)
			tt.mutate(p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPredictandSetValidate(t *testing.T) {
	y := makePredictand(10, 3)
	if err := y.Validate(); err != nil {
		t.Fatalf("valid set rejected: %v", err)
	}

	y.Data = mat.NewDense(10, 2, nil)
	err := y.Validate()
	if err == nil {
		t.Fatal("expected error for site count mismatch")
	}
	var shapeErr *errors.ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeMismatchError, got %T", err)
	}
	if shapeErr.Axis != 1 {
		t.Errorf("Axis = %d, want 1", shapeErr.Axis)
	}
}

func TestAlignTimes(t *testing.T) {
	x := makePredictors(10, 4, 1)
	y := makePredictand(10, 3)

	if err := AlignTimes(x, y); err != nil {
		t.Fatalf("aligned axes rejected: %v", err)
	}

	short := makePredictand(8, 3)
	err := AlignTimes(x, short)
	if err == nil {
		t.Fatal("expected error for axis length mismatch")
	}
	var shapeErr *errors.ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeMismatchError, got %T", err)
	}

	shifted := makePredictand(10, 3)
	shifted.Times[4] = shifted.Times[4].Add(6 * time.Hour)
	err = AlignTimes(x, shifted)
	if err == nil {
		t.Fatal("expected error for shifted timestamp")
	}
	if !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeMismatchError, got %T", err)
	}
	if shapeErr.Got != 4 {
		t.Errorf("aligned prefix = %d, want 4", shapeErr.Got)
	}
}

func TestPredictorSetSubset(t *testing.T) {
	p := makePredictors(10, 4, 2)

	sub, err := p.Subset([]int{7, 2, 5})
	if err != nil {
		t.Fatalf("Subset failed: %v", err)
	}

	if sub.Steps() != 3 {
		t.Fatalf("Steps() = %d, want 3", sub.Steps())
	}
	if !sub.Times[0].Equal(p.Times[7]) || !sub.Times[1].Equal(p.Times[2]) {
		t.Error("subset times not in selection order")
	}

	// values follow the selection
	want := p.Variables[1].Members[1].At(5, 3)
	got := sub.Variables[1].Members[1].At(2, 3)
	if got != want {
		t.Errorf("subset value = %v, want %v", got, want)
	}

	// the subset is a copy, not a view
	sub.Variables[0].Members[0].Set(0, 0, -999)
	if p.Variables[0].Members[0].At(7, 0) == -999 {
		t.Error("mutating the subset must not touch the source")
	}

	if _, err := p.Subset([]int{0, 99}); err == nil {
		t.Error("expected error for out-of-range index")
	}
	if _, err := p.Subset(nil); err == nil {
		t.Error("expected error for empty selection")
	}
}

func TestPredictandSetSubset(t *testing.T) {
	y := makePredictand(10, 3)

	sub, err := y.Subset([]int{1, 3})
	if err != nil {
		t.Fatalf("Subset failed: %v", err)
	}
	if sub.Steps() != 2 || sub.SiteCount() != 3 {
		t.Fatalf("dims = (%d, %d), want (2, 3)", sub.Steps(), sub.SiteCount())
	}
	if sub.Data.At(1, 2) != y.Data.At(3, 2) {
		t.Error("subset values do not follow the selection")
	}
}

func TestSelectMember(t *testing.T) {
	p := makePredictors(6, 4, 3)

	single, err := p.SelectMember(2)
	if err != nil {
		t.Fatalf("SelectMember failed: %v", err)
	}
	if single.MemberCount() != 1 {
		t.Fatalf("MemberCount() = %d, want 1", single.MemberCount())
	}
	if single.Variables[0].Members[0].At(3, 1) != p.Variables[0].Members[2].At(3, 1) {
		t.Error("selected member does not carry member 2 values")
	}

	single.Variables[0].Members[0].Set(0, 0, -999)
	if p.Variables[0].Members[2].At(0, 0) == -999 {
		t.Error("mutating the selection must not touch the source")
	}

	if _, err := p.SelectMember(5); err == nil {
		t.Error("expected error for out-of-range member")
	}
}

func TestFeatureAndMemberCounts(t *testing.T) {
	p := makePredictors(6, 4, 3)

	if got := p.FeatureCount(); got != 8 {
		t.Errorf("FeatureCount() = %d, want 8", got)
	}
	if got := p.MemberCount(); got != 3 {
		t.Errorf("MemberCount() = %d, want 3", got)
	}
}

func TestNewPredictionSet(t *testing.T) {
	times := makeTimes(5)
	sites := []Site{{ID: "A"}, {ID: "B"}}

	pred := NewPredictionSet(times, sites, 2)

	if len(pred.Members) != 2 {
		t.Fatalf("member count = %d, want 2", len(pred.Members))
	}
	for m, member := range pred.Members {
		r, c := member.Dims()
		if r != 5 || c != 2 {
			t.Fatalf("member %d dims = (%d, %d), want (5, 2)", m, r, c)
		}
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if !math.IsNaN(member.At(i, j)) {
					t.Fatalf("member %d at (%d, %d) = %v, want NaN", m, i, j, member.At(i, j))
				}
			}
		}
	}
}
