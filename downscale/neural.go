package downscale

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/statclim/downgo/core/parallel"
	"github.com/statclim/downgo/nnet"
	"github.com/statclim/downgo/pkg/errors"
	"github.com/statclim/downgo/prepare"
)

// NeuralModel is the perceptron artifact: a single joint multi-output
// network, or one network per site when fitted single-site.
type NeuralModel struct {
	Networks []*nnet.Network
	Joint    bool
}

func trainNeural(data *prepare.Data, cfg *TrainConfig) (Artifact, error) {
	if cfg.Joint {
		c := cfg.Neural
		c.Seed = cfg.Seed
		nw, err := nnet.Fit(data.X, data.Y, c)
		if err != nil {
			return nil, err
		}
		return &NeuralModel{Networks: []*nnet.Network{nw}, Joint: true}, nil
	}

	rows := data.Samples()
	outputs := data.Outputs()
	nets := make([]*nnet.Network, outputs)
	errs := parallel.ForEach(outputs, cfg.Workers, func(k int) error {
		c := cfg.Neural
		c.Seed = cfg.Seed + uint64(k)
		nw, err := nnet.Fit(data.X, mat.NewDense(rows, 1, column(data.Y, k)), c)
		if err != nil {
			return errors.Wrapf(err, "site %d", k)
		}
		nets[k] = nw
		return nil
	})
	for _, e := range errs {
		if e != nil {
			return nil, e
		}
	}
	return &NeuralModel{Networks: nets}, nil
}

func (m *NeuralModel) predict(x *mat.Dense, info ModelInfo, rng *rand.Rand) (*mat.Dense, error) {
	if info.Simulate {
		return nil, errors.NewUnsupportedSimulationError(info.Family.String())
	}

	if m.Joint {
		return m.Networks[0].Predict(x)
	}

	rows, _ := x.Dims()
	out := mat.NewDense(rows, len(m.Networks), nil)
	for k, nw := range m.Networks {
		pred, err := nw.Predict(x)
		if err != nil {
			return nil, errors.Wrapf(err, "site %d", k)
		}
		for i := 0; i < rows; i++ {
			out.Set(i, k, pred.At(i, 0))
		}
	}
	return out, nil
}
