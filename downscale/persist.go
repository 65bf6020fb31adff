package downscale

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/statclim/downgo/pkg/errors"
)

// Experiment file layout: a 4-byte magic, a format version byte and the
// xxHash64 of the compressed payload, followed by the zstd-compressed gob
// encoding of the Experiment.
const (
	experimentVersion = 1
	headerSize        = 4 + 1 + 8
)

var experimentMagic = [4]byte{'D', 'G', 'E', 'X'}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	gob.Register(&AnalogModel{})
	gob.Register(&SiteModels{})
	gob.Register(&JointModel{})
	gob.Register(&NeuralModel{})

	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("downscale: failed to create zstd encoder: %v", err))
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic(fmt.Sprintf("downscale: failed to create zstd decoder: %v", err))
	}
}

// Save writes the experiment to w in the experiment file format. The
// matrices inside the artifact and the recorded transforms travel along, so
// the loaded experiment predicts without refitting.
func (e *Experiment) Save(w io.Writer) error {
	if e == nil || e.Artifact == nil {
		return errors.NewNotFittedError("Experiment", "Save")
	}

	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(e); err != nil {
		return errors.Wrap(err, "downscale: failed to encode experiment")
	}
	compressed := zstdEncoder.EncodeAll(payload.Bytes(), nil)

	header := make([]byte, headerSize)
	copy(header[:4], experimentMagic[:])
	header[4] = experimentVersion
	binary.LittleEndian.PutUint64(header[5:], xxhash.Sum64(compressed))

	if _, err := w.Write(header); err != nil {
		return errors.Wrap(err, "downscale: failed to write experiment header")
	}
	if _, err := w.Write(compressed); err != nil {
		return errors.Wrap(err, "downscale: failed to write experiment payload")
	}
	return nil
}

// SaveFile writes the experiment to a file.
func (e *Experiment) SaveFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "downscale: failed to create experiment file")
	}
	defer file.Close()
	return e.Save(file)
}

// LoadExperiment reads an experiment written by Save. The payload checksum
// is verified before decoding; fitted-state flags, which do not serialize,
// are restored on the decoded models.
func LoadExperiment(r io.Reader) (*Experiment, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "downscale: failed to read experiment")
	}
	if len(raw) < headerSize {
		return nil, errors.NewValueError("downscale.LoadExperiment", "truncated experiment file")
	}
	if !bytes.Equal(raw[:4], experimentMagic[:]) {
		return nil, errors.NewValueError("downscale.LoadExperiment", "not an experiment file")
	}
	if raw[4] != experimentVersion {
		return nil, errors.NewValueError("downscale.LoadExperiment",
			fmt.Sprintf("unsupported experiment format version %d", raw[4]))
	}

	compressed := raw[headerSize:]
	if got := xxhash.Sum64(compressed); got != binary.LittleEndian.Uint64(raw[5:headerSize]) {
		return nil, errors.NewValueError("downscale.LoadExperiment", "experiment payload checksum mismatch")
	}

	payload, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, errors.Wrap(err, "downscale: failed to decompress experiment")
	}

	exp := &Experiment{}
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(exp); err != nil {
		return nil, errors.Wrap(err, "downscale: failed to decode experiment")
	}
	restoreFitted(exp)
	return exp, nil
}

// LoadExperimentFile reads an experiment from a file.
func LoadExperimentFile(path string) (*Experiment, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "downscale: failed to open experiment file")
	}
	defer file.Close()
	return LoadExperiment(file)
}

// restoreFitted marks the decoded models usable again.
func restoreFitted(exp *Experiment) {
	switch a := exp.Artifact.(type) {
	case *SiteModels:
		for _, g := range a.Models {
			g.SetFitted()
		}
	case *JointModel:
		a.Model.SetFitted()
	case *NeuralModel:
		for _, nw := range a.Networks {
			nw.SetFitted()
		}
	}
}
