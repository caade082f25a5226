package engine

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/viant/vec/search"
	sqlite "modernc.org/sqlite"
)

// scalarFunctions are registered on the driver before the first connection
// is opened, so every database a user edits can call them. Vectors are BLOBs
// of little-endian float32 values.
var scalarFunctions = []struct {
	name  string
	nArgs int32
	impl  func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error)
}{
	{name: "vec_cosine", nArgs: 2, impl: vecCosine},
	{name: "vec_l2", nArgs: 2, impl: vecL2},
	{name: "vec_dim", nArgs: 1, impl: vecDim},
}

func registerFunctions() {
	for _, fn := range scalarFunctions {
		// The driver rejects duplicate names; a function registered by an
		// earlier import stays in place.
		_ = sqlite.RegisterDeterministicScalarFunction(fn.name, fn.nArgs, fn.impl)
	}
}

// EncodeVector encodes vec as a BLOB accepted by the vec_* SQL functions.
func EncodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeVector(name string, arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		if len(v)%4 != 0 {
			return nil, fmt.Errorf("%s: invalid vector blob length %d", name, len(v))
		}
		out := make([]float32, len(v)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(v[i*4:]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: unsupported argument type %T; want BLOB", name, arg)
	}
}

func vectorPair(name string, args []driver.Value) (a, b []float32, err error) {
	if a, err = decodeVector(name, args[0]); err != nil {
		return nil, nil, err
	}
	if b, err = decodeVector(name, args[1]); err != nil {
		return nil, nil, err
	}
	if a != nil && b != nil && len(a) != len(b) {
		return nil, nil, fmt.Errorf("%s: dimension mismatch %d vs %d", name, len(a), len(b))
	}
	return a, b, nil
}

// vecCosine returns the cosine similarity of two vectors.
func vecCosine(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, b, err := vectorPair("vec_cosine", args)
	if err != nil || a == nil || b == nil {
		return nil, err
	}
	if len(a) == 0 {
		return nil, fmt.Errorf("vec_cosine: empty vectors")
	}
	if search.Float32s(a).Magnitude() == 0 || search.Float32s(b).Magnitude() == 0 {
		return nil, fmt.Errorf("vec_cosine: zero-magnitude vector")
	}
	return 1 - float64(search.Float32s(a).CosineDistance(b)), nil
}

// vecL2 returns the Euclidean distance between two vectors.
func vecL2(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, b, err := vectorPair("vec_l2", args)
	if err != nil || a == nil || b == nil {
		return nil, err
	}
	return float64(search.Float32s(a).EuclideanDistance(b)), nil
}

// vecDim returns the number of float32 components in a vector blob.
func vecDim(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	v, err := decodeVector("vec_dim", args[0])
	if err != nil || v == nil {
		return nil, err
	}
	return int64(len(v)), nil
}
