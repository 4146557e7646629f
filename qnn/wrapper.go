package qnn

import (
	"fmt"

	"github.com/sis-k/executorch/ml"
)

// PackageNameQtiAisw is the operator package of the built-in QNN ops.
const PackageNameQtiAisw = "qti.aisw"

// QNN operator types
const (
	OpElementWiseOr        = "ElementWiseOr"
	OpElementWiseLessEqual = "ElementWiseLessEqual"
)

// TensorType says who reads and writes a tensor.
type TensorType string

const (
	TensorTypeAppWrite TensorType = "QNN_TENSOR_TYPE_APP_WRITE"
	TensorTypeAppRead  TensorType = "QNN_TENSOR_TYPE_APP_READ"
	TensorTypeNative   TensorType = "QNN_TENSOR_TYPE_NATIVE"
	TensorTypeStatic   TensorType = "QNN_TENSOR_TYPE_STATIC"
)

// DataType is the QNN element type.
type DataType string

const (
	DataTypeFloat32 DataType = "QNN_DATATYPE_FLOAT_32"
	DataTypeFloat16 DataType = "QNN_DATATYPE_FLOAT_16"
	DataTypeInt32   DataType = "QNN_DATATYPE_INT_32"
	DataTypeInt64   DataType = "QNN_DATATYPE_INT_64"
	DataTypeUint8   DataType = "QNN_DATATYPE_UINT_8"
	DataTypeBool8   DataType = "QNN_DATATYPE_BOOL_8"
)

var qnnDataTypes = map[ml.DType]DataType{
	ml.DTypeF32:  DataTypeFloat32,
	ml.DTypeF16:  DataTypeFloat16,
	ml.DTypeI32:  DataTypeInt32,
	ml.DTypeI64:  DataTypeInt64,
	ml.DTypeU8:   DataTypeUint8,
	ml.DTypeBool: DataTypeBool8,
}

// DataTypeOf maps a tensor element type to the QNN data type.
func DataTypeOf(d ml.DType) (DataType, error) {
	if dt, ok := qnnDataTypes[d]; ok {
		return dt, nil
	}
	return "", fmt.Errorf("no qnn data type for %v", d)
}

// TensorWrapper is a tensor registered with the QNN graph.
type TensorWrapper struct {
	ID       uint32     `json:"id"`
	Name     string     `json:"name"`
	Type     TensorType `json:"type"`
	DataType DataType   `json:"data_type"`
	Dims     []uint32   `json:"dims"`
}

// OpWrapper is one QNN op. Inputs and Outputs hold tensor names in order.
type OpWrapper struct {
	Name        string   `json:"name"`
	PackageName string   `json:"package_name"`
	OpType      string   `json:"op_type"`
	Inputs      []string `json:"inputs"`
	Outputs     []string `json:"outputs"`
}

func NewOpWrapper(name, packageName, opType string) *OpWrapper {
	return &OpWrapper{Name: name, PackageName: packageName, OpType: opType}
}

func (o *OpWrapper) AddInputTensors(ts ...*TensorWrapper) {
	for _, t := range ts {
		o.Inputs = append(o.Inputs, t.Name)
	}
}

func (o *OpWrapper) AddOutputTensors(ts ...*TensorWrapper) {
	for _, t := range ts {
		o.Outputs = append(o.Outputs, t.Name)
	}
}

// Program is the result of lowering a graph.
type Program struct {
	Tensors []*TensorWrapper `json:"tensors"`
	Ops     []*OpWrapper     `json:"ops"`
}

// Tensor returns the tensor called name.
func (p *Program) Tensor(name string) (*TensorWrapper, bool) {
	for _, t := range p.Tensors {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}
