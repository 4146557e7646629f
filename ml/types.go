// types.go - Datentypen und Konstanten fuer Tensor-Operationen
// Dieses Modul definiert DType und die Zuordnung zu Checkpoint- und QNN-Typnamen.
package ml

import (
	"fmt"
	"strings"
)

// DType represents the data type of tensor elements.
type DType int

const (
	DTypeOther DType = iota
	DTypeF32
	DTypeF16
	DTypeBF16
	DTypeI32
	DTypeI64
	DTypeU8
	DTypeBool
)

var dtypeNames = map[DType]string{
	DTypeF32:  "F32",
	DTypeF16:  "F16",
	DTypeBF16: "BF16",
	DTypeI32:  "I32",
	DTypeI64:  "I64",
	DTypeU8:   "U8",
	DTypeBool: "BOOL",
}

func (d DType) String() string {
	if s, ok := dtypeNames[d]; ok {
		return s
	}
	return "OTHER"
}

// Size returns the number of bytes a single element occupies.
func (d DType) Size() int {
	switch d {
	case DTypeF32, DTypeI32:
		return 4
	case DTypeF16, DTypeBF16:
		return 2
	case DTypeI64:
		return 8
	case DTypeU8, DTypeBool:
		return 1
	default:
		return 0
	}
}

// ParseDType maps a safetensors dtype string (e.g. "BF16") or a torch dtype
// name (e.g. "torch.float32") to a DType.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(strings.TrimPrefix(s, "torch.")) {
	case "f32", "float32", "float":
		return DTypeF32, nil
	case "f16", "float16", "half":
		return DTypeF16, nil
	case "bf16", "bfloat16":
		return DTypeBF16, nil
	case "i32", "int32", "int":
		return DTypeI32, nil
	case "i64", "int64", "long":
		return DTypeI64, nil
	case "u8", "uint8":
		return DTypeU8, nil
	case "bool":
		return DTypeBool, nil
	default:
		return DTypeOther, fmt.Errorf("unknown data type: %s", s)
	}
}
