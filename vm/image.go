package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Program images: CBOR serialization of compiled programs
// ---------------------------------------------------------------------------

// ImageVersion is the current program image format version.
const ImageVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type programImage struct {
	Version int                `cbor:"1,keyasint"`
	Code    []instructionImage `cbor:"2,keyasint"`
}

// Host references and functions are not serializable; an image stores
// the names they were resolved from and binds them again on load.
type instructionImage struct {
	Op       Opcode  `cbor:"1,keyasint"`
	Type     Type    `cbor:"2,keyasint,omitempty"`
	Num      float64 `cbor:"3,keyasint,omitempty"`
	Str      string  `cbor:"4,keyasint,omitempty"`
	Object   string  `cbor:"5,keyasint,omitempty"`
	Property string  `cbor:"6,keyasint,omitempty"`
	Func     string  `cbor:"7,keyasint,omitempty"`
}

// MarshalProgram serializes a Program to canonical CBOR bytes.
func MarshalProgram(p *Program) ([]byte, error) {
	img := programImage{
		Version: ImageVersion,
		Code:    make([]instructionImage, 0, len(p.code)),
	}
	for _, in := range p.code {
		ii := instructionImage{
			Op:       in.Op,
			Object:   in.Object,
			Property: in.Property,
			Func:     in.FuncName,
		}
		if in.Op == OpPushValue {
			ii.Type = in.Value.Type()
			switch ii.Type {
			case TypeNumeric:
				ii.Num = in.Value.AsDouble()
			case TypeString:
				ii.Str = in.Value.AsString()
			}
		}
		img.Code = append(img.Code, ii)
	}
	return cborEncMode.Marshal(&img)
}

// UnmarshalProgram deserializes a program image and binds its variable
// references and functions through host.
func UnmarshalProgram(data []byte, host Host) (*Program, error) {
	var img programImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("vm: unmarshal program: %w", err)
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("vm: unsupported program image version %d", img.Version)
	}

	p := NewProgram()
	for i, ii := range img.Code {
		if !ii.Op.Valid() {
			return nil, fmt.Errorf("vm: instruction %d: invalid opcode 0x%02x", i, byte(ii.Op))
		}
		in := &Instruction{
			Op:       ii.Op,
			Object:   ii.Object,
			Property: ii.Property,
			FuncName: ii.Func,
		}

		switch ii.Op {
		case OpPushValue:
			switch ii.Type {
			case TypeNumeric:
				in.Value = NewNumber(ii.Num)
			case TypeString:
				in.Value = NewString(ii.Str)
			default:
				return nil, fmt.Errorf("vm: instruction %d: literal of type %s", i, ii.Type)
			}

		case OpPushVar:
			in.Ref = host.ResolveVariable(ii.Object, ii.Property)
			if in.Ref == nil {
				return nil, fmt.Errorf("vm: instruction %d: unresolved reference '%s'", i, in.refName())
			}

		case OpMethodCall:
			in.Ref = host.ResolveVariable(ii.Object, "")
			if in.Ref == nil {
				return nil, fmt.Errorf("vm: instruction %d: unresolved object '%s'", i, ii.Object)
			}
			in.Func = host.ResolveFunction(ii.Func)
			if in.Func == nil {
				return nil, fmt.Errorf("vm: instruction %d: unresolved function '%s'", i, ii.Func)
			}
		}

		p.Emit(in)
	}
	return p, nil
}
