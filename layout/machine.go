package layout

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/andrewchambers/cdecl/parse"
)

// Machine describes the sizes and alignments a C compiler uses
// for the primitive types of a target.
type Machine struct {
	Name     string
	PtrSize  int
	PtrAlign int
	sizeTab  [parse.IntPtr + 1]int
	alignTab [parse.IntPtr + 1]int
}

// 64 bit Linux, macOS and the BSDs.
var LP64 = &Machine{
	Name:     "lp64",
	PtrSize:  8,
	PtrAlign: 8,
	sizeTab: [...]int{
		parse.Void:    0,
		parse.Bool:    1,
		parse.Char:    1,
		parse.Short:   2,
		parse.Int:     4,
		parse.Long:    8,
		parse.LLong:   8,
		parse.Float:   4,
		parse.Double:  8,
		parse.LDouble: 16,
		parse.IntPtr:  8,
	},
	alignTab: [...]int{
		parse.Void:    0,
		parse.Bool:    1,
		parse.Char:    1,
		parse.Short:   2,
		parse.Int:     4,
		parse.Long:    8,
		parse.LLong:   8,
		parse.Float:   4,
		parse.Double:  8,
		parse.LDouble: 16,
		parse.IntPtr:  8,
	},
}

// 64 bit Windows.
var LLP64 = &Machine{
	Name:     "llp64",
	PtrSize:  8,
	PtrAlign: 8,
	sizeTab: [...]int{
		parse.Void:    0,
		parse.Bool:    1,
		parse.Char:    1,
		parse.Short:   2,
		parse.Int:     4,
		parse.Long:    4,
		parse.LLong:   8,
		parse.Float:   4,
		parse.Double:  8,
		parse.LDouble: 8,
		parse.IntPtr:  8,
	},
	alignTab: [...]int{
		parse.Void:    0,
		parse.Bool:    1,
		parse.Char:    1,
		parse.Short:   2,
		parse.Int:     4,
		parse.Long:    4,
		parse.LLong:   8,
		parse.Float:   4,
		parse.Double:  8,
		parse.LDouble: 8,
		parse.IntPtr:  8,
	},
}

// 32 bit x86 with the System V ABI, where 8 byte types
// are only 4 byte aligned inside structs.
var ILP32 = &Machine{
	Name:     "ilp32",
	PtrSize:  4,
	PtrAlign: 4,
	sizeTab: [...]int{
		parse.Void:    0,
		parse.Bool:    1,
		parse.Char:    1,
		parse.Short:   2,
		parse.Int:     4,
		parse.Long:    4,
		parse.LLong:   8,
		parse.Float:   4,
		parse.Double:  8,
		parse.LDouble: 12,
		parse.IntPtr:  4,
	},
	alignTab: [...]int{
		parse.Void:    0,
		parse.Bool:    1,
		parse.Char:    1,
		parse.Short:   2,
		parse.Int:     4,
		parse.Long:    4,
		parse.LLong:   4,
		parse.Float:   4,
		parse.Double:  4,
		parse.LDouble: 4,
		parse.IntPtr:  4,
	},
}

var machines = []*Machine{LP64, LLP64, ILP32}

// Machines returns the names of the known machines.
func Machines() []string {
	var names []string
	for _, m := range machines {
		names = append(names, m.Name)
	}
	return names
}

// MachineByName finds a machine by case insensitive name.
// The empty name selects LP64.
func MachineByName(name string) (*Machine, error) {
	if name == "" {
		return LP64, nil
	}
	for _, m := range machines {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	return nil, errors.Errorf("unknown machine %q, want one of %s", name, strings.Join(Machines(), ", "))
}

func (m *Machine) primSize(p *parse.Primitive) (int, error) {
	if p.Kind == parse.Void {
		return 0, errors.New("void has no size")
	}
	return m.sizeTab[p.Kind], nil
}

func (m *Machine) primAlign(p *parse.Primitive) (int, error) {
	if p.Kind == parse.Void {
		return 0, errors.New("void has no alignment")
	}
	return m.alignTab[p.Kind], nil
}
