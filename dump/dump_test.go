package dump

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bitbucket.org/creachadair/stringset"
	"github.com/google/go-cmp/cmp"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"github.com/andrewchambers/cdecl/layout"
	"github.com/andrewchambers/cdecl/parse"
)

func parseTestdata(t *testing.T, name string) *parse.TranslationUnit {
	t.Helper()
	src, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	tu, err := parse.ParseString(name, string(src))
	require.NoError(t, err)
	return tu
}

// Every testdata/*.h has its text rendering in a .txt file next to it.
func TestText(t *testing.T) {
	files, err := filepath.Glob("testdata/*.h")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, hfile := range files {
		tu := parseTestdata(t, filepath.Base(hfile))
		expected, err := os.ReadFile(strings.TrimSuffix(hfile, ".h") + ".txt")
		require.NoError(t, err)
		var got strings.Builder
		require.NoError(t, Text(&got, tu))
		if got.String() != string(expected) {
			dmp := diffmatchpatch.New()
			diffs := dmp.DiffMain(string(expected), got.String(), false)
			t.Errorf("Test failed %s:\n%s", hfile, dmp.DiffPrettyText(diffs))
		}
	}
}

func TestRecords(t *testing.T) {
	u := Records("struct_example.h", parseTestdata(t, "struct_example.h"))
	require.Len(t, u.Structs, 5)
	assert.Equal(t, Struct{Name: "test_example", Line: 1, Fields: []Field{}}, u.Structs[0])
	want := []Field{
		{Name: "field_a", Type: "int"},
		{Name: "field_b", Type: "_Bool"},
		{Name: "field_c", Type: "float *", PointerDepth: 1},
		{Name: "field_d", Type: "void *", PointerDepth: 1},
		{Name: "field_e", Type: "float *const", PointerDepth: 1, Const: true},
		{Name: "field_f", Type: "struct test_example"},
	}
	if diff := cmp.Diff(want, u.Structs[1].Fields); diff != "" {
		t.Errorf("test_struct fields (-want +got):\n%s", diff)
	}
	assert.Equal(t, "This is a pointer to a single byte", u.Structs[3].Fields[0].Annotation)
	assert.Equal(t, Typedef{Name: "bytes_struct", Type: "struct bytes_struct"}, u.Typedefs[3])
	assert.Empty(t, u.Enums)
}

func TestJSONAndYAMLAgree(t *testing.T) {
	u := Records("struct_example.h", parseTestdata(t, "struct_example.h"))

	var js strings.Builder
	require.NoError(t, JSON(&js, u))
	assert.Contains(t, js.String(), `"annotation": "Char is CString"`)
	assert.Contains(t, js.String(), `"pointerDepth": 1`)

	var back Unit
	require.NoError(t, json.Unmarshal([]byte(js.String()), &back))
	if diff := cmp.Diff(u, &back); diff != "" {
		t.Errorf("json round trip (-want +got):\n%s", diff)
	}

	var ys strings.Builder
	require.NoError(t, YAML(&ys, u))
	assert.Contains(t, ys.String(), "name: test_struct")
	converted, err := yaml.YAMLToJSON([]byte(ys.String()))
	require.NoError(t, err)
	assert.JSONEq(t, js.String(), string(converted))
}

func TestEnumsAndUnions(t *testing.T) {
	tu, err := parse.ParseString("e.h", "enum mode { OFF, ON = 2 };\nunion u { int i; float f; };\n")
	require.NoError(t, err)

	var got strings.Builder
	require.NoError(t, Text(&got, tu))
	want := "enum mode {\n\tOFF = 0,\n\tON = 2,\n};\n\nunion u {\n\tint i;\n\tfloat f;\n};\n\n"
	assert.Equal(t, want, got.String())

	u := Records("e.h", tu)
	assert.True(t, u.Structs[0].Union)
	assert.Equal(t, []Enum{{Name: "mode", Constants: []EnumConstant{{"OFF", 0}, {"ON", 2}}}}, u.Enums)
}

func TestFilter(t *testing.T) {
	tu := parseTestdata(t, "struct_example.h")

	got, err := Filter(tu, stringset.New("test_struct", "byte_struct"))
	require.NoError(t, err)
	var names []string
	for _, s := range got.Structs {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"test_struct", "byte_struct"}, names)
	require.Len(t, got.Typedefs, 2)

	_, err = Filter(tu, stringset.New("test_struct", "nope", "also_nope"))
	require.Error(t, err)
	assert.Equal(t, "no declaration named also_nope, nope", err.Error())
}

func TestLayoutTable(t *testing.T) {
	tu := parseTestdata(t, "struct_example.h")
	l, err := layout.Compute(layout.LP64, tu.FindStruct("test_struct"))
	require.NoError(t, err)

	var got strings.Builder
	require.NoError(t, Layout(&got, l))
	lines := strings.Split(strings.TrimSuffix(got.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, []string{"struct", "test_struct", "size", "32", "align", "8"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"24", "float", "*const", "field_e", "8"}, strings.Fields(lines[5]))
	assert.Equal(t, []string{"32", "struct", "test_example", "field_f", "0"}, strings.Fields(lines[6]))
}

func TestSelectAcrossUnits(t *testing.T) {
	a, err := parse.ParseString("a.h", "struct a { int x; };")
	require.NoError(t, err)
	b, err := parse.ParseString("b.h", "struct b { int y; };")
	require.NoError(t, err)

	got, err := Select([]*parse.TranslationUnit{a, b}, stringset.New("a", "b"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Structs[0].Name)
	assert.Equal(t, "b", got[1].Structs[0].Name)

	_, err = Select([]*parse.TranslationUnit{a, b}, stringset.New("c"))
	assert.EqualError(t, err, "no declaration named c")
}

const apiHeader = `typedef struct mrb_state { int status; } mrb_state;
typedef int mrb_int;
struct other { int x; };
enum mrb_vtype { MRB_TT_FALSE, MRB_TT_TRUE };
enum { MRB_GC_ARENA_SIZE = 100 };
enum color { RED };
extern mrb_int mrb_debug;
int other_count;
mrb_state *mrb_open(void);
mrb_int mrb_funcall(mrb_state *mrb, const char *name, mrb_int argc, ...);
void helper(int);
`

func TestFunctionsAndGlobals(t *testing.T) {
	tu, err := parse.ParseString("api.h", apiHeader)
	require.NoError(t, err)

	u := Records("api.h", tu)
	want := []Func{
		{Name: "mrb_open", Type: "mrb_state *(void)", Result: "mrb_state *", Params: []Param{}, Line: 9},
		{
			Name:   "mrb_funcall",
			Type:   "mrb_int (mrb_state *, const char *, mrb_int, ...)",
			Result: "mrb_int",
			Params: []Param{
				{Name: "mrb", Type: "mrb_state *"},
				{Name: "name", Type: "const char *"},
				{Name: "argc", Type: "mrb_int"},
			},
			Variadic: true,
			Line:     10,
		},
		{Name: "helper", Type: "void (int)", Result: "void", Params: []Param{{Type: "int"}}, Line: 11},
	}
	if diff := cmp.Diff(want, u.Funcs); diff != "" {
		t.Errorf("funcs (-want +got):\n%s", diff)
	}
	assert.Equal(t, []Global{
		{Name: "mrb_debug", Type: "mrb_int", Extern: true, Line: 7},
		{Name: "other_count", Type: "int", Line: 8},
	}, u.Globals)

	var js strings.Builder
	require.NoError(t, JSON(&js, u))
	assert.Contains(t, js.String(), `"variadic": true`)

	got, err := Filter(tu, stringset.New("helper", "mrb_debug"))
	require.NoError(t, err)
	var text strings.Builder
	require.NoError(t, Text(&text, got))
	assert.Equal(t, "extern mrb_int mrb_debug;\nvoid helper(int);\n", text.String())
}

func TestPrefixed(t *testing.T) {
	tu, err := parse.ParseString("api.h", apiHeader)
	require.NoError(t, err)

	got := Prefixed(tu, []string{"mrb_", "MRB_"})
	var names []string
	for _, s := range got.Structs {
		names = append(names, s.Name)
	}
	for _, td := range got.Typedefs {
		names = append(names, td.Name)
	}
	for _, e := range got.Enums {
		names = append(names, "enum "+e.Name)
	}
	for _, f := range got.Functions {
		names = append(names, f.Name+"()")
	}
	for _, g := range got.Globals {
		names = append(names, "global "+g.Name)
	}
	want := []string{
		"mrb_state", "mrb_state", "mrb_int",
		"enum mrb_vtype", "enum ",
		"mrb_open()", "mrb_funcall()",
		"global mrb_debug",
	}
	assert.Equal(t, want, names)

	assert.Empty(t, Records("api.h", Prefixed(tu, []string{"nothing_"})).Structs)
}
