package compiler

import "testing"

func TestExprTypeRoundTrip(t *testing.T) {
	arr := ArrayOf(IntType)
	if !arr.Detail.Equal(IntType) {
		t.Errorf("ArrayOf(int).Detail = %v, want int", arr.Detail)
	}
	if ArrayOf(IntType).Equal(ArrayOf(BoolType)) {
		t.Error("array(int) must differ from array(bool)")
	}
	if !ArrayOf(ArrayOf(CharType)).Equal(ArrayOf(ArrayOf(CharType))) {
		t.Error("structurally equal types must compare equal")
	}
	if ReferenceOf(IntType).Equal(ArrayOf(IntType)) {
		t.Error("ref(int) must differ from array(int)")
	}
}

func TestExprTypeNil(t *testing.T) {
	var unknown *ExprType
	if unknown.Equal(IntType) || IntType.Equal(unknown) {
		t.Error("nil type must not equal int")
	}
	if !unknown.Equal(nil) {
		t.Error("nil type must equal nil")
	}
	if unknown.Is(KindInt) {
		t.Error("nil type is not int")
	}
	if unknown.String() != "<unknown>" {
		t.Errorf("String() = %q", unknown.String())
	}
}

func TestExprTypeString(t *testing.T) {
	tests := []struct {
		typ  *ExprType
		want string
	}{
		{IntType, "int"},
		{ArrayOf(BoolType), "array(bool)"},
		{ReferenceOf(ArrayOf(CharType)), "ref(array(char))"},
		{DiscreteRangeOf(IntType), "range(int)"},
	}
	for _, tc := range tests {
		if got := tc.typ.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
	if got := ArrayOf(ArrayOf(StringType)).Innermost(); !got.Equal(StringType) {
		t.Errorf("Innermost = %v, want string", got)
	}
}

func TestModeLayout(t *testing.T) {
	chars := NewCharsMode(10)
	if chars.Size != 11 || chars.Capacity != 10 || !chars.IsString() {
		t.Errorf("chars[10] = %+v", chars)
	}
	if StringMode.Size != StringCapacity+1 {
		t.Errorf("string size = %d", StringMode.Size)
	}

	rows := NewRangeMode(IntMode, 1, 2)
	cols := NewRangeMode(IntMode, 0, 2)
	inner := NewArrayMode(cols, IntMode)
	grid := NewArrayMode(rows, inner)
	if inner.Size != 3 || grid.Size != 6 {
		t.Errorf("sizes = %d, %d, want 3, 6", inner.Size, grid.Size)
	}
	if grid.Len() != 2 || grid.Lower != 1 {
		t.Errorf("grid bounds = %d:%d", grid.Lower, grid.Upper)
	}
	if !grid.Type.Equal(ArrayOf(ArrayOf(IntType))) {
		t.Errorf("grid type = %v", grid.Type)
	}
	if got := grid.String(); got != "array[1:2] array[0:2] int" {
		t.Errorf("String() = %q", got)
	}

	ref := NewRefMode(grid)
	if ref.Size != 1 || !ref.Type.Is(KindReference) || ref.Elem != grid {
		t.Errorf("ref mode = %+v", ref)
	}
	if named := inner.Named("row"); named.String() != "row" || inner.Name != "" {
		t.Errorf("Named must copy: %q, %q", named.String(), inner.Name)
	}
}
