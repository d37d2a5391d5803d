package attrmodel_test

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/dynamodap/attrmodel"
)

func TestAttribute_HashAndColonName(t *testing.T) {
	a := &attrmodel.Attribute{Name: "userName"}
	if got := a.HashName(); got != "#userName" {
		t.Errorf("HashName() = %q, want #userName", got)
	}
	if got := a.ColonName(); got != ":userName" {
		t.Errorf("ColonName() = %q, want :userName", got)
	}
}

func TestAttribute_EncodeDecode_String(t *testing.T) {
	a := &attrmodel.Attribute{Name: "email", Kind: attrmodel.KindString}

	av, err := a.Encode("alice@example.com")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok || s.Value != "alice@example.com" {
		t.Fatalf("Encode() = %#v, want S alice@example.com", av)
	}

	decoded, err := a.Decode(av)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded != "alice@example.com" {
		t.Errorf("Decode() = %v, want alice@example.com", decoded)
	}
}

func TestAttribute_EncodeDecode_Number(t *testing.T) {
	a := &attrmodel.Attribute{Name: "version", Kind: attrmodel.KindNumber}

	av, err := a.Encode(int64(7))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok || n.Value != "7" {
		t.Fatalf("Encode() = %#v, want N 7", av)
	}
}

func TestAttribute_EncodeDecode_Bool(t *testing.T) {
	a := &attrmodel.Attribute{Name: "active", Kind: attrmodel.KindBool}

	av, err := a.Encode(true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, ok := av.(*types.AttributeValueMemberBOOL)
	if !ok || !b.Value {
		t.Fatalf("Encode() = %#v, want BOOL true", av)
	}
}

func TestAttribute_Encode_WrongType(t *testing.T) {
	a := &attrmodel.Attribute{Name: "active", Kind: attrmodel.KindBool}
	if _, err := a.Encode("not a bool"); err == nil {
		t.Error("expected error encoding string as bool attribute")
	}
}

func TestAttribute_IsUnique(t *testing.T) {
	unique := &attrmodel.Attribute{Name: "userName", UniquenessPrefix: "un#"}
	notUnique := &attrmodel.Attribute{Name: "active"}

	if !unique.IsUnique() {
		t.Error("expected userName to be unique")
	}
	if notUnique.IsUnique() {
		t.Error("expected active to not be unique")
	}
}

func TestAttribute_UniquenessValueFrom(t *testing.T) {
	tests := []struct {
		prefix string
		value  string
		want   string
	}{
		{"ai#", "1234", "ai#1234"},
		{"un#", "alice", "un#alice"},
		{"em#", "alice@example.com", "em#alice@example.com"},
		{"pn#", "+15551234", "pn#+15551234"},
	}
	for _, tt := range tests {
		a := &attrmodel.Attribute{Name: "x", UniquenessPrefix: tt.prefix}
		if got := a.UniquenessValueFrom(tt.value); got != tt.want {
			t.Errorf("UniquenessValueFrom(%q) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
